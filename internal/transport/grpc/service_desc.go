package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Сервис описан вручную поверх well-known типов protobuf: отдельный .proto
// и кодогенерация для четырёх административных методов не нужны.
const (
	ServiceName = "roomgate.admin.v1.AdminService"

	MethodForceDisconnectUser = "/" + ServiceName + "/ForceDisconnectUser"
	MethodForceEndRoom        = "/" + ServiceName + "/ForceEndRoom"
	MethodReclaimIdleRooms    = "/" + ServiceName + "/ReclaimIdleRooms"
	MethodGetStats            = "/" + ServiceName + "/GetStats"
)

type AdminServiceServer interface {
	// ForceDisconnectUser: {user_id, reason}
	ForceDisconnectUser(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
	// ForceEndRoom: {public_token, reason}
	ForceEndRoom(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
	ReclaimIdleRooms(ctx context.Context, in *emptypb.Empty) (*wrapperspb.Int64Value, error)
	GetStats(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ForceDisconnectUser",
			Handler: unary(MethodForceDisconnectUser, func(s AdminServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.ForceDisconnectUser(ctx, in)
			}),
		},
		{
			MethodName: "ForceEndRoom",
			Handler: unary(MethodForceEndRoom, func(s AdminServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.ForceEndRoom(ctx, in)
			}),
		},
		{
			MethodName: "ReclaimIdleRooms",
			Handler: unary(MethodReclaimIdleRooms, func(s AdminServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ReclaimIdleRooms(ctx, in)
			}),
		},
		{
			MethodName: "GetStats",
			Handler: unary(MethodGetStats, func(s AdminServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetStats(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roomgate/admin/v1/admin.proto",
}

// unary повторяет то, что генерирует protoc-gen-go-grpc для unary-метода.
func unary[Req any, PReq interface{ *Req }](fullMethod string, call func(AdminServiceServer, context.Context, PReq) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}
