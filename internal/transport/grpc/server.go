package grpcx

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/internal/service"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	mdAuthorization = "authorization"
	mdUserID        = "x-user-id"
	mdUserRole      = "x-user-role"
)

type AdminService interface {
	ForceDisconnectUser(ctx context.Context, caller domain.Caller, uid domain.UserID, reason string) error
	ForceEndRoom(ctx context.Context, caller domain.Caller, token, reason string) error
	ReclaimAllIdleRooms(ctx context.Context, caller domain.Caller) (int, error)
	Stats(ctx context.Context, caller domain.Caller) (service.Stats, error)
}

var _ AdminService = (*service.AdmissionService)(nil)

type Server struct {
	admin AdminService
	auth  identity.Authenticator
}

func NewServer(admin AdminService, auth identity.Authenticator) *Server {
	return &Server{admin: admin, auth: auth}
}

var _ AdminServiceServer = (*Server)(nil)

// NewGRPCServer собирает grpc.Server с интерсепторами, otel, health и reflection.
func NewGRPCServer(s *Server) *grpc.Server {
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	RegisterAdminServiceServer(gs, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)
	return gs
}

func (s *Server) ForceDisconnectUser(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	uid, err := userIDField(in, "user_id")
	if err != nil {
		return nil, err
	}
	if err := s.admin.ForceDisconnectUser(ctx, caller, uid, stringField(in, "reason")); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ForceEndRoom(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	token := stringField(in, "public_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "public_token is required")
	}
	if err := s.admin.ForceEndRoom(ctx, caller, token, stringField(in, "reason")); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ReclaimIdleRooms(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.admin.ReclaimAllIdleRooms(ctx, caller)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.admin.Stats(ctx, caller)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"active_rooms":     st.ActiveRooms,
		"ended_rooms":      st.EndedRooms,
		"online_users":     st.OnlineUsers,
		"max_active_rooms": st.MaxActiveRooms,
		"started_at":       st.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds":   int64(st.Uptime / time.Second),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode stats")
	}
	return out, nil
}

// -------- helpers --------

// caller аутентифицирует вызов по metadata. Все методы сервиса админские.
func (s *Server) caller(ctx context.Context) (domain.Caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	token, _ := identity.BearerToken(first(md.Get(mdAuthorization)))

	c, err := s.auth.Authenticate(ctx, identity.Credentials{
		Token:  token,
		UserID: first(md.Get(mdUserID)),
		Role:   first(md.Get(mdUserRole)),
	})
	if err != nil {
		return domain.Caller{}, status.Error(codes.Unauthenticated, err.Error())
	}
	if !c.IsAdmin() {
		return domain.Caller{}, status.Error(codes.PermissionDenied, "admin role required")
	}
	return c, nil
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func stringField(in *structpb.Struct, key string) string {
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// userIDField принимает как число, так и строку.
func userIDField(in *structpb.Struct, key string) (domain.UserID, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	var id int64
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		id = int64(k.NumberValue)
		if float64(id) != k.NumberValue {
			return 0, status.Errorf(codes.InvalidArgument, "invalid %s", key)
		}
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(k.StringValue), 10, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "invalid %s", key)
		}
		id = n
	default:
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	if id <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	return domain.UserID(id), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "canceled")
	}

	var code codes.Code
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindForbidden:
		code = codes.PermissionDenied
	case domain.KindConflict:
		code = codes.FailedPrecondition
	case domain.KindCapacityExceeded:
		code = codes.ResourceExhausted
	case domain.KindUnavailable:
		return status.Error(codes.Unavailable, "service unavailable")
	case domain.KindInvalid:
		code = codes.InvalidArgument
	case domain.KindUnauthenticated:
		code = codes.Unauthenticated
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, domain.Code(err)+": "+err.Error())
}
