package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeAdmin struct {
	disconnected domain.UserID
	reason       string
	ended        string
	err          error
}

func (f *fakeAdmin) ForceDisconnectUser(_ context.Context, _ domain.Caller, uid domain.UserID, reason string) error {
	f.disconnected, f.reason = uid, reason
	return f.err
}

func (f *fakeAdmin) ForceEndRoom(_ context.Context, _ domain.Caller, token, reason string) error {
	f.ended, f.reason = token, reason
	return f.err
}

func (f *fakeAdmin) ReclaimAllIdleRooms(context.Context, domain.Caller) (int, error) {
	return 3, f.err
}

func (f *fakeAdmin) Stats(context.Context, domain.Caller) (service.Stats, error) {
	return service.Stats{
		Stats: domain.Stats{
			ActiveRooms:    2,
			EndedRooms:     5,
			OnlineUsers:    7,
			MaxActiveRooms: 100,
			StartedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Uptime: 90 * time.Second,
	}, f.err
}

func startServer(t *testing.T, admin AdminService) *grpc.ClientConn {
	t.Helper()
	return newClient(t, admin, Auth{}).conn
}

func newClient(t *testing.T, admin AdminService, auth Auth) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(admin, identity.TrustedHeaders{}))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := Dial(ClientOptions{Target: "passthrough:///bufnet", Auth: auth},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var adminAuth = Auth{Token: "t", UserID: 1, Role: "admin"}

func TestAdminService_Calls(t *testing.T) {
	admin := &fakeAdmin{}
	c := newClient(t, admin, adminAuth)
	ctx := context.Background()

	if err := c.ForceDisconnectUser(ctx, 42, "spam"); err != nil {
		t.Fatalf("ForceDisconnectUser: %v", err)
	}
	if admin.disconnected != 42 || admin.reason != "spam" {
		t.Fatalf("disconnect got uid=%d reason=%q", admin.disconnected, admin.reason)
	}

	if err := c.ForceEndRoom(ctx, "abc12345", "abuse"); err != nil {
		t.Fatalf("ForceEndRoom: %v", err)
	}
	if admin.ended != "abc12345" {
		t.Fatalf("ended = %q", admin.ended)
	}

	n, err := c.ReclaimIdleRooms(ctx)
	if err != nil || n != 3 {
		t.Fatalf("ReclaimIdleRooms = %d, %v", n, err)
	}

	st, err := c.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st["active_rooms"] != float64(2) || st["online_users"] != float64(7) || st["uptime_seconds"] != float64(90) {
		t.Fatalf("stats = %v", st)
	}
	if st["started_at"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("started_at = %v", st["started_at"])
	}
}

func TestAdminService_AuthErrors(t *testing.T) {
	ctx := context.Background()

	anon := newClient(t, &fakeAdmin{}, Auth{})
	if _, err := anon.ReclaimIdleRooms(ctx); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("anonymous: code = %v", status.Code(err))
	}

	user := newClient(t, &fakeAdmin{}, Auth{Token: "t", UserID: 2, Role: "user"})
	if _, err := user.GetStats(ctx); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("user: code = %v", status.Code(err))
	}
}

func TestAdminService_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrRoomNotFound, codes.NotFound},
		{domain.ErrRoomEnded, codes.FailedPrecondition},
		{domain.ErrForbidden, codes.PermissionDenied},
		{domain.ErrUnavailable, codes.Unavailable},
		{domain.ErrCapacityExceeded, codes.ResourceExhausted},
	}
	for _, tc := range cases {
		c := newClient(t, &fakeAdmin{err: tc.err}, adminAuth)
		err := c.ForceEndRoom(context.Background(), "abc12345", "")
		if status.Code(err) != tc.want {
			t.Fatalf("%v: code = %v, want %v", tc.err, status.Code(err), tc.want)
		}
	}
}

func TestAdminService_BadArguments(t *testing.T) {
	c := newClient(t, &fakeAdmin{}, adminAuth)
	ctx := context.Background()

	if err := c.ForceDisconnectUser(ctx, 0, ""); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("zero uid: code = %v", status.Code(err))
	}
	if err := c.ForceEndRoom(ctx, "  ", ""); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("empty token: code = %v", status.Code(err))
	}
}

func TestHealth(t *testing.T) {
	conn := startServer(t, &fakeAdmin{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestMapErr_Passthrough(t *testing.T) {
	if mapErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if status.Code(mapErr(context.DeadlineExceeded)) != codes.DeadlineExceeded {
		t.Fatal("deadline")
	}
	st := status.Convert(mapErr(domain.ErrRoomFull))
	if st.Code() != codes.FailedPrecondition || st.Message()[:9] != "room_full" {
		t.Fatalf("room full = %v %q", st.Code(), st.Message())
	}
}
