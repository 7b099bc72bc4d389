package grpcx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client — админский клиент, используется CLI.
type Client struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	timeout time.Duration
	auth    Auth
}

// Auth — что кладётся в исходящую metadata.
type Auth struct {
	Token  string
	UserID int64
	Role   string
}

type ClientOptions struct {
	Target  string
	Timeout time.Duration
	Auth    Auth
}

func Dial(opts ClientOptions, extra ...grpc.DialOption) (*Client, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("admin client: empty target")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, extra...)

	conn, err := grpc.NewClient(opts.Target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("admin client: new client failed: %w", err)
	}
	return &Client{conn: conn, cc: conn, timeout: opts.Timeout, auth: opts.Auth}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) outgoing(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	var kv []string
	if c.auth.Token != "" {
		kv = append(kv, mdAuthorization, "Bearer "+c.auth.Token)
	}
	if c.auth.UserID > 0 {
		kv = append(kv, mdUserID, strconv.FormatInt(c.auth.UserID, 10))
	}
	if c.auth.Role != "" {
		kv = append(kv, mdUserRole, c.auth.Role)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...), cancel
}

func (c *Client) ForceDisconnectUser(ctx context.Context, userID int64, reason string) error {
	ctx, cancel := c.outgoing(ctx)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{"user_id": userID, "reason": reason})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, MethodForceDisconnectUser, in, &emptypb.Empty{})
}

func (c *Client) ForceEndRoom(ctx context.Context, token, reason string) error {
	ctx, cancel := c.outgoing(ctx)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{"public_token": token, "reason": reason})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, MethodForceEndRoom, in, &emptypb.Empty{})
}

func (c *Client) ReclaimIdleRooms(ctx context.Context) (int64, error) {
	ctx, cancel := c.outgoing(ctx)
	defer cancel()

	out := &wrapperspb.Int64Value{}
	if err := c.cc.Invoke(ctx, MethodReclaimIdleRooms, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) GetStats(ctx context.Context) (map[string]any, error) {
	ctx, cancel := c.outgoing(ctx)
	defer cancel()

	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, MethodGetStats, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
