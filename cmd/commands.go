package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/roomgate/config"
	"github.com/cwrk-planet/roomgate/internal/app"
	"github.com/cwrk-planet/roomgate/internal/media"
	"github.com/cwrk-planet/roomgate/internal/presence"
	"github.com/cwrk-planet/roomgate/internal/service"
	grpcx "github.com/cwrk-planet/roomgate/internal/transport/grpc"
	"github.com/cwrk-planet/roomgate/pkg/logger"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "roomgate",
		Short:         "Room admission, presence and broadcast service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or ./config/config.yaml)")

	root.AddCommand(
		newServeCmd(f),
		newMigrateCmd(f),
		newReclaimCmd(f),
		newAdminCmd(),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	if f.configPath == "" {
		return config.LoadConfig()
	}
	return config.Load(f.configPath)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP, WebSocket and admin gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app.InitLogger(cfg)
			slog.Info("starting roomgate",
				"env", cfg.Logging.Env, "version", cfg.Logging.Version,
				"storage", cfg.Storage.Driver, "presence", cfg.Presence.Backend)

			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if err := a.Run(ctx); err != nil {
				slog.Error("server error", "err", err)
				return err
			}
			slog.Info("stopped")
			return nil
		},
	}
}

func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app.InitLogger(cfg)

			repos, err := app.OpenStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			repos.Close()
			slog.Info("schema applied", "driver", cfg.Storage.Driver)
			return nil
		},
	}
}

// reclaim — разовый проход без запущенного сервера; подключённые клиенты
// уведомлений не получат.
func newReclaimCmd(f *rootFlags) *cobra.Command {
	var threshold time.Duration
	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "End active rooms with no participants older than --threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app.InitLogger(cfg)
			if threshold <= 0 {
				threshold = cfg.Reclaim.IdleThreshold
			}

			ctx := cmd.Context()
			repos, err := app.OpenStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			svc := service.NewAdmissionService(repos,
				presence.NewRegistry(presence.NewMemoryStore(), cfg.Presence.TTL),
				media.NewSigner(cfg.Media.AppID, cfg.Media.Certificate, cfg.Media.TokenTTL),
				service.Options{MaxActiveRooms: cfg.Rooms.MaxActive})

			n, err := svc.ReclaimIdle(ctx, threshold)
			if err != nil {
				return err
			}
			logger.Ctx(ctx).Info("reclaim.done", slog.Int("ended", n), slog.Duration("threshold", threshold))
			fmt.Fprintf(cmd.OutOrStdout(), "ended %d room(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&threshold, "threshold", 0, "idle threshold (default reclaim.idleThreshold)")
	return cmd
}

type adminFlags struct {
	target  string
	token   string
	userID  int64
	role    string
	timeout time.Duration
}

func (f *adminFlags) dial() (*grpcx.Client, error) {
	return grpcx.Dial(grpcx.ClientOptions{
		Target:  f.target,
		Timeout: f.timeout,
		Auth:    grpcx.Auth{Token: f.token, UserID: f.userID, Role: f.role},
	})
}

func newAdminCmd() *cobra.Command {
	f := &adminFlags{}
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative calls over gRPC",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.target, "addr", "localhost:9090", "admin gRPC address")
	pf.StringVar(&f.token, "token", os.Getenv("ROOMGATE_ADMIN_TOKEN"), "bearer access token")
	pf.Int64Var(&f.userID, "user-id", 0, "x-user-id (headers auth mode)")
	pf.StringVar(&f.role, "role", "admin", "x-user-role (headers auth mode)")
	pf.DurationVar(&f.timeout, "timeout", 5*time.Second, "call timeout")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print service statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := f.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	var reason string
	disconnect := &cobra.Command{
		Use:   "disconnect <user-id>",
		Short: "Force-disconnect a user and close all memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var uid int64
			if _, err := fmt.Sscan(args[0], &uid); err != nil || uid <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			c, err := f.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.ForceDisconnectUser(cmd.Context(), uid, reason)
		},
	}
	disconnect.Flags().StringVar(&reason, "reason", "", "reason shown to the user")

	endRoom := &cobra.Command{
		Use:   "end-room <public-token>",
		Short: "Force-end a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.ForceEndRoom(cmd.Context(), args[0], reason)
		},
	}
	endRoom.Flags().StringVar(&reason, "reason", "", "reason shown to participants")

	reclaim := &cobra.Command{
		Use:   "reclaim",
		Short: "End every active room with no participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := f.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.ReclaimIdleRooms(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ended %d room(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(stats, disconnect, endRoom, reclaim)
	return cmd
}
