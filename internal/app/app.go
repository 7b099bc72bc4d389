// Package app собирает сервис из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/cwrk-planet/roomgate/config"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/internal/media"
	"github.com/cwrk-planet/roomgate/internal/postgres"
	"github.com/cwrk-planet/roomgate/internal/presence"
	"github.com/cwrk-planet/roomgate/internal/repository"
	"github.com/cwrk-planet/roomgate/internal/security"
	httpserver "github.com/cwrk-planet/roomgate/internal/server/http"
	"github.com/cwrk-planet/roomgate/internal/service"
	"github.com/cwrk-planet/roomgate/internal/sqlite"
	grpcx "github.com/cwrk-planet/roomgate/internal/transport/grpc"
	httpx "github.com/cwrk-planet/roomgate/internal/transport/http"
	"github.com/cwrk-planet/roomgate/internal/transport/ws"
	"github.com/cwrk-planet/roomgate/pkg/logger"
	"github.com/cwrk-planet/roomgate/pkg/telemetry"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type App struct {
	cfg *config.Config

	repos    repository.Set
	memStore *presence.MemoryStore // nil при redis
	rdb      *redis.Client
	registry *presence.Registry

	hub       *ws.Hub
	admit     *service.AdmissionService
	reclaimer *service.Reclaimer

	http *httpserver.Server
	grpc *grpc.Server

	shutdownTracing func(context.Context) error
}

// InitLogger настраивает логгер по секции logging.
func InitLogger(cfg *config.Config) *slog.Logger {
	return logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
		Extra: []slog.Attr{
			slog.String("storage", cfg.Storage.Driver),
			slog.String("presence", cfg.Presence.Backend),
			slog.String("auth_mode", cfg.Auth.Mode),
		},
	})
}

// OpenStorage открывает хранилище выбранного драйвера и применяет схему.
func OpenStorage(ctx context.Context, cfg *config.Config) (repository.Set, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		p := cfg.Storage.Postgres
		return postgres.Open(ctx, postgres.Config{
			DSN:             p.DSN,
			MaxConns:        p.MaxConns,
			MinConns:        p.MinConns,
			MaxConnLifetime: p.MaxConnLifetime,
			MaxConnIdleTime: p.MaxConnIdleTime,
			ApplicationName: cfg.Logging.Service,
			LockTimeout:     p.LockTimeout,
		})
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return repository.Set{}, err
		}
		return sqlite.NewSet(db), nil
	default:
		return repository.Set{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewAuthenticator выбирает проверку личности по auth.mode.
func NewAuthenticator(cfg *config.Config) (identity.Authenticator, error) {
	if cfg.Auth.Mode == config.AuthModeJWT {
		return identity.LoadJWTVerifier(cfg.Auth.PublicKeyPath, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	}
	return identity.TrustedHeaders{}, nil
}

func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.shutdownTracing, err = telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Logging.Service,
		Version:     cfg.Logging.Version,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// --- storage ---
	a.repos, err = OpenStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	// --- presence ---
	var store presence.Store
	switch cfg.Presence.Backend {
	case config.PresenceRedis:
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Presence.Redis.Addr,
			Password: cfg.Presence.Redis.Password,
			DB:       cfg.Presence.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			// не фатально: реестр деградирует до "никто не в сети"
			logger.Ctx(ctx).Warn("presence.redis.ping", slog.Any("err", err))
		}
		store = presence.NewRedisStore(a.rdb)
	default:
		a.memStore = presence.NewMemoryStore()
		store = a.memStore
	}
	a.registry = presence.NewRegistry(store, cfg.Presence.TTL)

	auth, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	signer := media.NewSigner(cfg.Media.AppID, cfg.Media.Certificate, cfg.Media.TokenTTL)
	if !signer.Enabled() {
		logger.Ctx(ctx).Warn("media.signer.disabled", slog.String("reason", "no certificate"))
	}

	// --- hub & services ---
	a.hub = ws.NewHub()
	events := ws.NewNotifier(a.hub)

	a.admit = service.NewAdmissionService(a.repos, a.registry, signer, service.Options{
		MaxActiveRooms: cfg.Rooms.MaxActive,
		TokenAttempts:  cfg.Rooms.TokenAttempts,
		Bcrypt: security.BcryptConfig{
			Cost:      cfg.Rooms.PasswordCost,
			MinLength: cfg.Rooms.PasswordMinLength,
		},
		Events: events,
	})
	chat := service.NewChatService(a.repos, events)
	sessions := service.NewSessionService(a.registry, a.admit)
	if cfg.Reclaim.Enabled {
		a.reclaimer = service.NewReclaimer(a.admit, cfg.Reclaim.Interval, cfg.Reclaim.IdleThreshold)
	}

	// --- transports ---
	wsServer := ws.NewServer(a.hub, auth, sessions, chat, cfg.HTTP.AllowedOrigins)
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(a.admit, chat),
		Auth:           auth,
		Heartbeat:      sessions,
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	a.http = httpserver.New(httpserver.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, router)
	a.grpc = grpcx.NewGRPCServer(grpcx.NewServer(a.admit, auth))

	return a, nil
}

// Run блокируется до отмены ctx или падения одного из компонентов.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.http.Run(ctx) })

	g.Go(func() error {
		lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Ctx(ctx).Info("grpc.listen", slog.String("addr", a.cfg.GRPC.Addr))
		errCh := make(chan error, 1)
		go func() { errCh <- a.grpc.Serve(lis) }()

		select {
		case <-ctx.Done():
			a.grpc.GracefulStop()
			return nil
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		}
	})

	if a.memStore != nil {
		g.Go(func() error { return a.memStore.Run(ctx, a.cfg.Presence.SweepEvery) })
	}
	if a.reclaimer != nil {
		g.Go(func() error { return a.reclaimer.Run(ctx) })
	}

	err := g.Wait()
	a.hub.Close()
	return err
}

// Close освобождает ресурсы; безопасен для частично собранного App.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.repos.Close != nil {
		a.repos.Close()
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Ctx(ctx).Warn("telemetry.shutdown", slog.Any("err", err))
		}
	}
}
