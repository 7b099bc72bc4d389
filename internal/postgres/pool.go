package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultApplicationName = "roomgate"
	defaultLockTimeout     = 5 * time.Second

	// Join держит FOR UPDATE на строке комнаты всю транзакцию. Пул должен
	// вмещать полную комнату претендентов плюс фоновые reclaimer и admin.
	minPoolConns = domain.MaxParticipants + 2
)

type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string        // по умолчанию roomgate
	LockTimeout     time.Duration // lock_timeout сессии, по умолчанию 5s
}

// poolConfig разбирает DSN и накладывает настройки сервиса. Сеть не трогает.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if pc.MaxConns < minPoolConns {
		pc.MaxConns = minPoolConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = min(cfg.MinConns, pc.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	name := cfg.ApplicationName
	if name == "" {
		name = defaultApplicationName
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	pc.ConnConfig.RuntimeParams["application_name"] = name
	// зависший захват строки комнаты превращается в lock_not_available → ErrUnavailable
	pc.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(lockTimeout.Milliseconds(), 10)
	return pc, nil
}

// NewPool поднимает пул и проверяет соединение.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
