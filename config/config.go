package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr" env:"ROOMGATE_HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"readTimeout" env:"ROOMGATE_HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"ROOMGATE_HTTP_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" env:"ROOMGATE_HTTP_IDLE_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"ROOMGATE_HTTP_ALLOWED_ORIGINS" envSeparator:","`
}

type GRPC struct {
	Addr string `yaml:"addr" env:"ROOMGATE_GRPC_ADDR"`
}

type Logging struct {
	Env       string `yaml:"env" env:"ROOMGATE_ENV"`         // dev|stage|prod
	Service   string `yaml:"service" env:"ROOMGATE_SERVICE"` // roomgate
	Version   string `yaml:"version" env:"ROOMGATE_VERSION"` // v0.1.0
	Backend   string `yaml:"backend" env:"ROOMGATE_LOG_BACKEND"`
	Level     string `yaml:"level" env:"ROOMGATE_LOG_LEVEL"`
	AddSource bool   `yaml:"addSource" env:"ROOMGATE_LOG_ADD_SOURCE"`
	Debug     bool   `yaml:"debug" env:"ROOMGATE_LOG_DEBUG"`
}

type Telemetry struct {
	Enabled     bool    `yaml:"enabled" env:"ROOMGATE_OTEL_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"ROOMGATE_OTEL_ENDPOINT"`
	SampleRatio float64 `yaml:"sampleRatio" env:"ROOMGATE_OTEL_SAMPLE_RATIO"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn" env:"ROOMGATE_POSTGRES_DSN"`
	MaxConns        int32         `yaml:"maxConns" env:"ROOMGATE_POSTGRES_MAX_CONNS"`
	MinConns        int32         `yaml:"minConns" env:"ROOMGATE_POSTGRES_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" env:"ROOMGATE_POSTGRES_MAX_CONN_LIFETIME"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime" env:"ROOMGATE_POSTGRES_MAX_CONN_IDLE_TIME"`
	LockTimeout     time.Duration `yaml:"lockTimeout" env:"ROOMGATE_POSTGRES_LOCK_TIMEOUT"`
}

type SQLite struct {
	Path string `yaml:"path" env:"ROOMGATE_SQLITE_PATH"`
}

type Storage struct {
	Driver   string   `yaml:"driver" env:"ROOMGATE_STORAGE_DRIVER"` // postgres|sqlite
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"ROOMGATE_REDIS_ADDR"`
	Password string `yaml:"password" env:"ROOMGATE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"ROOMGATE_REDIS_DB"`
}

type Presence struct {
	Backend    string        `yaml:"backend" env:"ROOMGATE_PRESENCE_BACKEND"` // memory|redis
	TTL        time.Duration `yaml:"ttl" env:"ROOMGATE_PRESENCE_TTL"`
	SweepEvery time.Duration `yaml:"sweepEvery" env:"ROOMGATE_PRESENCE_SWEEP_EVERY"`
	Redis      Redis         `yaml:"redis"`
}

type Rooms struct {
	MaxActive         int `yaml:"maxActive" env:"ROOMGATE_ROOMS_MAX_ACTIVE"`
	TokenAttempts     int `yaml:"tokenAttempts" env:"ROOMGATE_ROOMS_TOKEN_ATTEMPTS"`
	PasswordMinLength int `yaml:"passwordMinLength" env:"ROOMGATE_ROOMS_PASSWORD_MIN_LENGTH"`
	PasswordCost      int `yaml:"passwordCost" env:"ROOMGATE_ROOMS_PASSWORD_COST"`
}

type Reclaim struct {
	Enabled       bool          `yaml:"enabled" env:"ROOMGATE_RECLAIM_ENABLED"`
	Interval      time.Duration `yaml:"interval" env:"ROOMGATE_RECLAIM_INTERVAL"`
	IdleThreshold time.Duration `yaml:"idleThreshold" env:"ROOMGATE_RECLAIM_IDLE_THRESHOLD"`
}

type Auth struct {
	Mode          string        `yaml:"mode" env:"ROOMGATE_AUTH_MODE"` // jwt|headers
	PublicKeyPath string        `yaml:"publicKeyPath" env:"ROOMGATE_AUTH_PUBLIC_KEY_PATH"`
	Issuer        string        `yaml:"issuer" env:"ROOMGATE_AUTH_ISSUER"`
	Audience      string        `yaml:"audience" env:"ROOMGATE_AUTH_AUDIENCE"`
	ClockSkew     time.Duration `yaml:"clockSkew" env:"ROOMGATE_AUTH_CLOCK_SKEW"`
}

type Media struct {
	AppID       string        `yaml:"appId" env:"ROOMGATE_MEDIA_APP_ID"`
	Certificate string        `yaml:"certificate" env:"ROOMGATE_MEDIA_CERTIFICATE"`
	TokenTTL    time.Duration `yaml:"tokenTTL" env:"ROOMGATE_MEDIA_TOKEN_TTL"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
	Storage   Storage   `yaml:"storage"`
	Presence  Presence  `yaml:"presence"`
	Rooms     Rooms     `yaml:"rooms"`
	Reclaim   Reclaim   `yaml:"reclaim"`
	Auth      Auth      `yaml:"auth"`
	Media     Media     `yaml:"media"`
}

const (
	AuthModeJWT     = "jwt"
	AuthModeHeaders = "headers"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PresenceMemory = "memory"
	PresenceRedis  = "redis"
)

// LoadConfig: путь из CONFIG_PATH (по умолчанию ./config/config.yaml), затем ROOMGATE_* из окружения.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.setDefaults()

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}

	switch c.Presence.Backend {
	case PresenceMemory:
	case PresenceRedis:
		if c.Presence.Redis.Addr == "" {
			return errors.New("presence.redis.addr is required")
		}
	default:
		return fmt.Errorf("presence.backend: unknown backend %q", c.Presence.Backend)
	}

	switch c.Auth.Mode {
	case AuthModeHeaders:
	case AuthModeJWT:
		if c.Auth.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required in jwt mode")
		}
	default:
		return fmt.Errorf("auth.mode: unknown mode %q", c.Auth.Mode)
	}

	if c.Rooms.MaxActive <= 0 {
		return errors.New("rooms.maxActive must be positive")
	}
	if c.Reclaim.IdleThreshold <= 0 || c.Reclaim.Interval <= 0 {
		return errors.New("reclaim.interval and reclaim.idleThreshold must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sampleRatio must be within [0,1]")
	}
	return nil
}

// установка дефолтов, если значения не указаны
func (c *Config) setDefaults() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	c.Presence.Backend = strings.ToLower(strings.TrimSpace(c.Presence.Backend))
	if c.Presence.Backend == "" {
		c.Presence.Backend = PresenceMemory
	}
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeHeaders
	}

	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)

	if c.Logging.Service == "" {
		c.Logging.Service = "roomgate"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.Presence.TTL = durationOr(c.Presence.TTL, 5*time.Minute)
	c.Presence.SweepEvery = durationOr(c.Presence.SweepEvery, time.Minute)

	if c.Rooms.MaxActive == 0 {
		c.Rooms.MaxActive = 100
	}
	if c.Rooms.TokenAttempts <= 0 {
		c.Rooms.TokenAttempts = 10
	}
	if c.Rooms.PasswordMinLength <= 0 {
		c.Rooms.PasswordMinLength = 4
	}

	c.Reclaim.Interval = durationOr(c.Reclaim.Interval, 5*time.Minute)
	c.Reclaim.IdleThreshold = durationOr(c.Reclaim.IdleThreshold, 2*time.Hour)

	c.Auth.ClockSkew = durationOr(c.Auth.ClockSkew, 30*time.Second)
	c.Media.TokenTTL = durationOr(c.Media.TokenTTL, time.Hour)
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
