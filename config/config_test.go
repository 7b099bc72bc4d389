package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
storage:
  driver: sqlite
  sqlite:
    path: "/tmp/rooms.db"
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Presence.Backend != PresenceMemory || cfg.Presence.TTL != 5*time.Minute {
		t.Fatalf("presence defaults: %+v", cfg.Presence)
	}
	if cfg.Reclaim.Interval != 5*time.Minute || cfg.Reclaim.IdleThreshold != 2*time.Hour {
		t.Fatalf("reclaim defaults: %+v", cfg.Reclaim)
	}
	if cfg.Rooms.MaxActive != 100 || cfg.Auth.Mode != AuthModeHeaders {
		t.Fatalf("rooms/auth defaults: %+v %+v", cfg.Rooms, cfg.Auth)
	}
	if cfg.Media.TokenTTL != time.Hour {
		t.Fatalf("media ttl default: %v", cfg.Media.TokenTTL)
	}
}

func TestLoad_YAMLDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+`
reclaim:
  interval: 30s
  idleThreshold: 45m
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reclaim.Interval != 30*time.Second || cfg.Reclaim.IdleThreshold != 45*time.Minute {
		t.Fatalf("durations not parsed: %+v", cfg.Reclaim)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROOMGATE_HTTP_ADDR", ":18080")
	t.Setenv("ROOMGATE_ROOMS_MAX_ACTIVE", "3")
	t.Setenv("ROOMGATE_HTTP_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROOMGATE_PRESENCE_TTL", "90s")

	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":18080" || cfg.Rooms.MaxActive != 3 || cfg.Presence.TTL != 90*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Fatalf("origins: %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing http": {`grpc: {addr: ":1"}`, "http.addr"},
		"unknown driver": {`
http: {addr: ":1"}
grpc: {addr: ":2"}
storage: {driver: mongo}`, "storage.driver"},
		"postgres without dsn": {`
http: {addr: ":1"}
grpc: {addr: ":2"}
storage: {driver: postgres}`, "dsn"},
		"redis without addr": {minimal + `
presence:
  backend: redis`, "presence.redis.addr"},
		"jwt without key": {minimal + `
auth:
  mode: jwt`, "publicKeyPath"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
