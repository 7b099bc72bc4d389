package postgres

import (
	"testing"
	"time"
)

func TestPoolConfig_Defaults(t *testing.T) {
	pc, err := poolConfig(Config{DSN: "postgres://u:p@localhost:5432/rooms?pool_max_conns=4"})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pc.MaxConns != minPoolConns {
		t.Fatalf("MaxConns = %d, want floor %d", pc.MaxConns, minPoolConns)
	}
	params := pc.ConnConfig.RuntimeParams
	if params["application_name"] != "roomgate" {
		t.Fatalf("application_name = %q", params["application_name"])
	}
	if params["lock_timeout"] != "5000" {
		t.Fatalf("lock_timeout = %q", params["lock_timeout"])
	}
}

func TestPoolConfig_Overrides(t *testing.T) {
	pc, err := poolConfig(Config{
		DSN:             "postgres://u:p@localhost:5432/rooms",
		MaxConns:        40,
		MinConns:        80,
		MaxConnLifetime: time.Hour,
		ApplicationName: "roomgate-eu",
		LockTimeout:     1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pc.MaxConns != 40 || pc.MinConns != 40 {
		t.Fatalf("conns = %d/%d, want 40/40", pc.MinConns, pc.MaxConns)
	}
	if pc.MaxConnLifetime != time.Hour {
		t.Fatalf("MaxConnLifetime = %v", pc.MaxConnLifetime)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "roomgate-eu" {
		t.Fatalf("application_name = %q", got)
	}
	if got := pc.ConnConfig.RuntimeParams["lock_timeout"]; got != "1500" {
		t.Fatalf("lock_timeout = %q", got)
	}
}

func TestPoolConfig_BadDSN(t *testing.T) {
	if _, err := poolConfig(Config{DSN: "://nope"}); err == nil {
		t.Fatal("expected parse error")
	}
}
