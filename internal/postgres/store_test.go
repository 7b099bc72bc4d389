package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/cwrk-planet/roomgate/internal/repository"
	"github.com/cwrk-planet/roomgate/internal/repository/repotest"
)

// Интеграционные тесты: нужна живая база в ROOMGATE_TEST_POSTGRES_DSN.
func openTestStore(t *testing.T) repository.Set {
	t.Helper()
	dsn := os.Getenv("ROOMGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ROOMGATE_TEST_POSTGRES_DSN is not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, Config{DSN: dsn, MaxConns: 40})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE room_messages, room_participants, admin_operations, rooms RESTART IDENTITY`); err != nil {
		pool.Close()
		t.Fatalf("truncate: %v", err)
	}
	set := NewSet(pool)
	t.Cleanup(set.Close)
	return set
}

func TestStoreContract(t *testing.T) {
	repotest.Run(t, openTestStore)
}
