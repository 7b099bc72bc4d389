package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Migrate применяет схему; все выражения идемпотентны.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", mapPgError(err))
	}
	return nil
}

// Open поднимает пул, применяет схему и собирает репозитории.
func Open(ctx context.Context, cfg Config) (repository.Set, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return repository.Set{}, fmt.Errorf("postgres pool: %w", mapPgError(err))
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return repository.Set{}, err
	}
	return NewSet(pool), nil
}

func NewSet(pool *pgxpool.Pool) repository.Set {
	return repository.Set{
		Rooms:        NewRoomRepository(pool),
		Participants: NewParticipantRepository(pool),
		Chat:         NewChatRepository(pool),
		Operations:   NewOperationRepository(pool),
		Close:        pool.Close,
	}
}
