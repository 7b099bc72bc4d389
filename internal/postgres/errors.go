package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/*
абстрактный слой над *pgxpool.Pool / pgx.Tx,
чтобы запросы можно было делать атомарно, а не по одному
*/
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"

	constraintPublicToken = "rooms_public_token_key"
	constraintActiveJoin  = "room_participants_active_uniq"
)

// mapPgError переводит ошибки драйвера в доменные.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == codeUniqueViolation {
			switch pgErr.ConstraintName {
			case constraintPublicToken:
				return fmt.Errorf("%w: %s", domain.ErrTokenTaken, pgErr.Message)
			case constraintActiveJoin:
				return fmt.Errorf("%w: %s", domain.ErrAlreadyJoined, pgErr.Message)
			}
		}
		if pgErr.Code == codeLockNotAvailable {
			return fmt.Errorf("%w: %s", domain.ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return err
}
