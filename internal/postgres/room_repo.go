package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

var _ repository.RoomRepository = (*RoomRepository)(nil)

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		rm      domain.Room
		creator int64
		status  string
	)
	err := row.Scan(
		&rm.ID,
		&rm.PublicToken,
		&rm.Name,
		&creator,
		&rm.PasswordHash,
		&rm.MaxParticipants,
		&status,
		&rm.CreatedAt,
		&rm.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	rm.CreatorID = domain.UserID(creator)
	rm.Status = domain.RoomStatus(status)
	return &rm, nil
}

func (r *RoomRepository) CreateWithHost(ctx context.Context, room *domain.Room, maxActive int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// лимит активных комнат глобальный — сериализуем создание через advisory lock
	if _, err := tx.Exec(ctx, qLockRoomCreation, createRoomLockKey); err != nil {
		return mapPgError(err)
	}
	var active int
	if err := tx.QueryRow(ctx, qCountRoomsByStatus, string(domain.RoomActive)).Scan(&active); err != nil {
		return mapPgError(err)
	}
	if maxActive > 0 && active >= maxActive {
		return domain.ErrCapacityExceeded
	}

	if _, err := tx.Exec(ctx, qInsertRoom,
		room.ID,
		room.PublicToken,
		room.Name,
		int64(room.CreatorID),
		room.PasswordHash,
		room.MaxParticipants,
		string(room.Status),
		room.CreatedAt,
	); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, qInsertHost, room.ID, int64(room.CreatorID), room.CreatedAt); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func (r *RoomRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, qTokenExists, token).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

func (r *RoomRepository) GetByToken(ctx context.Context, token string) (*domain.Room, error) {
	return r.getOne(ctx, qRoomByToken, token)
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	return r.getOne(ctx, qRoomByID, id)
}

func (r *RoomRepository) getOne(ctx context.Context, q string, arg any) (*domain.Room, error) {
	rm, err := scanRoom(r.db.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, mapPgError(err)
	}
	return rm, nil
}

func (r *RoomRepository) CountByStatus(ctx context.Context, status domain.RoomStatus) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, qCountRoomsByStatus, string(status)).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return n, nil
}

func (r *RoomRepository) List(ctx context.Context, status domain.RoomStatus, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, qListRooms, string(status), createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, "", mapPgError(err)
		}
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mapPgError(err)
	}

	var next string
	if n := len(rooms); n > 0 {
		last := rooms[n-1]
		next = repository.NextCursor(n, limit, last.CreatedAt, last.ID)
	}
	return rooms, next, nil
}

func (r *RoomRepository) ListActiveCreatedBefore(ctx context.Context, before time.Time) ([]domain.Room, error) {
	var bound any
	if !before.IsZero() {
		bound = before
	}
	rows, err := r.db.Query(ctx, qListActiveCreatedBefore, bound)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		rooms = append(rooms, *rm)
	}
	return rooms, mapPgError(rows.Err())
}

func (r *RoomRepository) End(ctx context.Context, roomID string, at time.Time) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, qEndRoom, roomID, at)
	if err != nil {
		return 0, mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, roomStateError(ctx, tx, roomID)
	}

	closed, err := tx.Exec(ctx, qCloseRoomParticipants, roomID, at)
	if err != nil {
		return 0, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, mapPgError(err)
	}
	return int(closed.RowsAffected()), nil
}

func (r *RoomRepository) EndIfIdle(ctx context.Context, roomID string, at time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status string
		max    int
	)
	if err := tx.QueryRow(ctx, qLockRoom, roomID).Scan(&status, &max); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrRoomNotFound
		}
		return false, mapPgError(err)
	}
	if domain.RoomStatus(status) != domain.RoomActive {
		return false, nil
	}

	// счётчик читается после блокировки: видит все закоммиченные Join
	var active int
	if err := tx.QueryRow(ctx, qCountActive, roomID).Scan(&active); err != nil {
		return false, mapPgError(err)
	}
	if active > 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, qEndRoom, roomID, at); err != nil {
		return false, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

// roomStateError объясняет, почему UPDATE не затронул комнату.
func roomStateError(ctx context.Context, q querier, roomID string) error {
	var status string
	if err := q.QueryRow(ctx, qRoomStatus, roomID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRoomNotFound
		}
		return mapPgError(err)
	}
	if domain.RoomStatus(status) == domain.RoomEnded {
		return domain.ErrRoomEnded
	}
	return fmt.Errorf("room %s in unexpected status %q", roomID, status)
}
