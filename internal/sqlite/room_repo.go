package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"
)

const roomColumns = `id, public_token, name, creator_id, password_hash, max_participants, status, created_at, ended_at`

type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

var _ repository.RoomRepository = (*RoomRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	var (
		rm        domain.Room
		creator   int64
		status    string
		hash      sql.NullString
		createdAt int64
		endedAt   sql.NullInt64
	)
	if err := row.Scan(&rm.ID, &rm.PublicToken, &rm.Name, &creator, &hash, &rm.MaxParticipants, &status, &createdAt, &endedAt); err != nil {
		return nil, err
	}
	rm.CreatorID = domain.UserID(creator)
	rm.Status = domain.RoomStatus(status)
	rm.PasswordHash = nullString(hash)
	rm.CreatedAt = fromMillis(createdAt)
	rm.EndedAt = fromNullMillis(endedAt)
	return &rm, nil
}

func (r *RoomRepository) CreateWithHost(ctx context.Context, room *domain.Room, maxActive int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE status = ?`, string(domain.RoomActive)).Scan(&active); err != nil {
		return mapError(err)
	}
	if maxActive > 0 && active >= maxActive {
		return domain.ErrCapacityExceeded
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id, public_token, name, creator_id, password_hash, max_participants, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.PublicToken, room.Name, int64(room.CreatorID), room.PasswordHash,
		room.MaxParticipants, string(room.Status), toMillis(room.CreatedAt),
	); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, user_id, joined_at, is_host) VALUES (?, ?, ?, 1)`,
		room.ID, int64(room.CreatorID), toMillis(room.CreatedAt),
	); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit())
}

func (r *RoomRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE public_token = ?)`, token).Scan(&exists)
	return exists, mapError(err)
}

func (r *RoomRepository) GetByToken(ctx context.Context, token string) (*domain.Room, error) {
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM rooms WHERE public_token = ?`, token)
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	return getRoom(ctx, r.db, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
}

func getRoom(ctx context.Context, q querier, query string, arg any) (*domain.Room, error) {
	rm, err := scanRoom(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, mapError(err)
	}
	return rm, nil
}

func (r *RoomRepository) CountByStatus(ctx context.Context, status domain.RoomStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE status = ?`, string(status)).Scan(&n)
	return n, mapError(err)
}

func (r *RoomRepository) List(ctx context.Context, status domain.RoomStatus, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}
	var (
		hasCursor bool
		createdAt int64
		id        string
	)
	if cur != nil {
		hasCursor = true
		createdAt = toMillis(cur.CreatedAt)
		id = cur.ID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE (? = '' OR status = ?)
		  AND (? = 0 OR created_at < ? OR (created_at = ? AND id < ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		string(status), string(status), hasCursor, createdAt, createdAt, id, limit)
	if err != nil {
		return nil, "", mapError(err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if n := len(rooms); n > 0 {
		next = repository.NextCursor(n, limit, rooms[n-1].CreatedAt, rooms[n-1].ID)
	}
	return rooms, next, nil
}

func (r *RoomRepository) ListActiveCreatedBefore(ctx context.Context, before time.Time) ([]domain.Room, error) {
	bounded := !before.IsZero()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE status = 'active' AND (? = 0 OR created_at < ?)
		ORDER BY created_at ASC`, bounded, toMillis(before))
	if err != nil {
		return nil, mapError(err)
	}
	return collectRooms(rows)
}

func collectRooms(rows *sql.Rows) ([]domain.Room, error) {
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, *rm)
	}
	return rooms, mapError(rows.Err())
}

func (r *RoomRepository) End(ctx context.Context, roomID string, at time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET status = 'ended', ended_at = ? WHERE id = ? AND status = 'active'`,
		toMillis(at), roomID)
	if err != nil {
		return 0, mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		rm, err := getRoom(ctx, tx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, roomID)
		if err != nil {
			return 0, err
		}
		if !rm.IsActive() {
			return 0, domain.ErrRoomEnded
		}
		return 0, errors.New("room end: no rows updated")
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE room_participants SET left_at = ? WHERE room_id = ? AND left_at IS NULL`,
		toMillis(at), roomID)
	if err != nil {
		return 0, mapError(err)
	}
	closed, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, mapError(err)
	}
	return int(closed), nil
}

func (r *RoomRepository) EndIfIdle(ctx context.Context, roomID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET status = 'ended', ended_at = ?
		WHERE id = ? AND status = 'active'
		  AND NOT EXISTS (SELECT 1 FROM room_participants WHERE room_id = ? AND left_at IS NULL)`,
		toMillis(at), roomID, roomID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}
