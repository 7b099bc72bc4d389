package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"
)

type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

var _ repository.ParticipantRepository = (*ParticipantRepository)(nil)

// вставка проходит, только если активных участников меньше max_participants
const qConditionalJoin = `
	INSERT INTO room_participants (room_id, user_id, joined_at, is_host)
	SELECT ?, ?, ?, 0
	WHERE (SELECT COUNT(*) FROM room_participants WHERE room_id = ? AND left_at IS NULL)
	    < (SELECT max_participants FROM rooms WHERE id = ? AND status = 'active')`

func (r *ParticipantRepository) Join(ctx context.Context, roomID string, userID domain.UserID, at time.Time) (*domain.Participant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM rooms WHERE id = ?`, roomID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, mapError(err)
	}
	if domain.RoomStatus(status) != domain.RoomActive {
		return nil, domain.ErrRoomEnded
	}

	if _, err := findActive(ctx, tx, roomID, userID); err == nil {
		return nil, domain.ErrAlreadyJoined
	} else if !errors.Is(err, domain.ErrNotInRoom) {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, qConditionalJoin, roomID, int64(userID), toMillis(at), roomID, roomID)
	if err != nil {
		return nil, mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrRoomFull
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return &domain.Participant{ID: id, RoomID: roomID, UserID: userID, JoinedAt: fromMillis(toMillis(at))}, nil
}

func (r *ParticipantRepository) FindActive(ctx context.Context, roomID string, userID domain.UserID) (*domain.Participant, error) {
	return findActive(ctx, r.db, roomID, userID)
}

func findActive(ctx context.Context, q querier, roomID string, userID domain.UserID) (*domain.Participant, error) {
	var (
		p        domain.Participant
		uid      int64
		joinedAt int64
		leftAt   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, joined_at, left_at, is_host
		FROM room_participants
		WHERE room_id = ? AND user_id = ? AND left_at IS NULL`,
		roomID, int64(userID)).Scan(&p.ID, &p.RoomID, &uid, &joinedAt, &leftAt, &p.IsHost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotInRoom
		}
		return nil, mapError(err)
	}
	p.UserID = domain.UserID(uid)
	p.JoinedAt = fromMillis(joinedAt)
	p.LeftAt = fromNullMillis(leftAt)
	return &p, nil
}

func (r *ParticipantRepository) CountActive(ctx context.Context, roomID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_participants WHERE room_id = ? AND left_at IS NULL`, roomID).Scan(&n)
	return n, mapError(err)
}

func (r *ParticipantRepository) Leave(ctx context.Context, roomID string, userID domain.UserID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE room_participants SET left_at = ? WHERE room_id = ? AND user_id = ? AND left_at IS NULL`,
		toMillis(at), roomID, int64(userID))
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotInRoom
	}
	return nil
}

func (r *ParticipantRepository) LeaveAll(ctx context.Context, userID domain.UserID, at time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE room_participants SET left_at = ? WHERE user_id = ? AND left_at IS NULL RETURNING room_id`,
		toMillis(at), int64(userID))
	if err != nil {
		return nil, mapError(err)
	}
	return collectIDs(rows)
}

func (r *ParticipantRepository) ActiveRoomsOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_id FROM room_participants WHERE user_id = ? AND left_at IS NULL ORDER BY joined_at ASC`,
		int64(userID))
	if err != nil {
		return nil, mapError(err)
	}
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}

func (r *ParticipantRepository) ListActive(ctx context.Context, roomID string) ([]domain.ParticipantView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.user_id, u.display_name, u.avatar_url, p.joined_at, p.is_host
		FROM room_participants AS p
		LEFT JOIN users AS u ON u.id = p.user_id
		WHERE p.room_id = ? AND p.left_at IS NULL
		ORDER BY p.joined_at ASC, p.id ASC`, roomID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.ParticipantView, 0, domain.MaxParticipants)
	for rows.Next() {
		var (
			v        domain.ParticipantView
			uid      int64
			name     sql.NullString
			avatar   sql.NullString
			joinedAt int64
		)
		if err := rows.Scan(&uid, &name, &avatar, &joinedAt, &v.IsHost); err != nil {
			return nil, mapError(err)
		}
		v.UserID = domain.UserID(uid)
		v.DisplayName = nullString(name)
		v.AvatarURL = nullString(avatar)
		v.JoinedAt = fromMillis(joinedAt)
		out = append(out, v)
	}
	return out, mapError(rows.Err())
}
