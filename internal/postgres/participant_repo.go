package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

var _ repository.ParticipantRepository = (*ParticipantRepository)(nil)

// Join защищён от гонок по max_participants: строка комнаты блокируется,
// два параллельных Join по одной комнате не пробьют лимит.
func (r *ParticipantRepository) Join(ctx context.Context, roomID string, userID domain.UserID, at time.Time) (*domain.Participant, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status string
		max    int
	)
	if err := tx.QueryRow(ctx, qLockRoom, roomID).Scan(&status, &max); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, mapPgError(err)
	}
	if domain.RoomStatus(status) != domain.RoomActive {
		return nil, domain.ErrRoomEnded
	}

	if _, err := findActive(ctx, tx, roomID, userID); err == nil {
		return nil, domain.ErrAlreadyJoined
	} else if !errors.Is(err, domain.ErrNotInRoom) {
		return nil, err
	}

	var count int
	if err := tx.QueryRow(ctx, qCountActive, roomID).Scan(&count); err != nil {
		return nil, mapPgError(err)
	}
	if count >= max {
		return nil, domain.ErrRoomFull
	}

	p := &domain.Participant{RoomID: roomID, UserID: userID, JoinedAt: at}
	if err := tx.QueryRow(ctx, qInsertParticipant, roomID, int64(userID), at).Scan(&p.ID); err != nil {
		return nil, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

func (r *ParticipantRepository) FindActive(ctx context.Context, roomID string, userID domain.UserID) (*domain.Participant, error) {
	return findActive(ctx, r.db, roomID, userID)
}

func findActive(ctx context.Context, q querier, roomID string, userID domain.UserID) (*domain.Participant, error) {
	var (
		p   domain.Participant
		uid int64
	)
	err := q.QueryRow(ctx, qFindActive, roomID, int64(userID)).
		Scan(&p.ID, &p.RoomID, &uid, &p.JoinedAt, &p.LeftAt, &p.IsHost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotInRoom
		}
		return nil, mapPgError(err)
	}
	p.UserID = domain.UserID(uid)
	return &p, nil
}

func (r *ParticipantRepository) CountActive(ctx context.Context, roomID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, qCountActive, roomID).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return n, nil
}

func (r *ParticipantRepository) Leave(ctx context.Context, roomID string, userID domain.UserID, at time.Time) error {
	cmd, err := r.db.Exec(ctx, qLeave, roomID, int64(userID), at)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotInRoom
	}
	return nil
}

func (r *ParticipantRepository) LeaveAll(ctx context.Context, userID domain.UserID, at time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, qLeaveAll, int64(userID), at)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectIDs(rows)
}

func (r *ParticipantRepository) ActiveRoomsOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	rows, err := r.db.Query(ctx, qActiveRoomsOf, int64(userID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapPgError(err)
		}
		ids = append(ids, id)
	}
	return ids, mapPgError(rows.Err())
}

func (r *ParticipantRepository) ListActive(ctx context.Context, roomID string) ([]domain.ParticipantView, error) {
	rows, err := r.db.Query(ctx, qListActiveDetailed, roomID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.ParticipantView, 0, domain.MaxParticipants)
	for rows.Next() {
		var (
			v   domain.ParticipantView
			uid int64
		)
		if err := rows.Scan(&uid, &v.DisplayName, &v.AvatarURL, &v.JoinedAt, &v.IsHost); err != nil {
			return nil, mapPgError(err)
		}
		v.UserID = domain.UserID(uid)
		out = append(out, v)
	}
	return out, mapPgError(rows.Err())
}
