package sqlite

import (
	"context"
	"database/sql"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"
)

type OperationRepository struct {
	db *sql.DB
}

func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

var _ repository.OperationRepository = (*OperationRepository)(nil)

func (r *OperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	var target sql.NullInt64
	if op.TargetUserID != nil {
		target = sql.NullInt64{Int64: int64(*op.TargetUserID), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_operations (admin_id, kind, target_user_id, target_room_id, reason, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(op.AdminID), string(op.Kind), target, op.TargetRoomID, op.Reason, op.Detail, toMillis(op.CreatedAt))
	if err != nil {
		return mapError(err)
	}
	op.ID, err = res.LastInsertId()
	return mapError(err)
}

func (r *OperationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, admin_id, kind, target_user_id, target_room_id, reason, detail, created_at
		FROM admin_operations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []domain.Operation
	for rows.Next() {
		var (
			op        domain.Operation
			admin     int64
			kind      string
			target    sql.NullInt64
			room      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&op.ID, &admin, &kind, &target, &room, &op.Reason, &op.Detail, &createdAt); err != nil {
			return nil, mapError(err)
		}
		op.AdminID = domain.UserID(admin)
		op.Kind = domain.OperationKind(kind)
		if target.Valid {
			uid := domain.UserID(target.Int64)
			op.TargetUserID = &uid
		}
		op.TargetRoomID = nullString(room)
		op.CreatedAt = fromMillis(createdAt)
		out = append(out, op)
	}
	return out, mapError(rows.Err())
}
