package postgres

import (
	"context"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OperationRepository struct {
	db *pgxpool.Pool
}

func NewOperationRepository(db *pgxpool.Pool) *OperationRepository {
	return &OperationRepository{db: db}
}

var _ repository.OperationRepository = (*OperationRepository)(nil)

func (r *OperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	var target *int64
	if op.TargetUserID != nil {
		v := int64(*op.TargetUserID)
		target = &v
	}
	err := r.db.QueryRow(ctx, qInsertOperation,
		int64(op.AdminID),
		string(op.Kind),
		target,
		op.TargetRoomID,
		op.Reason,
		op.Detail,
		op.CreatedAt,
	).Scan(&op.ID)
	return mapPgError(err)
}

func (r *OperationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Operation, error) {
	rows, err := r.db.Query(ctx, qListOperations, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Operation
	for rows.Next() {
		var (
			op     domain.Operation
			admin  int64
			kind   string
			target *int64
		)
		if err := rows.Scan(&op.ID, &admin, &kind, &target, &op.TargetRoomID, &op.Reason, &op.Detail, &op.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		op.AdminID = domain.UserID(admin)
		op.Kind = domain.OperationKind(kind)
		if target != nil {
			uid := domain.UserID(*target)
			op.TargetUserID = &uid
		}
		out = append(out, op)
	}
	return out, mapPgError(rows.Err())
}
