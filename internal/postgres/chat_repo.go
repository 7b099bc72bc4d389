package postgres

import (
	"context"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) Save(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.db.Exec(ctx, qInsertMessage, m.ID, m.RoomID, int64(m.UserID), m.Text, m.CreatedAt)
	return mapPgError(err)
}

// History возвращает историю сообщений комнаты с курсорной пагинацией (created_at,id DESC).
func (r *ChatRepository) History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error) {
	cur, err := repository.DecodeCursor(after)
	if err != nil {
		return nil, "", err
	}
	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, qHistory, roomID, createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			m   domain.ChatMessage
			uid int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &uid, &m.Text, &m.CreatedAt); err != nil {
			return nil, "", mapPgError(err)
		}
		m.UserID = domain.UserID(uid)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mapPgError(err)
	}

	var next string
	if n := len(out); n > 0 {
		next = repository.NextCursor(n, limit, out[n-1].CreatedAt, out[n-1].ID)
	}
	return out, next, nil
}
