package sqlite

import (
	"context"
	"database/sql"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) Save(ctx context.Context, m *domain.ChatMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_messages (id, room_id, user_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, int64(m.UserID), m.Text, toMillis(m.CreatedAt))
	return mapError(err)
}

func (r *ChatRepository) History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error) {
	cur, err := repository.DecodeCursor(after)
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
		SELECT id, room_id, user_id, text, created_at
		FROM room_messages
		WHERE room_id = ?
		  AND (? = 0 OR created_at < ? OR (created_at = ? AND id < ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		roomID, hasCursor, createdAt, createdAt, id, limit)
	if err != nil {
		return nil, "", mapError(err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var (
			m   domain.ChatMessage
			uid int64
			ts  int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &uid, &m.Text, &ts); err != nil {
			return nil, "", mapError(err)
		}
		m.UserID = domain.UserID(uid)
		m.CreatedAt = fromMillis(ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mapError(err)
	}

	var next string
	if n := len(out); n > 0 {
		next = repository.NextCursor(n, limit, out[n-1].CreatedAt, out[n-1].ID)
	}
	return out, next, nil
}
