// Package presence — эфемерный реестр «пользователь на связи» с TTL.
package presence

import (
	"context"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

// Store — хранилище записей присутствия. Просроченная запись считается отсутствующей.
type Store interface {
	Set(ctx context.Context, uid domain.UserID, ttl time.Duration) error
	// Touch продлевает только существующую запись и сообщает, была ли она.
	Touch(ctx context.Context, uid domain.UserID, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, uid domain.UserID) error
	Exists(ctx context.Context, uid domain.UserID) (bool, error)
	Members(ctx context.Context) ([]domain.UserID, error)
	Count(ctx context.Context) (int, error)
}
