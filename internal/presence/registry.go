package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

const DefaultTTL = 5 * time.Minute

// Registry — фасад над Store. Ошибки хранилища не пробрасываются: при
// недоступности пользователь считается офлайн, а допуск в комнаты не блокируется.
type Registry struct {
	store Store
	ttl   time.Duration
}

func NewRegistry(store Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{store: store, ttl: ttl}
}

func (r *Registry) TTL() time.Duration { return r.ttl }

func (r *Registry) MarkOnline(ctx context.Context, uid domain.UserID) {
	if err := r.store.Set(ctx, uid, r.ttl); err != nil {
		logger.Ctx(ctx).Warn("presence.markOnline", slog.Int64("user_id", int64(uid)), slog.Any("err", err))
	}
}

func (r *Registry) MarkOffline(ctx context.Context, uid domain.UserID) {
	if err := r.store.Delete(ctx, uid); err != nil {
		logger.Ctx(ctx).Warn("presence.markOffline", slog.Int64("user_id", int64(uid)), slog.Any("err", err))
	}
}

// Refresh продлевает существующую запись, но не создаёт новую.
func (r *Registry) Refresh(ctx context.Context, uid domain.UserID) bool {
	ok, err := r.store.Touch(ctx, uid, r.ttl)
	if err != nil {
		logger.Ctx(ctx).Warn("presence.refresh", slog.Int64("user_id", int64(uid)), slog.Any("err", err))
		return false
	}
	return ok
}

func (r *Registry) IsOnline(ctx context.Context, uid domain.UserID) bool {
	ok, err := r.store.Exists(ctx, uid)
	if err != nil {
		logger.Ctx(ctx).Warn("presence.isOnline", slog.Int64("user_id", int64(uid)), slog.Any("err", err))
		return false
	}
	return ok
}

func (r *Registry) ListOnline(ctx context.Context) []domain.UserID {
	ids, err := r.store.Members(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn("presence.listOnline", slog.Any("err", err))
		return nil
	}
	return ids
}

func (r *Registry) Count(ctx context.Context) int {
	n, err := r.store.Count(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn("presence.count", slog.Any("err", err))
		return 0
	}
	return n
}
