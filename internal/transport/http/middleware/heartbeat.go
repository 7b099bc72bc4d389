package httpmw

import (
	"context"
	"net/http"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

// HeartbeatToucher продлевает присутствие пользователя.
type HeartbeatToucher interface {
	OnHeartbeat(ctx context.Context, uid domain.UserID) bool
}

// HeartbeatMiddleware: любой аутентифицированный запрос продлевает присутствие.
func HeartbeatMiddleware(t HeartbeatToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, ok := CallerFromCtx(r.Context()); ok {
				// best-effort: ошибки не прерывают запрос
				t.OnHeartbeat(r.Context(), c.UserID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
