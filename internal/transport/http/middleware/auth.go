package httpmw

import (
	"context"
	"net/http"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/pkg/httputil"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

type ctxKey string

const ctxKeyCaller ctxKey = "caller"

// AuthMiddleware: Bearer-токен обязателен; личность определяет Authenticator
// (проверка JWT или доверенные заголовки шлюза).
func AuthMiddleware(auth identity.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := identity.BearerToken(r.Header.Get("Authorization"))
			caller, err := auth.Authenticate(r.Context(), identity.Credentials{
				Token:  token,
				UserID: r.Header.Get("X-User-ID"),
				Role:   r.Header.Get("X-User-Role"),
			})
			if err != nil {
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthenticated",
					map[string]any{"code": domain.Code(err)})
				return
			}
			ctx := logger.WithUserID(WithCaller(r.Context(), caller), int64(caller.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

func CallerFromCtx(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(domain.Caller)
	return c, ok
}

// RequireAdmin пропускает только роль admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromCtx(r.Context())
		if !ok || !c.IsAdmin() {
			httputil.Error(r.Context(), w, http.StatusForbidden, "admin role required",
				map[string]any{"code": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
