package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

type touches struct{ ids []domain.UserID }

func (t *touches) OnHeartbeat(_ context.Context, uid domain.UserID) bool {
	t.ids = append(t.ids, uid)
	return true
}

func TestAuthHeartbeatAdminChain(t *testing.T) {
	tt := &touches{}
	var seen domain.Caller
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware(identity.TrustedHeaders{})(HeartbeatMiddleware(tt)(RequireAdmin(final)))

	cases := []struct {
		name   string
		token  string
		uid    string
		role   string
		status int
	}{
		{"no token", "", "1", "admin", http.StatusUnauthorized},
		{"no user", "Bearer x", "", "", http.StatusUnauthorized},
		{"user role", "Bearer x", "5", "user", http.StatusForbidden},
		{"admin", "Bearer x", "7", "admin", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			req.Header.Set("X-User-ID", tc.uid)
			req.Header.Set("X-User-Role", tc.role)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
	if seen.UserID != 7 || !seen.IsAdmin() {
		t.Fatalf("caller = %+v", seen)
	}
	if len(tt.ids) != 2 || tt.ids[0] != 5 || tt.ids[1] != 7 {
		t.Fatalf("heartbeats = %v", tt.ids)
	}
}

func TestAuthMiddleware_AddsUserToLogContext(t *testing.T) {
	var attrs map[string]string
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs = map[string]string{}
		for _, a := range logger.AttrsFromCtx(r.Context()) {
			attrs[a.Key] = a.Value.String()
		}
	})
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer x")
	req.Header.Set("X-User-ID", "12")
	AuthMiddleware(identity.TrustedHeaders{})(final).ServeHTTP(httptest.NewRecorder(), req)

	if attrs["user_id"] != "12" {
		t.Fatalf("log attrs = %v", attrs)
	}
}
