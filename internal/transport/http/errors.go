package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/pkg/httputil"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindCapacityExceeded:
		return http.StatusTooManyRequests
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError: 5xx логируются, текст внутренних ошибок клиенту не уходит.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error(op, slog.Any("err", err))
		msg = strings.ToLower(http.StatusText(status))
	}
	httputil.Error(r.Context(), w, status, msg, map[string]any{"code": domain.Code(err)})
}
