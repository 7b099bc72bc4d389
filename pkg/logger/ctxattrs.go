package logger

import (
	"context"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyUserID
	keyRoom
)

// WithRequestID — id запроса для всех записей logger.Ctx(ctx).
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithUserID кладёт аутентифицированного пользователя.
func WithUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, keyUserID, uid)
}

// WithRoom кладёт публичный токен комнаты, с которой работает запрос.
func WithRoom(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyRoom, token)
}

// AttrsFromCtx: request_id, user_id, room и trace_id/span_id, что из них есть.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id, ok := RequestID(ctx); ok {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if uid, ok := ctx.Value(keyUserID).(int64); ok {
		attrs = append(attrs, slog.String("user_id", strconv.FormatInt(uid, 10)))
	}
	if room, ok := ctx.Value(keyRoom).(string); ok && room != "" {
		attrs = append(attrs, slog.String("room", room))
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()))
	}
	return attrs
}
