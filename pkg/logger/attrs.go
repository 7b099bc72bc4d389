package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// ensureInstanceID: явное значение, затем ROOMGATE_INSTANCE_ID (имя пода),
// иначе hostname с коротким суффиксом.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	if env := os.Getenv("ROOMGATE_INSTANCE_ID"); env != "" {
		return env
	}
	hn, _ := os.Hostname()
	return hn + "-" + uuid.NewString()[:8]
}

func commonAttrs(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Int("pid", os.Getpid()),
		slog.Time("started_at", time.Now()),
	}
	return append(attrs, cfg.Extra...)
}
