package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/roomgate/pkg/logger"
)

const (
	DefaultReclaimInterval = 5 * time.Minute
	DefaultIdleThreshold   = 2 * time.Hour
)

type idleReclaimer interface {
	ReclaimIdle(ctx context.Context, threshold time.Duration) (int, error)
}

// Reclaimer периодически завершает пустые комнаты старше порога.
// Запускается и останавливается жизненным циклом приложения.
type Reclaimer struct {
	svc       idleReclaimer
	interval  time.Duration
	threshold time.Duration
}

func NewReclaimer(svc *AdmissionService, interval, threshold time.Duration) *Reclaimer {
	return newReclaimer(svc, interval, threshold)
}

func newReclaimer(svc idleReclaimer, interval, threshold time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return &Reclaimer{svc: svc, interval: interval, threshold: threshold}
}

// Sweep — один проход.
func (r *Reclaimer) Sweep(ctx context.Context) int {
	n, err := r.svc.ReclaimIdle(ctx, r.threshold)
	if err != nil {
		logger.Ctx(ctx).Error("reclaimer.sweep", slog.Any("err", err))
		return n
	}
	logger.Ctx(ctx).Info("reclaimer.sweep", slog.Int("ended", n), slog.Duration("threshold", r.threshold))
	return n
}

// Run блокируется до отмены ctx.
func (r *Reclaimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
