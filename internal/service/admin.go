package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

// --- административные операции: только для роли admin, каждая пишется в журнал ---

func requireAdmin(caller domain.Caller) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

// ForceDisconnectUser закрывает все активные членства пользователя,
// снимает присутствие и рвёт его живое подключение.
func (s *AdmissionService) ForceDisconnectUser(ctx context.Context, caller domain.Caller, uid domain.UserID, reason string) (err error) {
	ctx, span := startSpan(ctx, "AdmissionService.ForceDisconnectUser")
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(caller); err != nil {
		return err
	}
	if uid <= 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	reason = strings.TrimSpace(reason)

	roomIDs, err := s.parts.LeaveAll(ctx, uid, s.opts.Now())
	if err != nil {
		return fmt.Errorf("participants.LeaveAll: %w", err)
	}
	s.presence.MarkOffline(ctx, uid)

	for _, id := range roomIDs {
		room, err := s.rooms.GetByID(ctx, id)
		if err != nil {
			logger.Ctx(ctx).Warn("admin.forceDisconnect.room", slog.String("room_id", id), slog.Any("err", err))
			continue
		}
		s.events.ParticipantLeft(ctx, room, uid)
	}
	s.events.UserEjected(ctx, uid, reason)

	target := uid
	s.audit(ctx, &domain.Operation{
		AdminID:      caller.UserID,
		Kind:         domain.OpForceDisconnect,
		TargetUserID: &target,
		Reason:       reason,
		Detail:       fmt.Sprintf("closed %d membership(s)", len(roomIDs)),
	})
	return nil
}

// ForceEndRoom — завершение без проверки создателя. ErrRoomEnded, если уже завершена.
func (s *AdmissionService) ForceEndRoom(ctx context.Context, caller domain.Caller, token, reason string) (err error) {
	ctx, span := startSpan(ctx, "AdmissionService.ForceEndRoom")
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(caller); err != nil {
		return err
	}
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if !room.IsActive() {
		return domain.ErrRoomEnded
	}
	closed, err := s.rooms.End(ctx, room.ID, s.opts.Now())
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	s.events.RoomEnded(ctx, room, "ended_by_admin")

	s.audit(ctx, &domain.Operation{
		AdminID:      caller.UserID,
		Kind:         domain.OpForceEndRoom,
		TargetRoomID: &room.PublicToken,
		Reason:       reason,
		Detail:       fmt.Sprintf("closed %d membership(s)", closed),
	})
	return nil
}

// ReclaimAllIdleRooms завершает все пустые активные комнаты без учёта порога.
func (s *AdmissionService) ReclaimAllIdleRooms(ctx context.Context, caller domain.Caller) (n int, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.ReclaimAllIdleRooms")
	defer func() { endSpan(span, err) }()

	if err := requireAdmin(caller); err != nil {
		return 0, err
	}
	n, err = s.reclaim(ctx, time.Time{}, "reclaimed_by_admin")
	if err != nil {
		return n, err
	}
	s.audit(ctx, &domain.Operation{
		AdminID: caller.UserID,
		Kind:    domain.OpReclaimIdleRooms,
		Detail:  fmt.Sprintf("ended %d room(s)", n),
	})
	return n, nil
}

// ReclaimIdle завершает пустые комнаты старше threshold. Ошибка по одной
// комнате не прерывает обход.
func (s *AdmissionService) ReclaimIdle(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		return 0, errNoThreshold
	}
	return s.reclaim(ctx, s.opts.Now().Add(-threshold), "idle")
}

func (s *AdmissionService) reclaim(ctx context.Context, cutoff time.Time, reason string) (int, error) {
	rooms, err := s.rooms.ListActiveCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("rooms.ListActiveCreatedBefore: %w", err)
	}
	ended := 0
	for i := range rooms {
		room := &rooms[i]
		ok, err := s.rooms.EndIfIdle(ctx, room.ID, s.opts.Now())
		if err != nil {
			logger.Ctx(ctx).Error("admission.reclaim.room",
				slog.String("room", room.PublicToken), slog.Any("err", err))
			continue
		}
		if !ok {
			continue
		}
		ended++
		s.events.RoomEnded(ctx, room, reason)
	}
	return ended, nil
}

var errNoThreshold = fmt.Errorf("%w: reclaim threshold must be positive", domain.ErrInvalidArgument)

type Stats struct {
	domain.Stats
	Uptime time.Duration
}

func (s *AdmissionService) Stats(ctx context.Context, caller domain.Caller) (Stats, error) {
	if err := requireAdmin(caller); err != nil {
		return Stats{}, err
	}
	active, err := s.rooms.CountByStatus(ctx, domain.RoomActive)
	if err != nil {
		return Stats{}, err
	}
	ended, err := s.rooms.CountByStatus(ctx, domain.RoomEnded)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Stats: domain.Stats{
			ActiveRooms:    active,
			EndedRooms:     ended,
			OnlineUsers:    s.presence.Count(ctx),
			MaxActiveRooms: s.opts.MaxActiveRooms,
			StartedAt:      s.startedAt,
		},
		Uptime: s.opts.Now().Sub(s.startedAt),
	}, nil
}

func (s *AdmissionService) ListOperations(ctx context.Context, caller domain.Caller, limit int) ([]domain.Operation, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.ops.ListRecent(ctx, clampOpsLimit(limit))
}

func clampOpsLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 200:
		return 200
	}
	return limit
}

// audit не отменяет уже выполненную операцию: ошибка журнала только логируется.
func (s *AdmissionService) audit(ctx context.Context, op *domain.Operation) {
	op.CreatedAt = s.opts.Now()
	if err := s.ops.Append(ctx, op); err != nil {
		logger.Ctx(ctx).Error("admin.audit", slog.String("kind", string(op.Kind)), slog.Any("err", err))
		return
	}
	logger.Ctx(ctx).Info("admin.operation",
		slog.String("kind", string(op.Kind)),
		slog.Int64("admin_id", int64(op.AdminID)),
		slog.String("detail", op.Detail))
}
