package service

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

// SessionService — хуки жизненного цикла push-подключения.
type SessionService struct {
	presence Presence
	admit    *AdmissionService
}

func NewSessionService(presence Presence, admit *AdmissionService) *SessionService {
	return &SessionService{presence: presence, admit: admit}
}

// OnConnect отмечает пользователя онлайн и возвращает его активные комнаты.
func (s *SessionService) OnConnect(ctx context.Context, uid domain.UserID) []string {
	s.presence.MarkOnline(ctx, uid)
	rooms, err := s.admit.CurrentRooms(ctx, uid)
	if err != nil {
		logger.Ctx(ctx).Warn("session.onConnect.rooms", slog.Int64("user_id", int64(uid)), slog.Any("err", err))
		return nil
	}
	return rooms
}

func (s *SessionService) OnDisconnect(ctx context.Context, uid domain.UserID) {
	s.presence.MarkOffline(ctx, uid)
}

// OnHeartbeat продлевает присутствие; запись, истёкшую по TTL, не воскрешает.
func (s *SessionService) OnHeartbeat(ctx context.Context, uid domain.UserID) bool {
	return s.presence.Refresh(ctx, uid)
}
