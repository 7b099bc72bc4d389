package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/oklog/ulid/v2"
)

type ChatService struct {
	rooms  repository.RoomRepository
	parts  repository.ParticipantRepository
	chat   repository.ChatRepository
	events RoomEvents
	now    func() time.Time
}

func NewChatService(repos repository.Set, events RoomEvents) *ChatService {
	if events == nil {
		events = NopEvents{}
	}
	return &ChatService{
		rooms:  repos.Rooms,
		parts:  repos.Participants,
		chat:   repos.Chat,
		events: events,
		now:    time.Now,
	}
}

// Post сохраняет сообщение активного участника и рассылает его комнате.
func (s *ChatService) Post(ctx context.Context, token string, uid domain.UserID, text string) (_ domain.ChatMessage, err error) {
	ctx, span := startSpan(ctx, "ChatService.Post")
	defer func() { endSpan(span, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty message", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > domain.MaxChatMessageLen {
		return domain.ChatMessage{}, fmt.Errorf("%w: message too long", domain.ErrInvalidArgument)
	}

	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if !room.IsActive() {
		return domain.ChatMessage{}, domain.ErrRoomEnded
	}
	if _, err := s.parts.FindActive(ctx, room.ID, uid); err != nil {
		return domain.ChatMessage{}, err
	}

	now := s.now()
	msg := domain.ChatMessage{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		RoomID:    room.ID,
		UserID:    uid,
		Text:      text,
		CreatedAt: now,
	}
	if err := s.chat.Save(ctx, &msg); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("chat.Save: %w", err)
	}
	s.events.ChatPosted(ctx, room, msg)
	return msg, nil
}

// History — от новых к старым, курсор after из предыдущей страницы.
func (s *ChatService) History(ctx context.Context, token, after string, limit int) ([]domain.ChatMessage, string, error) {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	return s.chat.History(ctx, room.ID, after, repository.ClampLimit(limit, 50, 100))
}
