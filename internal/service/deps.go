package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Presence — то, что сервисам нужно от реестра присутствия.
type Presence interface {
	MarkOnline(ctx context.Context, uid domain.UserID)
	MarkOffline(ctx context.Context, uid domain.UserID)
	Refresh(ctx context.Context, uid domain.UserID) bool
	IsOnline(ctx context.Context, uid domain.UserID) bool
	ListOnline(ctx context.Context) []domain.UserID
	Count(ctx context.Context) int
}

// MediaSigner — выдача токенов медиаканала; ("", false), если подпись выключена.
type MediaSigner interface {
	GenerateChannelToken(channel string, uid int64) (string, bool)
	AppID() string
	TTL() time.Duration
}

// RoomEvents получает события допуска для рассылки живым подключениям.
// Реализация не должна блокировать вызывающего.
type RoomEvents interface {
	ParticipantJoined(ctx context.Context, room *domain.Room, uid domain.UserID)
	ParticipantLeft(ctx context.Context, room *domain.Room, uid domain.UserID)
	RoomEnded(ctx context.Context, room *domain.Room, reason string)
	UserEjected(ctx context.Context, uid domain.UserID, reason string)
	ChatPosted(ctx context.Context, room *domain.Room, msg domain.ChatMessage)
}

type NopEvents struct{}

func (NopEvents) ParticipantJoined(context.Context, *domain.Room, domain.UserID) {}
func (NopEvents) ParticipantLeft(context.Context, *domain.Room, domain.UserID)   {}
func (NopEvents) RoomEnded(context.Context, *domain.Room, string)                {}
func (NopEvents) UserEjected(context.Context, domain.UserID, string)             {}
func (NopEvents) ChatPosted(context.Context, *domain.Room, domain.ChatMessage)   {}

var tracer = otel.Tracer("github.com/cwrk-planet/roomgate/internal/service")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Code(err))
	}
	span.End()
}
