// Package repository описывает узкие интерфейсы хранилища, через которые
// сервисы работают с комнатами, участниками, чатом и журналом операций.
package repository

import (
	"context"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

type RoomRepository interface {
	// CreateWithHost атомарно проверяет лимит активных комнат, сохраняет комнату
	// и запись создателя-хоста. domain.ErrCapacityExceeded при исчерпании лимита,
	// domain.ErrTokenTaken при коллизии публичного токена.
	CreateWithHost(ctx context.Context, room *domain.Room, maxActive int) error
	TokenExists(ctx context.Context, token string) (bool, error)
	GetByToken(ctx context.Context, token string) (*domain.Room, error)
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	CountByStatus(ctx context.Context, status domain.RoomStatus) (int, error)
	// List — курсорная пагинация (created_at,id DESC); пустой status — все комнаты.
	List(ctx context.Context, status domain.RoomStatus, limit int, cursor string) ([]domain.Room, string, error)
	// ListActiveCreatedBefore — кандидаты на освобождение; нулевой before — все активные.
	ListActiveCreatedBefore(ctx context.Context, before time.Time) ([]domain.Room, error)
	// End переводит комнату в ended и закрывает все активные записи участников.
	// domain.ErrRoomEnded, если комната уже завершена.
	End(ctx context.Context, roomID string, at time.Time) (closed int, err error)
	// EndIfIdle завершает комнату только если она активна и в ней никого нет.
	EndIfIdle(ctx context.Context, roomID string, at time.Time) (bool, error)
}

type ParticipantRepository interface {
	// Join атомарно проверяет статус и вместимость комнаты и добавляет участника.
	// Ошибки: domain.ErrRoomNotFound, domain.ErrRoomEnded, domain.ErrRoomFull, domain.ErrAlreadyJoined.
	Join(ctx context.Context, roomID string, userID domain.UserID, at time.Time) (*domain.Participant, error)
	FindActive(ctx context.Context, roomID string, userID domain.UserID) (*domain.Participant, error)
	CountActive(ctx context.Context, roomID string) (int, error)
	Leave(ctx context.Context, roomID string, userID domain.UserID, at time.Time) error
	// LeaveAll закрывает все активные членства пользователя, возвращает id комнат.
	LeaveAll(ctx context.Context, userID domain.UserID, at time.Time) ([]string, error)
	ListActive(ctx context.Context, roomID string) ([]domain.ParticipantView, error)
	ActiveRoomsOf(ctx context.Context, userID domain.UserID) ([]string, error)
}

type ChatRepository interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
	History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error)
}

type OperationRepository interface {
	Append(ctx context.Context, op *domain.Operation) error
	ListRecent(ctx context.Context, limit int) ([]domain.Operation, error)
}

// Set — набор репозиториев одного хранилища.
type Set struct {
	Rooms        RoomRepository
	Participants ParticipantRepository
	Chat         ChatRepository
	Operations   OperationRepository
	Close        func()
}
