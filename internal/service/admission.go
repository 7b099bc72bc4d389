package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"
	"github.com/cwrk-planet/roomgate/internal/security"
	"github.com/cwrk-planet/roomgate/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MaxRoomNameLen       = 100
	DefaultTokenAttempts = 10
	DefaultMaxActive     = 100
)

type Options struct {
	MaxActiveRooms int
	TokenAttempts  int
	Bcrypt         security.BcryptConfig
	Events         RoomEvents
	Now            func() time.Time
	NewToken       func() string
}

func (o *Options) setDefaults() {
	if o.MaxActiveRooms <= 0 {
		o.MaxActiveRooms = DefaultMaxActive
	}
	if o.TokenAttempts <= 0 {
		o.TokenAttempts = DefaultTokenAttempts
	}
	if o.Events == nil {
		o.Events = NopEvents{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewToken == nil {
		o.NewToken = security.NewPublicToken
	}
}

// AdmissionService — жизненный цикл комнат и членства: лимит активных комнат,
// вместимость, пароль, права хоста. Проверка вместимости и вставка выполняются
// хранилищем одним атомарным шагом.
type AdmissionService struct {
	rooms    repository.RoomRepository
	parts    repository.ParticipantRepository
	ops      repository.OperationRepository
	presence Presence
	media    MediaSigner
	events   RoomEvents
	opts     Options

	startedAt time.Time
}

func NewAdmissionService(repos repository.Set, presence Presence, media MediaSigner, opts Options) *AdmissionService {
	opts.setDefaults()
	return &AdmissionService{
		rooms:     repos.Rooms,
		parts:     repos.Participants,
		ops:       repos.Operations,
		presence:  presence,
		media:     media,
		events:    opts.Events,
		opts:      opts,
		startedAt: opts.Now(),
	}
}

type CreateRoomInput struct {
	Name            string
	Password        string
	MaxParticipants int // 0 — по умолчанию
}

// CreateRoom создаёт активную комнату и запись создателя-хоста.
func (s *AdmissionService) CreateRoom(ctx context.Context, creator domain.UserID, in CreateRoomInput) (_ domain.RoomSummary, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.CreateRoom")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.RoomSummary{}, fmt.Errorf("%w: room name is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLen {
		return domain.RoomSummary{}, fmt.Errorf("%w: room name too long", domain.ErrInvalidArgument)
	}
	capacity := in.MaxParticipants
	if capacity == 0 {
		capacity = domain.DefaultParticipants
	}
	if capacity < domain.MinParticipants || capacity > domain.MaxParticipants {
		return domain.RoomSummary{}, fmt.Errorf("%w: maxParticipants must be within [%d, %d]",
			domain.ErrInvalidArgument, domain.MinParticipants, domain.MaxParticipants)
	}

	room := &domain.Room{
		ID:              uuid.NewString(),
		Name:            name,
		CreatorID:       creator,
		MaxParticipants: capacity,
		Status:          domain.RoomActive,
		CreatedAt:       s.opts.Now(),
	}
	if in.Password != "" {
		hash, err := security.HashPassword(in.Password, &s.opts.Bcrypt)
		if err != nil {
			return domain.RoomSummary{}, err
		}
		room.PasswordHash = &hash
	}

	// токен проверяется заранее, уникальный индекс ловит оставшуюся гонку
	for attempt := 0; ; attempt++ {
		if attempt >= s.opts.TokenAttempts {
			return domain.RoomSummary{}, fmt.Errorf("generate public token: %w", domain.ErrTokenTaken)
		}
		room.PublicToken = s.opts.NewToken()
		taken, err := s.rooms.TokenExists(ctx, room.PublicToken)
		if err != nil {
			return domain.RoomSummary{}, fmt.Errorf("rooms.TokenExists: %w", err)
		}
		if taken {
			continue
		}
		err = s.rooms.CreateWithHost(ctx, room, s.opts.MaxActiveRooms)
		if errors.Is(err, domain.ErrTokenTaken) {
			continue
		}
		if err != nil {
			return domain.RoomSummary{}, fmt.Errorf("rooms.CreateWithHost: %w", err)
		}
		break
	}

	span.SetAttributes(attribute.String("room.token", room.PublicToken))
	logger.Ctx(ctx).Info("admission.createRoom",
		slog.String("room", room.PublicToken),
		slog.Int64("creator_id", int64(creator)),
		slog.Int("max", capacity))
	s.events.ParticipantJoined(ctx, room, creator)

	return domain.NewRoomSummary(room, 1), nil
}

// GetRoom — сводка комнаты с текущим числом участников.
func (s *AdmissionService) GetRoom(ctx context.Context, token string) (domain.RoomSummary, error) {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	return s.summary(ctx, room)
}

func (s *AdmissionService) summary(ctx context.Context, room *domain.Room) (domain.RoomSummary, error) {
	n := 0
	if room.IsActive() {
		var err error
		if n, err = s.parts.CountActive(ctx, room.ID); err != nil {
			return domain.RoomSummary{}, fmt.Errorf("participants.CountActive: %w", err)
		}
	}
	return domain.NewRoomSummary(room, n), nil
}

// ListRooms — комнаты с курсорной пагинацией; пустой status — все.
func (s *AdmissionService) ListRooms(ctx context.Context, status domain.RoomStatus, limit int, cursor string) ([]domain.RoomSummary, string, error) {
	limit = repository.ClampLimit(limit, 20, 50)
	rooms, next, err := s.rooms.List(ctx, status, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]domain.RoomSummary, 0, len(rooms))
	for i := range rooms {
		sum, err := s.summary(ctx, &rooms[i])
		if err != nil {
			return nil, "", err
		}
		out = append(out, sum)
	}
	return out, next, nil
}

// JoinRoom. Повторный вход при активном членстве — успешный no-op.
func (s *AdmissionService) JoinRoom(ctx context.Context, token string, uid domain.UserID, password string) (_ *domain.Participant, err error) {
	ctx, span := startSpan(ctx, "AdmissionService.JoinRoom")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("room.token", token), attribute.Int64("user.id", int64(uid)))

	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		return nil, domain.ErrRoomEnded
	}
	if room.HasPassword() {
		if err := security.ComparePassword(*room.PasswordHash, password); err != nil {
			return nil, err
		}
	}

	if p, err := s.parts.FindActive(ctx, room.ID, uid); err == nil {
		return p, nil
	} else if !errors.Is(err, domain.ErrNotInRoom) {
		return nil, fmt.Errorf("participants.FindActive: %w", err)
	}

	p, err := s.parts.Join(ctx, room.ID, uid, s.opts.Now())
	if errors.Is(err, domain.ErrAlreadyJoined) {
		// параллельный вход того же пользователя успел раньше
		return s.parts.FindActive(ctx, room.ID, uid)
	}
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("admission.joinRoom", slog.String("room", token), slog.Int64("user_id", int64(uid)))
	s.events.ParticipantJoined(ctx, room, uid)
	return p, nil
}

func (s *AdmissionService) LeaveRoom(ctx context.Context, token string, uid domain.UserID) error {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.parts.Leave(ctx, room.ID, uid, s.opts.Now()); err != nil {
		return err
	}
	logger.Ctx(ctx).Info("admission.leaveRoom", slog.String("room", token), slog.Int64("user_id", int64(uid)))
	s.events.ParticipantLeft(ctx, room, uid)
	return nil
}

// EndRoom доступен только создателю. Повторное завершение — no-op.
func (s *AdmissionService) EndRoom(ctx context.Context, token string, caller domain.UserID) (err error) {
	ctx, span := startSpan(ctx, "AdmissionService.EndRoom")
	defer func() { endSpan(span, err) }()

	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if room.CreatorID != caller {
		return domain.ErrForbidden
	}
	if !room.IsActive() {
		return nil
	}
	closed, err := s.rooms.End(ctx, room.ID, s.opts.Now())
	if errors.Is(err, domain.ErrRoomEnded) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info("admission.endRoom", slog.String("room", token), slog.Int("closed", closed))
	s.events.RoomEnded(ctx, room, "ended_by_host")
	return nil
}

// CheckHost — проверка прав хоста для записи: ErrRoomNotFound или ErrForbidden.
func (s *AdmissionService) CheckHost(ctx context.Context, token string, caller domain.UserID) (*domain.Room, error) {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != caller {
		return nil, domain.ErrForbidden
	}
	return room, nil
}

func (s *AdmissionService) ListParticipants(ctx context.Context, token string) ([]domain.ParticipantView, error) {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.parts.ListActive(ctx, room.ID)
}

type MediaToken struct {
	Token     *string
	AppID     string
	Channel   string
	UID       domain.UserID
	ExpiresIn time.Duration
}

// MediaToken выдаётся только активному участнику активной комнаты.
func (s *AdmissionService) MediaToken(ctx context.Context, token string, uid domain.UserID) (MediaToken, error) {
	room, err := s.rooms.GetByToken(ctx, token)
	if err != nil {
		return MediaToken{}, err
	}
	if !room.IsActive() {
		return MediaToken{}, domain.ErrRoomEnded
	}
	if _, err := s.parts.FindActive(ctx, room.ID, uid); err != nil {
		return MediaToken{}, err
	}

	out := MediaToken{Channel: room.PublicToken, UID: uid}
	if s.media == nil {
		return out, nil
	}
	out.AppID = s.media.AppID()
	out.ExpiresIn = s.media.TTL()
	if tok, ok := s.media.GenerateChannelToken(room.PublicToken, int64(uid)); ok {
		out.Token = &tok
	}
	return out, nil
}

// CurrentRooms — публичные токены активных комнат пользователя.
func (s *AdmissionService) CurrentRooms(ctx context.Context, uid domain.UserID) ([]string, error) {
	ids, err := s.parts.ActiveRoomsOf(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		room, err := s.rooms.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				continue
			}
			return nil, err
		}
		if room.IsActive() {
			out = append(out, room.PublicToken)
		}
	}
	return out, nil
}

func (s *AdmissionService) IsOnline(ctx context.Context, uid domain.UserID) bool {
	return s.presence.IsOnline(ctx, uid)
}

func (s *AdmissionService) ListOnline(ctx context.Context) []domain.UserID {
	return s.presence.ListOnline(ctx)
}
