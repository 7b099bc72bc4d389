package domain

import "time"

type UserID int64

type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomEnded  RoomStatus = "ended"
)

// Границы вместимости комнаты.
const (
	MinParticipants     = 2
	MaxParticipants     = 10
	DefaultParticipants = 10
)

type Room struct {
	ID              string     `db:"id"`
	PublicToken     string     `db:"public_token"`
	Name            string     `db:"name"`
	CreatorID       UserID     `db:"creator_id"`
	PasswordHash    *string    `db:"password_hash"`
	MaxParticipants int        `db:"max_participants"`
	Status          RoomStatus `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	EndedAt         *time.Time `db:"ended_at"`
}

func (r *Room) IsActive() bool { return r.Status == RoomActive }

func (r *Room) HasPassword() bool { return r.PasswordHash != nil && *r.PasswordHash != "" }

// RoomSummary — то, что отдаётся наружу: без хэша пароля, с текущим числом участников.
type RoomSummary struct {
	ID                  string
	PublicToken         string
	Name                string
	CreatorID           UserID
	MaxParticipants     int
	CurrentParticipants int
	HasPassword         bool
	Status              RoomStatus
	CreatedAt           time.Time
	EndedAt             *time.Time
}

func NewRoomSummary(r *Room, current int) RoomSummary {
	return RoomSummary{
		ID:                  r.ID,
		PublicToken:         r.PublicToken,
		Name:                r.Name,
		CreatorID:           r.CreatorID,
		MaxParticipants:     r.MaxParticipants,
		CurrentParticipants: current,
		HasPassword:         r.HasPassword(),
		Status:              r.Status,
		CreatedAt:           r.CreatedAt,
		EndedAt:             r.EndedAt,
	}
}
