package domain

import "time"

// Participant — одна запись о членстве: создаётся при входе, закрывается через LeftAt.
type Participant struct {
	ID       int64      `db:"id"`
	RoomID   string     `db:"room_id"`
	UserID   UserID     `db:"user_id"`
	JoinedAt time.Time  `db:"joined_at"`
	LeftAt   *time.Time `db:"left_at"`
	IsHost   bool       `db:"is_host"`
}

func (p *Participant) Active() bool { return p.LeftAt == nil }

type ParticipantView struct {
	UserID      UserID
	DisplayName *string
	AvatarURL   *string
	JoinedAt    time.Time
	IsHost      bool
}
