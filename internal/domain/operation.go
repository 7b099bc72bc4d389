package domain

import "time"

type OperationKind string

const (
	OpForceDisconnect  OperationKind = "force_disconnect"
	OpForceEndRoom     OperationKind = "force_end_room"
	OpReclaimIdleRooms OperationKind = "reclaim_idle_rooms"
)

// Operation — запись журнала административных действий.
type Operation struct {
	ID           int64
	AdminID      UserID
	Kind         OperationKind
	TargetUserID *UserID
	TargetRoomID *string
	Reason       string
	Detail       string
	CreatedAt    time.Time
}

type Stats struct {
	ActiveRooms    int
	EndedRooms     int
	OnlineUsers    int
	MaxActiveRooms int
	StartedAt      time.Time
}
