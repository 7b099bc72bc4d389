package http

import (
	"strconv"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/service"
)

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Password        string `json:"password,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
}

type JoinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RoomItem struct {
	ID                  string     `json:"id"`
	PublicToken         string     `json:"public_token"`
	Name                string     `json:"name"`
	CreatorID           string     `json:"creator_id"`
	MaxParticipants     int        `json:"max_participants"`
	CurrentParticipants int        `json:"current_participants"`
	HasPassword         bool       `json:"has_password"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type JoinRoomResponse struct {
	Room     string    `json:"room"`
	UserID   string    `json:"user_id"`
	IsHost   bool      `json:"is_host"`
	JoinedAt time.Time `json:"joined_at"`
}

type ParticipantItem struct {
	UserID      string    `json:"user_id"`
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
	IsHost      bool      `json:"is_host"`
	Online      bool      `json:"online"`
}

type ParticipantsResponse struct {
	Items []ParticipantItem `json:"items"`
}

type MediaTokenResponse struct {
	Token     *string `json:"token"`
	AppID     string  `json:"app_id"`
	Channel   string  `json:"channel"`
	UID       string  `json:"uid"`
	ExpiresIn int64   `json:"expires_in"` // секунды
}

type HostResponse struct {
	Room   string `json:"room"`
	IsHost bool   `json:"is_host"`
}

type ChatMessageItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Items      []ChatMessageItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type PresenceItem struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type OnlineListResponse struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

type StatsResponse struct {
	ActiveRooms    int       `json:"active_rooms"`
	EndedRooms     int       `json:"ended_rooms"`
	OnlineUsers    int       `json:"online_users"`
	MaxActiveRooms int       `json:"max_active_rooms"`
	StartedAt      time.Time `json:"started_at"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
}

type OperationItem struct {
	ID           int64     `json:"id"`
	AdminID      string    `json:"admin_id"`
	Kind         string    `json:"kind"`
	TargetUserID *string   `json:"target_user_id,omitempty"`
	TargetRoom   *string   `json:"target_room,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type OperationsResponse struct {
	Items []OperationItem `json:"items"`
}

type ReclaimResponse struct {
	Ended int `json:"ended"`
}

// --- mapping ---

func idString(id domain.UserID) string { return strconv.FormatInt(int64(id), 10) }

func toRoomItem(s domain.RoomSummary) RoomItem {
	return RoomItem{
		ID:                  s.ID,
		PublicToken:         s.PublicToken,
		Name:                s.Name,
		CreatorID:           idString(s.CreatorID),
		MaxParticipants:     s.MaxParticipants,
		CurrentParticipants: s.CurrentParticipants,
		HasPassword:         s.HasPassword,
		Status:              string(s.Status),
		CreatedAt:           s.CreatedAt,
		EndedAt:             s.EndedAt,
	}
}

func toRoomsList(items []domain.RoomSummary, next string) RoomsListResponse {
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(items)), NextCursor: next}
	for _, it := range items {
		resp.Items = append(resp.Items, toRoomItem(it))
	}
	return resp
}

func toStats(st service.Stats) StatsResponse {
	return StatsResponse{
		ActiveRooms:    st.ActiveRooms,
		EndedRooms:     st.EndedRooms,
		OnlineUsers:    st.OnlineUsers,
		MaxActiveRooms: st.MaxActiveRooms,
		StartedAt:      st.StartedAt,
		UptimeSeconds:  int64(st.Uptime / time.Second),
	}
}

func toOperationItem(op domain.Operation) OperationItem {
	it := OperationItem{
		ID:         op.ID,
		AdminID:    idString(op.AdminID),
		Kind:       string(op.Kind),
		TargetRoom: op.TargetRoomID,
		Reason:     op.Reason,
		Detail:     op.Detail,
		CreatedAt:  op.CreatedAt,
	}
	if op.TargetUserID != nil {
		s := idString(*op.TargetUserID)
		it.TargetUserID = &s
	}
	return it
}
