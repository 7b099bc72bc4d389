package ws

import (
	"context"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

// Notifier переводит события допуска в сообщения живым подключениям.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) ParticipantJoined(_ context.Context, room *domain.Room, uid domain.UserID) {
	n.hub.Bind(room.PublicToken, uid)
	n.hub.BroadcastRoom(room.PublicToken, Message{
		Type:    TypePeerJoined,
		Payload: PeerEventPayload{Room: room.PublicToken, UserID: userIDString(uid)},
	})
}

// ParticipantLeft: ушедший тоже получает событие, затем выходит из рассылки.
func (n *Notifier) ParticipantLeft(_ context.Context, room *domain.Room, uid domain.UserID) {
	n.hub.BroadcastRoom(room.PublicToken, Message{
		Type:    TypePeerLeft,
		Payload: PeerEventPayload{Room: room.PublicToken, UserID: userIDString(uid)},
	})
	n.hub.Unbind(room.PublicToken, uid)
}

func (n *Notifier) RoomEnded(_ context.Context, room *domain.Room, reason string) {
	n.hub.BroadcastRoom(room.PublicToken, Message{
		Type:    TypeRoomEnded,
		Payload: RoomEndedPayload{Room: room.PublicToken, Reason: reason},
	})
	n.hub.DropRoom(room.PublicToken)
}

func (n *Notifier) UserEjected(_ context.Context, uid domain.UserID, reason string) {
	n.hub.SendTo(uid, Message{Type: TypeKicked, Payload: KickedPayload{Reason: reason}})
	n.hub.Disconnect(uid)
}

func (n *Notifier) ChatPosted(_ context.Context, room *domain.Room, msg domain.ChatMessage) {
	n.hub.BroadcastRoom(room.PublicToken, Message{
		Type: TypeChat,
		Payload: ChatPayload{
			Room:    room.PublicToken,
			UserID:  userIDString(msg.UserID),
			Message: msg.Text,
			MsgID:   msg.ID,
			TSUnix:  msg.CreatedAt.Unix(),
		},
	})
}
