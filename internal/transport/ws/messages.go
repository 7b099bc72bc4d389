package ws

import "encoding/json"

// Типы событий WS
const (
	TypeHello      = "hello"       // приветствие: id пользователя и его активные комнаты
	TypePeerJoined = "peer_joined" // пользователь присоединился
	TypePeerLeft   = "peer_left"   // пользователь покинул
	TypeRoomEnded  = "room_ended"  // комната завершена
	TypeKicked     = "kicked"      // принудительное отключение администратором
	TypeChat       = "chat"        // чат-сообщение
	TypeChatAck    = "chat_ack"    // подтверждение отправки (НЕ сообщение)
	TypeError      = "error"
	TypeHeartbeat  = "heartbeat" // клиент -> сервер
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inbound — сообщение от клиента; payload разбирается по типу.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HelloPayload struct {
	UserID string   `json:"user_id"`
	Rooms  []string `json:"rooms"`
}

type PeerEventPayload struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
}

type RoomEndedPayload struct {
	Room   string `json:"room"`
	Reason string `json:"reason,omitempty"`
}

type KickedPayload struct {
	Reason string `json:"reason,omitempty"`
}

type ChatPayload struct {
	Room    string `json:"room"`
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message"`

	MsgID  string `json:"msg_id,omitempty"`
	TSUnix int64  `json:"ts_unix,omitempty"`
}

// для client: использует для снятия pending и дедупликации
type ChatAckPayload struct {
	Room  string `json:"room"`
	MsgID string `json:"msg_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
