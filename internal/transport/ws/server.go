package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/pkg/httputil"
	"github.com/cwrk-planet/roomgate/pkg/logger"

	"github.com/gorilla/websocket"
)

type Sessions interface {
	OnConnect(ctx context.Context, uid domain.UserID) []string
	OnDisconnect(ctx context.Context, uid domain.UserID)
	OnHeartbeat(ctx context.Context, uid domain.UserID) bool
}

type ChatSvc interface {
	Post(ctx context.Context, token string, uid domain.UserID, text string) (domain.ChatMessage, error)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	auth     identity.Authenticator
	sessions Sessions
	chat     ChatSvc

	pingEvery time.Duration
}

func NewServer(hub *Hub, auth identity.Authenticator, sessions Sessions, chat ChatSvc, allowedOrigins []string) *Server {
	return &Server{
		hub:      hub,
		auth:     auth,
		sessions: sessions,
		chat:     chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		pingEvery: 15 * time.Second,
	}
}

// пустой список или "*" — любой origin
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// WS endpoint: GET /ws?access_token=...  (или Authorization: Bearer)
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, err := s.auth.Authenticate(ctx, credentialsFrom(r))
	if err != nil {
		httputil.Error(ctx, w, http.StatusUnauthorized, "unauthenticated", map[string]any{"code": domain.Code(err)})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.Ctx(ctx).Warn("ws.upgrade", slog.Any("err", err))
		return
	}

	uid := caller.UserID
	ctx = logger.WithUserID(ctx, int64(uid))
	c := newWsConn(conn, uid)
	s.hub.Register(uid, c)

	rooms := s.sessions.OnConnect(ctx, uid)
	for _, room := range rooms {
		s.hub.Bind(room, uid)
	}
	if rooms == nil {
		rooms = []string{}
	}
	_ = c.Send(Message{Type: TypeHello, Payload: HelloPayload{UserID: userIDString(uid), Rooms: rooms}})
	logger.Ctx(ctx).Info("ws.connect", slog.Int("rooms", len(rooms)))

	go s.writeLoop(context.WithoutCancel(ctx), c)
	s.readLoop(ctx, c)

	if s.hub.Unregister(uid, c) {
		s.sessions.OnDisconnect(context.WithoutCancel(ctx), uid)
	}
	_ = c.Close()
	logger.Ctx(ctx).Info("ws.disconnect")
}

func credentialsFrom(r *http.Request) identity.Credentials {
	q := r.URL.Query()
	cred := identity.Credentials{
		Token:  strings.TrimSpace(q.Get("access_token")),
		UserID: r.Header.Get("X-User-ID"),
		Role:   r.Header.Get("X-User-Role"),
	}
	if cred.Token == "" {
		cred.Token, _ = identity.BearerToken(r.Header.Get("Authorization"))
	}
	// браузерный WebSocket не умеет заголовки
	if cred.UserID == "" {
		cred.UserID = q.Get("user_id")
	}
	return cred
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		s.sessions.OnHeartbeat(ctx, c.userID)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(errorMessage("bad_message", "invalid json"))
			continue
		}

		switch msg.Type {
		case TypeHeartbeat:
			s.sessions.OnHeartbeat(ctx, c.userID)
		case TypeChat:
			s.handleChat(ctx, c, msg.Payload)
		default:
			// ignore
		}
	}
}

// handleChat сохраняет сообщение; рассылку всем участникам (включая отправителя)
// делает Notifier, отправителю дополнительно уходит ack.
func (s *Server) handleChat(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p ChatPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Room == "" {
		_ = c.Send(errorMessage("bad_message", "chat requires room and message"))
		return
	}
	if s.chat == nil {
		_ = c.Send(errorMessage("unavailable", "chat disabled"))
		return
	}
	msg, err := s.chat.Post(ctx, p.Room, c.userID, p.Message)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal || domain.KindOf(err) == domain.KindUnavailable {
			logger.Ctx(ctx).Warn("ws.chat", slog.String("room", p.Room), slog.Int64("user_id", int64(c.userID)), slog.Any("err", err))
		}
		_ = c.Send(errorMessage(domain.Code(err), publicMessage(err)))
		return
	}
	_ = c.Send(Message{Type: TypeChatAck, Payload: ChatAckPayload{Room: p.Room, MsgID: msg.ID}})
}

// writeLoop — единственный писатель в сокет; закрывает его при выходе.
func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
			s.sessions.OnHeartbeat(ctx, c.userID)
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func errorMessage(code, msg string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: msg}}
}

// publicMessage не раскрывает внутренние ошибки клиенту.
func publicMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindInternal, domain.KindUnavailable:
		return "internal error"
	}
	return err.Error()
}

func userIDString(uid domain.UserID) string { return strconv.FormatInt(int64(uid), 10) }
