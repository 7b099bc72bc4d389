package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed   = errors.New("ws: connection closed")
	ErrSlowConsumer = errors.New("ws: send queue full")
)

const (
	sendQueueSize = 32
	writeWait     = 5 * time.Second
)

// wsConn: Send только ставит сообщение в очередь, в сокет пишет writeLoop.
// Close сигналит writeLoop: он дописывает очередь, шлёт close-фрейм и закрывает сокет.
// Переполненная очередь означает зависшего клиента, такое подключение закрывается.
type wsConn struct {
	conn   *websocket.Conn
	userID domain.UserID
	send   chan Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newWsConn(c *websocket.Conn, userID domain.UserID) *wsConn {
	return &wsConn{
		conn:   c,
		userID: userID,
		send:   make(chan Message, sendQueueSize),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		_ = c.Close()
		return ErrSlowConsumer
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *wsConn) write(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// shutdown вызывается только из writeLoop.
func (c *wsConn) shutdown() {
	for done := false; !done; {
		select {
		case msg := <-c.send:
			if c.write(msg) != nil {
				done = true
			}
		default:
			done = true
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
}
