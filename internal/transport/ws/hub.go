package ws

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

type Conn interface {
	Send(msg Message) error
	Close() error
}

// Hub — живые подключения (одно на пользователя) и индекс комната -> пользователи.
// Снимок получателей берётся под локом, отправка идёт вне его.
type Hub struct {
	mu        sync.RWMutex
	conns     map[domain.UserID]Conn
	rooms     map[string]map[domain.UserID]struct{} // публичный токен -> участники на связи
	userRooms map[domain.UserID]map[string]struct{}
	closed    bool
}

func NewHub() *Hub {
	return &Hub{
		conns:     make(map[domain.UserID]Conn),
		rooms:     make(map[string]map[domain.UserID]struct{}),
		userRooms: make(map[domain.UserID]map[string]struct{}),
	}
}

// Register заменяет прежнее подключение пользователя и закрывает его.
// После Close новые подключения сразу закрываются.
func (h *Hub) Register(uid domain.UserID, c Conn) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	prev := h.conns[uid]
	h.conns[uid] = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		_ = prev.Close()
	}
}

// Unregister удаляет подключение, только если оно всё ещё текущее: закрытие
// вытесненного подключения не должно снять его преемника.
func (h *Hub) Unregister(uid domain.UserID, c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.conns[uid]; !ok || cur != c {
		return false
	}
	delete(h.conns, uid)
	h.unbindAllLocked(uid)
	return true
}

// Bind добавляет пользователя на связи в рассылку комнаты.
func (h *Hub) Bind(room string, uid domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[uid]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[domain.UserID]struct{})
		h.rooms[room] = members
	}
	members[uid] = struct{}{}

	rs, ok := h.userRooms[uid]
	if !ok {
		rs = make(map[string]struct{})
		h.userRooms[uid] = rs
	}
	rs[room] = struct{}{}
}

func (h *Hub) Unbind(room string, uid domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(room, uid)
}

func (h *Hub) unbindLocked(room string, uid domain.UserID) {
	if members, ok := h.rooms[room]; ok {
		delete(members, uid)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rs, ok := h.userRooms[uid]; ok {
		delete(rs, room)
		if len(rs) == 0 {
			delete(h.userRooms, uid)
		}
	}
}

func (h *Hub) unbindAllLocked(uid domain.UserID) {
	for room := range h.userRooms[uid] {
		h.unbindLocked(room, uid)
	}
}

// DropRoom убирает комнату из индекса и возвращает её бывших участников.
func (h *Hub) DropRoom(room string) []domain.UserID {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	out := make([]domain.UserID, 0, len(members))
	for uid := range members {
		out = append(out, uid)
		if rs, ok := h.userRooms[uid]; ok {
			delete(rs, room)
			if len(rs) == 0 {
				delete(h.userRooms, uid)
			}
		}
	}
	delete(h.rooms, room)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hub) Members(room string) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.UserID, 0, len(h.rooms[room]))
	for uid := range h.rooms[room] {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendTo — best-effort; false, если подключения нет или отправка не удалась.
func (h *Hub) SendTo(uid domain.UserID, msg Message) bool {
	h.mu.RLock()
	c, ok := h.conns[uid]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(msg) == nil
}

// BroadcastRoom рассылает участникам комнаты, возвращает число успешных отправок.
func (h *Hub) BroadcastRoom(room string, msg Message) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for uid := range h.rooms[room] {
		if c, ok := h.conns[uid]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return sendAll(targets, msg)
}

func (h *Hub) BroadcastAll(msg Message) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return sendAll(targets, msg)
}

func sendAll(targets []Conn, msg Message) int {
	n := 0
	for _, c := range targets {
		if c.Send(msg) == nil { // best-effort
			n++
		}
	}
	return n
}

// Disconnect закрывает подключение пользователя и убирает его из индекса.
func (h *Hub) Disconnect(uid domain.UserID) bool {
	h.mu.Lock()
	c, ok := h.conns[uid]
	if ok {
		delete(h.conns, uid)
		h.unbindAllLocked(uid)
	}
	h.mu.Unlock()
	if ok {
		_ = c.Close()
	}
	return ok
}

func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close закрывает все подключения; вызывается при остановке сервиса.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[domain.UserID]Conn)
	h.rooms = make(map[string]map[domain.UserID]struct{})
	h.userRooms = make(map[domain.UserID]map[string]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
