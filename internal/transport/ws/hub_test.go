package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/cwrk-planet/roomgate/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	got    []Message
	closed bool
	fail   bool
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("send failed")
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, m := range c.got {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_RegisterReplacesAndUnregisterIsScoped(t *testing.T) {
	h := NewHub()
	first, second := &fakeConn{}, &fakeConn{}

	h.Register(1, first)
	h.Register(1, second)
	if !first.isClosed() {
		t.Fatal("replaced connection must be closed")
	}
	if second.isClosed() {
		t.Fatal("successor closed")
	}

	// teardown вытесненного подключения не трогает преемника
	if h.Unregister(1, first) {
		t.Fatal("Unregister(stale) = true")
	}
	if !h.SendTo(1, Message{Type: TypeChat}) {
		t.Fatal("successor lost after stale unregister")
	}
	if !h.Unregister(1, second) {
		t.Fatal("Unregister(current) = false")
	}
	if h.SendTo(1, Message{Type: TypeChat}) || h.Online() != 0 {
		t.Fatal("connection still registered")
	}
}

func TestHub_RoomScopedBroadcast(t *testing.T) {
	h := NewHub()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register(1, a)
	h.Register(2, b)
	h.Register(3, c)
	h.Bind("room-a", 1)
	h.Bind("room-a", 2)
	h.Bind("room-b", 3)
	h.Bind("room-a", 99) // без подключения не индексируется

	if n := h.BroadcastRoom("room-a", Message{Type: TypePeerJoined}); n != 2 {
		t.Fatalf("BroadcastRoom = %d", n)
	}
	if len(c.types()) != 0 {
		t.Fatal("member of another room received the message")
	}
	if got := h.Members("room-a"); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Members = %v", got)
	}

	h.Unbind("room-a", 2)
	if n := h.BroadcastRoom("room-a", Message{Type: TypeChat}); n != 1 {
		t.Fatalf("after unbind = %d", n)
	}

	if dropped := h.DropRoom("room-a"); len(dropped) != 1 || dropped[0] != 1 {
		t.Fatalf("DropRoom = %v", dropped)
	}
	if n := h.BroadcastRoom("room-a", Message{Type: TypeChat}); n != 0 {
		t.Fatalf("dropped room broadcast = %d", n)
	}
	if n := h.BroadcastAll(Message{Type: TypeChat}); n != 3 {
		t.Fatalf("BroadcastAll = %d", n)
	}
}

func TestHub_FailingRecipientDoesNotBlockOthers(t *testing.T) {
	h := NewHub()
	bad, good := &fakeConn{fail: true}, &fakeConn{}
	h.Register(1, bad)
	h.Register(2, good)
	h.Bind("r", 1)
	h.Bind("r", 2)

	if n := h.BroadcastRoom("r", Message{Type: TypeChat}); n != 1 {
		t.Fatalf("delivered = %d", n)
	}
	if len(good.types()) != 1 {
		t.Fatal("healthy recipient missed the message")
	}
}

func TestHub_UnregisterDropsRoomBindings(t *testing.T) {
	h := NewHub()
	a := &fakeConn{}
	h.Register(1, a)
	h.Bind("r", 1)
	h.Unregister(1, a)

	b := &fakeConn{}
	h.Register(1, b)
	if n := h.BroadcastRoom("r", Message{Type: TypeChat}); n != 0 {
		t.Fatalf("stale binding delivered %d", n)
	}
}

func TestHub_DisconnectAndClose(t *testing.T) {
	h := NewHub()
	a, b := &fakeConn{}, &fakeConn{}
	h.Register(1, a)
	h.Register(2, b)

	if !h.Disconnect(1) || !a.isClosed() {
		t.Fatal("Disconnect did not close")
	}
	if h.Disconnect(1) {
		t.Fatal("second Disconnect = true")
	}
	if h.Unregister(1, a) {
		t.Fatal("Unregister after Disconnect = true")
	}

	h.Close()
	if !b.isClosed() || h.Online() != 0 {
		t.Fatal("Close left connections open")
	}
	late := &fakeConn{}
	h.Register(3, late)
	if !late.isClosed() {
		t.Fatal("Register after Close must close the connection")
	}
}

func TestNotifier(t *testing.T) {
	h := NewHub()
	n := NewNotifier(h)
	host, guest := &fakeConn{}, &fakeConn{}
	h.Register(1, host)
	h.Register(2, guest)
	room := &domain.Room{PublicToken: "tok12345"}
	ctx := t.Context()

	n.ParticipantJoined(ctx, room, 1)
	n.ParticipantJoined(ctx, room, 2)
	n.ChatPosted(ctx, room, domain.ChatMessage{ID: "m1", UserID: 2, Text: "hi"})
	n.ParticipantLeft(ctx, room, 2)
	n.RoomEnded(ctx, room, "idle")

	want := []string{TypePeerJoined, TypePeerJoined, TypeChat, TypePeerLeft, TypeRoomEnded}
	if got := host.types(); !equal(got, want) {
		t.Fatalf("host got %v, want %v", got, want)
	}
	wantGuest := []string{TypePeerJoined, TypeChat, TypePeerLeft}
	if got := guest.types(); !equal(got, wantGuest) {
		t.Fatalf("guest got %v, want %v", got, wantGuest)
	}

	n.UserEjected(ctx, 2, "spam")
	if got := guest.types(); got[len(got)-1] != TypeKicked || !guest.isClosed() {
		t.Fatalf("guest after eject = %v closed=%v", got, guest.isClosed())
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
