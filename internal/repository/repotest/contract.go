// Package repotest — общий набор проверок для реализаций repository.Set.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/repository"

	"github.com/google/uuid"
)

// Opener возвращает пустое хранилище; Close регистрируется самим opener через t.Cleanup.
type Opener func(t *testing.T) repository.Set

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func NewRoom(token string, creator domain.UserID, max int, createdAt time.Time) *domain.Room {
	return &domain.Room{
		ID:              uuid.NewString(),
		PublicToken:     token,
		Name:            "room " + token,
		CreatorID:       creator,
		MaxParticipants: max,
		Status:          domain.RoomActive,
		CreatedAt:       createdAt,
	}
}

func mustCreate(t *testing.T, s repository.Set, r *domain.Room) {
	t.Helper()
	if err := s.Rooms.CreateWithHost(context.Background(), r, 0); err != nil {
		t.Fatalf("CreateWithHost(%s): %v", r.PublicToken, err)
	}
}

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Set)
	}{
		{"CreateWithHost", testCreateWithHost},
		{"CreateCapacity", testCreateCapacity},
		{"TokenTaken", testTokenTaken},
		{"GetNotFound", testGetNotFound},
		{"JoinUntilFull", testJoinUntilFull},
		{"JoinTwice", testJoinTwice},
		{"LeaveAndRejoin", testLeaveAndRejoin},
		{"EndClosesMembership", testEndClosesMembership},
		{"EndIfIdle", testEndIfIdle},
		{"ConcurrentJoins", testConcurrentJoins},
		{"LeaveAll", testLeaveAll},
		{"ListActiveOrder", testListActiveOrder},
		{"ListPagination", testListPagination},
		{"ListActiveCreatedBefore", testListActiveCreatedBefore},
		{"ChatHistory", testChatHistory},
		{"Operations", testOperations},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func testCreateWithHost(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("host0001", 7, 4, base)
	mustCreate(t, s, r)

	got, err := s.Rooms.GetByToken(ctx, "host0001")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.ID != r.ID || got.CreatorID != 7 || got.Status != domain.RoomActive || got.EndedAt != nil {
		t.Fatalf("unexpected room: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
	}

	p, err := s.Participants.FindActive(ctx, r.ID, 7)
	if err != nil {
		t.Fatalf("FindActive host: %v", err)
	}
	if !p.IsHost || p.LeftAt != nil {
		t.Fatalf("host record: %+v", p)
	}
	if n, _ := s.Participants.CountActive(ctx, r.ID); n != 1 {
		t.Fatalf("CountActive = %d, want 1", n)
	}
	if ok, _ := s.Rooms.TokenExists(ctx, "host0001"); !ok {
		t.Fatal("TokenExists = false")
	}
}

func testCreateCapacity(t *testing.T, s repository.Set) {
	ctx := context.Background()
	active, err := s.Rooms.CountByStatus(ctx, domain.RoomActive)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Rooms.CreateWithHost(ctx, NewRoom("cap00001", 1, 10, base), active+1); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err = s.Rooms.CreateWithHost(ctx, NewRoom("cap00002", 2, 10, base), active+1)
	if !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("second create err = %v, want ErrCapacityExceeded", err)
	}
	if ok, _ := s.Rooms.TokenExists(ctx, "cap00002"); ok {
		t.Fatal("rejected room must not be stored")
	}
}

func testTokenTaken(t *testing.T, s repository.Set) {
	mustCreate(t, s, NewRoom("dup00001", 1, 10, base))
	err := s.Rooms.CreateWithHost(context.Background(), NewRoom("dup00001", 2, 10, base), 0)
	if !errors.Is(err, domain.ErrTokenTaken) {
		t.Fatalf("err = %v, want ErrTokenTaken", err)
	}
}

func testGetNotFound(t *testing.T, s repository.Set) {
	ctx := context.Background()
	if _, err := s.Rooms.GetByToken(ctx, "missing0"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("GetByToken err = %v", err)
	}
	if _, err := s.Participants.Join(ctx, uuid.NewString(), 1, base); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("Join err = %v", err)
	}
}

func testJoinUntilFull(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("full0001", 1, 3, base)
	mustCreate(t, s, r)

	for _, uid := range []domain.UserID{2, 3} {
		if _, err := s.Participants.Join(ctx, r.ID, uid, base.Add(time.Second)); err != nil {
			t.Fatalf("Join(%d): %v", uid, err)
		}
	}
	if _, err := s.Participants.Join(ctx, r.ID, 4, base); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("Join over capacity err = %v", err)
	}
	if n, _ := s.Participants.CountActive(ctx, r.ID); n != 3 {
		t.Fatalf("CountActive = %d, want 3", n)
	}
}

func testJoinTwice(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("twice001", 1, 5, base)
	mustCreate(t, s, r)

	if _, err := s.Participants.Join(ctx, r.ID, 2, base); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Participants.Join(ctx, r.ID, 2, base); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("second Join err = %v", err)
	}
	if n, _ := s.Participants.CountActive(ctx, r.ID); n != 2 {
		t.Fatalf("CountActive = %d, want 2", n)
	}
}

func testLeaveAndRejoin(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("leave001", 1, 5, base)
	mustCreate(t, s, r)

	if err := s.Participants.Leave(ctx, r.ID, 9, base); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("Leave stranger err = %v", err)
	}
	if _, err := s.Participants.Join(ctx, r.ID, 2, base); err != nil {
		t.Fatal(err)
	}
	if err := s.Participants.Leave(ctx, r.ID, 2, base.Add(time.Minute)); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, err := s.Participants.FindActive(ctx, r.ID, 2); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("FindActive after leave err = %v", err)
	}
	if _, err := s.Participants.Join(ctx, r.ID, 2, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}

func testEndClosesMembership(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("end00001", 1, 5, base)
	mustCreate(t, s, r)
	if _, err := s.Participants.Join(ctx, r.ID, 2, base); err != nil {
		t.Fatal(err)
	}

	endedAt := base.Add(time.Hour)
	closed, err := s.Rooms.End(ctx, r.ID, endedAt)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if closed != 2 {
		t.Fatalf("closed = %d, want 2", closed)
	}

	got, _ := s.Rooms.GetByID(ctx, r.ID)
	if got.Status != domain.RoomEnded || got.EndedAt == nil || !got.EndedAt.Equal(endedAt) {
		t.Fatalf("room after end: %+v", got)
	}
	if n, _ := s.Participants.CountActive(ctx, r.ID); n != 0 {
		t.Fatalf("CountActive = %d after end", n)
	}
	if _, err := s.Rooms.End(ctx, r.ID, endedAt); !errors.Is(err, domain.ErrRoomEnded) {
		t.Fatalf("second End err = %v", err)
	}
	if _, err := s.Participants.Join(ctx, r.ID, 3, endedAt); !errors.Is(err, domain.ErrRoomEnded) {
		t.Fatalf("Join ended err = %v", err)
	}
	if _, err := s.Rooms.End(ctx, uuid.NewString(), endedAt); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("End missing err = %v", err)
	}
}

func testEndIfIdle(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("idle0001", 1, 5, base)
	mustCreate(t, s, r)

	ended, err := s.Rooms.EndIfIdle(ctx, r.ID, base.Add(3*time.Hour))
	if err != nil || ended {
		t.Fatalf("EndIfIdle with host = %v, %v", ended, err)
	}
	if err := s.Participants.Leave(ctx, r.ID, 1, base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	ended, err = s.Rooms.EndIfIdle(ctx, r.ID, base.Add(3*time.Hour))
	if err != nil || !ended {
		t.Fatalf("EndIfIdle empty = %v, %v", ended, err)
	}
	ended, err = s.Rooms.EndIfIdle(ctx, r.ID, base.Add(4*time.Hour))
	if err != nil || ended {
		t.Fatalf("EndIfIdle twice = %v, %v", ended, err)
	}
}

// Параллельные входы не должны превышать max_participants.
func testConcurrentJoins(t *testing.T, s repository.Set) {
	ctx := context.Background()
	const max, contenders = 10, 30
	r := NewRoom("race0001", 1, max, base)
	mustCreate(t, s, r)

	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		full    atomic.Int32
		start   = make(chan struct{})
		errsMu  sync.Mutex
		unknown []error
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(uid domain.UserID) {
			defer wg.Done()
			<-start
			_, err := s.Participants.Join(ctx, r.ID, uid, base)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrRoomFull):
				full.Add(1)
			default:
				errsMu.Lock()
				unknown = append(unknown, err)
				errsMu.Unlock()
			}
		}(domain.UserID(100 + i))
	}
	close(start)
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if ok.Load() != max-1 || full.Load() != contenders-(max-1) {
		t.Fatalf("ok=%d full=%d, want %d/%d", ok.Load(), full.Load(), max-1, contenders-(max-1))
	}
	if n, _ := s.Participants.CountActive(ctx, r.ID); n != max {
		t.Fatalf("CountActive = %d, want %d", n, max)
	}
}

func testLeaveAll(t *testing.T, s repository.Set) {
	ctx := context.Background()
	a := NewRoom("all00001", 1, 5, base)
	b := NewRoom("all00002", 2, 5, base)
	mustCreate(t, s, a)
	mustCreate(t, s, b)
	for _, r := range []*domain.Room{a, b} {
		if _, err := s.Participants.Join(ctx, r.ID, 50, base); err != nil {
			t.Fatal(err)
		}
	}

	rooms, err := s.Participants.ActiveRoomsOf(ctx, 50)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("ActiveRoomsOf = %v, %v", rooms, err)
	}
	closed, err := s.Participants.LeaveAll(ctx, 50, base.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 2 {
		t.Fatalf("LeaveAll closed %v", closed)
	}
	if rooms, _ := s.Participants.ActiveRoomsOf(ctx, 50); len(rooms) != 0 {
		t.Fatalf("still active in %v", rooms)
	}
	if closed, _ := s.Participants.LeaveAll(ctx, 50, base); len(closed) != 0 {
		t.Fatalf("second LeaveAll closed %v", closed)
	}
}

func testListActiveOrder(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("order001", 1, 10, base)
	mustCreate(t, s, r)
	for i, uid := range []domain.UserID{30, 20, 40} {
		if _, err := s.Participants.Join(ctx, r.ID, uid, base.Add(time.Duration(i+1)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Participants.Leave(ctx, r.ID, 20, base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	list, err := s.Participants.ListActive(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.UserID{1, 30, 40}
	if len(list) != len(want) {
		t.Fatalf("ListActive = %+v", list)
	}
	for i, v := range list {
		if v.UserID != want[i] {
			t.Fatalf("position %d: user %d, want %d", i, v.UserID, want[i])
		}
	}
	if !list[0].IsHost || list[1].IsHost {
		t.Fatalf("host flags: %+v", list)
	}
}

func testListPagination(t *testing.T, s repository.Set) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustCreate(t, s, NewRoom(fmt.Sprintf("page%04d", i), 1, 10, base.Add(time.Duration(i)*time.Minute)))
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		rooms, next, err := s.Rooms.List(ctx, domain.RoomActive, 2, cursor)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		pages++
		for _, r := range rooms {
			if seen[r.PublicToken] {
				t.Fatalf("duplicate %s across pages", r.PublicToken)
			}
			seen[r.PublicToken] = true
		}
		if next == "" {
			break
		}
		cursor = next
		if pages > 10 {
			t.Fatal("pagination does not terminate")
		}
	}
	if len(seen) != 5 {
		t.Fatalf("seen %d rooms, want 5", len(seen))
	}

	first, _, _ := s.Rooms.List(ctx, "", 1, "")
	if len(first) != 1 || first[0].PublicToken != "page0004" {
		t.Fatalf("newest first expected, got %+v", first)
	}
	if _, _, err := s.Rooms.List(ctx, "", 2, "not-a-cursor"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad cursor err = %v", err)
	}
}

func testListActiveCreatedBefore(t *testing.T, s repository.Set) {
	ctx := context.Background()
	old := NewRoom("old00001", 1, 10, base)
	fresh := NewRoom("new00001", 1, 10, base.Add(3*time.Hour))
	mustCreate(t, s, old)
	mustCreate(t, s, fresh)

	rooms, err := s.Rooms.ListActiveCreatedBefore(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].ID != old.ID {
		t.Fatalf("bounded = %+v", rooms)
	}
	all, err := s.Rooms.ListActiveCreatedBefore(ctx, time.Time{})
	if err != nil || len(all) != 2 {
		t.Fatalf("unbounded = %+v, %v", all, err)
	}
}

func testChatHistory(t *testing.T, s repository.Set) {
	ctx := context.Background()
	r := NewRoom("chat0001", 1, 10, base)
	mustCreate(t, s, r)
	for i := 0; i < 5; i++ {
		m := &domain.ChatMessage{
			ID:        fmt.Sprintf("01J%023d", i),
			RoomID:    r.ID,
			UserID:    1,
			Text:      fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Chat.Save(ctx, m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	page, next, err := s.Chat.History(ctx, r.ID, "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || page[0].Text != "msg 4" || next == "" {
		t.Fatalf("first page = %+v next=%q", page, next)
	}
	rest, next, err := s.Chat.History(ctx, r.ID, next, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0].Text != "msg 1" || next != "" {
		t.Fatalf("second page = %+v next=%q", rest, next)
	}
}

func testOperations(t *testing.T, s repository.Set) {
	ctx := context.Background()
	target := domain.UserID(5)
	room := "room-1"
	ops := []*domain.Operation{
		{AdminID: 1, Kind: domain.OpForceDisconnect, TargetUserID: &target, Reason: "spam", CreatedAt: base},
		{AdminID: 1, Kind: domain.OpForceEndRoom, TargetRoomID: &room, Reason: "abuse", CreatedAt: base.Add(time.Minute)},
	}
	for _, op := range ops {
		if err := s.Operations.Append(ctx, op); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if op.ID == 0 {
			t.Fatal("Append must assign id")
		}
	}

	got, err := s.Operations.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != domain.OpForceEndRoom || got[0].TargetRoomID == nil || *got[0].TargetRoomID != room {
		t.Fatalf("ListRecent = %+v", got)
	}
	if got[1].TargetUserID == nil || *got[1].TargetUserID != target {
		t.Fatalf("target user lost: %+v", got[1])
	}
}
