package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrRoomNotFound, KindNotFound},
		{ErrForbidden, KindForbidden},
		{ErrRoomFull, KindConflict},
		{ErrBadPassword, KindConflict},
		{ErrRoomEnded, KindConflict},
		{ErrNotInRoom, KindConflict},
		{ErrCapacityExceeded, KindCapacityExceeded},
		{ErrUnavailable, KindUnavailable},
		{fmt.Errorf("%w: name is required", ErrInvalidArgument), KindInvalid},
		{fmt.Errorf("join: %w", ErrRoomFull), KindConflict},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCode(t *testing.T) {
	if got := Code(fmt.Errorf("wrap: %w", ErrRoomFull)); got != "room_full" {
		t.Fatalf("Code = %q", got)
	}
	if got := Code(ErrCapacityExceeded); got != "capacity_exceeded" {
		t.Fatalf("Code = %q", got)
	}
}

func TestRoomSummaryHidesHash(t *testing.T) {
	hash := "$2a$04$abc"
	r := &Room{ID: "r1", PublicToken: "abcd1234", PasswordHash: &hash, MaxParticipants: 4, Status: RoomActive}
	s := NewRoomSummary(r, 2)
	if !s.HasPassword || s.CurrentParticipants != 2 || s.MaxParticipants != 4 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	empty := ""
	r.PasswordHash = &empty
	if NewRoomSummary(r, 0).HasPassword {
		t.Fatal("empty hash must not count as password")
	}
}
