package domain

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomEnded        = errors.New("room has ended")
	ErrRoomFull         = errors.New("room is full")
	ErrBadPassword      = errors.New("invalid room password")
	ErrAlreadyJoined    = errors.New("user already joined the room")
	ErrNotInRoom        = errors.New("user not in the room")
	ErrTokenTaken       = errors.New("public token already taken")
	ErrForbidden        = errors.New("forbidden")
	ErrCapacityExceeded = errors.New("active room limit reached")
	ErrUnavailable      = errors.New("storage unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindCapacityExceeded
	KindUnavailable
	KindInvalid
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindUnavailable:
		return "unavailable"
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// KindOf классифицирует ошибку для транспорта (HTTP статус, gRPC код).
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrRoomNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrBadPassword),
		errors.Is(err, ErrRoomEnded),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrTokenTaken):
		return KindConflict
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalid
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	default:
		return KindInternal
	}
}

// Code — машинно-читаемый код ошибки для клиента.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomEnded):
		return "room_ended"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrBadPassword):
		return "bad_password"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrTokenTaken):
		return "token_taken"
	}
	return KindOf(err).String()
}
