// internal/common/errors.go
package common

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrPrivateRoomDenied = errors.New("private room - invitation required")
	ErrInvalidOptions    = errors.New("invalid room options")
	ErrNotInChallenge    = errors.New("no active challenge in this room")
	ErrNotInRoom         = errors.New("you are not in this room")
	ErrNotCreator        = errors.New("only the room creator can do that")
	ErrAlreadyQueued     = errors.New("already searching for a match")
	ErrAlreadyInRoom     = errors.New("leave your current room first")
	ErrNotRegistered     = errors.New("register before sending room actions")
	ErrUnknownMessage    = errors.New("unknown message type")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrInvalidInvite     = errors.New("invalid invite token")
	ErrEvaluation        = errors.New("evaluation failed")
	ErrAlreadyPlaying    = errors.New("challenge already in progress")
	ErrSeatUnavailable   = errors.New("player can no longer be seated")
)

// SeatError lists the connections a new room could not seat, either because
// they disconnected or because they already sit in another room.
type SeatError struct {
	ConnIDs []uuid.UUID
}

func (e *SeatError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSeatUnavailable, e.ConnIDs)
}

func (e *SeatError) Unwrap() error { return ErrSeatUnavailable }

// Unavailable reports whether connID is one of the connections that could not be seated.
func (e *SeatError) Unavailable(connID uuid.UUID) bool {
	for _, id := range e.ConnIDs {
		if id == connID {
			return true
		}
	}
	return false
}

// Kind groups errors by how the session layer reacts to them.
type Kind int

const (
	KindInternal Kind = iota
	KindProtocol
	KindNotFound
	KindCapacity
	KindEvaluation
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindEvaluation:
		return "evaluation"
	default:
		return "internal"
	}
}

// KindOf maps an error (possibly wrapped) to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrRoomNotFound):
		return KindNotFound
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrAlreadyQueued):
		return KindCapacity
	case errors.Is(err, ErrEvaluation):
		return KindEvaluation
	case errors.Is(err, ErrPrivateRoomDenied),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrNotInChallenge),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrAlreadyInRoom),
		errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrUnknownMessage),
		errors.Is(err, ErrMalformedMessage),
		errors.Is(err, ErrInvalidInvite),
		errors.Is(err, ErrAlreadyPlaying),
		errors.Is(err, ErrSeatUnavailable):
		return KindProtocol
	}
	return KindInternal
}

// Reason returns the text sent back to the client for err. Internal errors are
// not leaked.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInternal {
		return "internal server error"
	}
	return err.Error()
}

// Errorf wraps a sentinel with extra context.
func Errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
