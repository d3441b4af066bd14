package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxParticipants is fixed: every room is a 1v1 duel.
const MaxParticipants = 2

// RoomStatus is the session state of a room.
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusPlaying RoomStatus = "playing"
)

// RoomOptions are the creator's choices for a new room.
type RoomOptions struct {
	Name             string
	IsPrivate        bool
	ChallengeID      string
	TimeLimitSeconds int
	// MaxPlayers is nil when the client did not ask for a size.
	MaxPlayers *int
}

// RoomSummary is one row of the public room list.
type RoomSummary struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code,omitempty"`
	Name       string     `json:"name"`
	Creator    string     `json:"creator"`
	Players    int        `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`
	Difficulty string     `json:"difficulty"`
	TimeLimit  int        `json:"timeLimit"`
	IsPrivate  bool       `json:"isPrivate"`
	CreatedAt  time.Time  `json:"createdAt"`
}
