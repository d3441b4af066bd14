package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRating is assigned to players that register without one.
const DefaultRating = 1350

// Profile is what a client states about itself on register/join/quick-match.
type Profile struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Rating   int    `json:"rating"`
}

// Player is the lightweight identity bound to one live connection.
type Player struct {
	ConnectionID  uuid.UUID  `json:"connectionId"`
	Username      string     `json:"username"`
	UserID        string     `json:"userId"`
	Rating        int        `json:"rating"`
	CurrentRoomID *uuid.UUID `json:"currentRoomId,omitempty"`
}

// Profile returns the player's public profile.
func (p Player) Profile() Profile {
	return Profile{Username: p.Username, UserID: p.UserID, Rating: p.Rating}
}

// ParticipantRef is a player's seat inside a room.
type ParticipantRef struct {
	ConnectionID uuid.UUID `json:"-"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Rating       int       `json:"rating"`
	Ready        bool      `json:"ready"`
}

// NewParticipant seats a player, not ready.
func NewParticipant(connID uuid.UUID, p Profile) ParticipantRef {
	return ParticipantRef{
		ConnectionID: connID,
		UserID:       p.UserID,
		Username:     p.Username,
		Rating:       p.Rating,
	}
}

// MatchmakingEntry is one player waiting in the quick-match queue.
type MatchmakingEntry struct {
	ConnectionID uuid.UUID `json:"connectionId"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Rating       int       `json:"rating"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Profile returns the entry's profile.
func (e MatchmakingEntry) Profile() Profile {
	return Profile{Username: e.Username, UserID: e.UserID, Rating: e.Rating}
}
