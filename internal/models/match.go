package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is the outcome of one play cycle. Winner is nil on a draw.
type MatchResult struct {
	Winner        *string        `json:"winner"`
	WinnerUserID  *string        `json:"winnerUserId"`
	Player1       string         `json:"player1"`
	Player2       string         `json:"player2"`
	Player1Score  int            `json:"player1Score"`
	Player2Score  int            `json:"player2Score"`
	RatingChanges map[string]int `json:"ratingChanges"`
}

// IsDraw reports whether nobody won.
func (r MatchResult) IsDraw() bool {
	return r.Winner == nil
}

// MatchRecord is the archival form of a finished match, shipped to the
// historian through Redis.
type MatchRecord struct {
	MatchID      uuid.UUID      `json:"match_id"`
	RoomID       uuid.UUID      `json:"room_id"`
	ChallengeID  string         `json:"challenge_id"`
	Player1ID    string         `json:"player1_id"`
	Player2ID    string         `json:"player2_id"`
	Player1Score int            `json:"player1_score"`
	Player2Score int            `json:"player2_score"`
	WinnerID     string         `json:"winner_id,omitempty"`
	Ratings      map[string]int `json:"ratings"`
	Deltas       map[string]int `json:"deltas"`
	FinishedAt   time.Time      `json:"finished_at"`
}
