package rating

import (
	"github.com/jason-s-yu/codearena/internal/models"
)

// Flat rating deltas applied after every decided match. Draws change nothing.
const (
	WinDelta  = 25
	LossDelta = -15
	DrawDelta = 0
)

// Entry is one side of a finished match: who played and what they scored.
type Entry struct {
	UserID   string
	Username string
	Score    int
}

// EntryFor builds an Entry from a participant and their (possibly missing)
// submission. A missing submission scores 0.
func EntryFor(p models.ParticipantRef, sub *models.Submission) Entry {
	e := Entry{UserID: p.UserID, Username: p.Username}
	if sub != nil {
		e.Score = sub.Score
	}
	return e
}

// ComputeResult decides a 1v1 match. The strictly higher score wins; equal
// scores are a draw. It has no side effects and depends only on its inputs.
func ComputeResult(p1, p2 Entry) models.MatchResult {
	res := models.MatchResult{
		Player1:       p1.Username,
		Player2:       p2.Username,
		Player1Score:  p1.Score,
		Player2Score:  p2.Score,
		RatingChanges: make(map[string]int, 2),
	}

	var winner, loser *Entry
	switch {
	case p1.Score > p2.Score:
		winner, loser = &p1, &p2
	case p2.Score > p1.Score:
		winner, loser = &p2, &p1
	}

	if winner == nil {
		res.RatingChanges[p1.UserID] = DrawDelta
		res.RatingChanges[p2.UserID] = DrawDelta
		return res
	}

	name, id := winner.Username, winner.UserID
	res.Winner = &name
	res.WinnerUserID = &id
	res.RatingChanges[winner.UserID] = WinDelta
	res.RatingChanges[loser.UserID] = LossDelta
	return res
}

// Apply returns the rating after a delta, never below zero.
func Apply(rating, delta int) int {
	if rating+delta < 0 {
		return 0
	}
	return rating + delta
}
