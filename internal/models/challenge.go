package models

import (
	"time"
)

// RandomChallenge marks a room whose challenge is drawn when play starts.
const RandomChallenge = "random"

// Challenge is immutable static content. Checks drive the built-in evaluator
// and are never sent to clients.
type Challenge struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Difficulty   string  `json:"difficulty"`
	Points       int     `json:"points"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements,omitempty"`
	StarterCode  string  `json:"starter_code"`
	Checks       []Check `json:"checks,omitempty"`
}

// Check is one static rule a solution must satisfy. Pattern is a regular
// expression matched against the submitted source.
type Check struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Points  int    `json:"points"`
}

// Public strips the fields players must not see.
func (c Challenge) Public() Challenge {
	c.Checks = nil
	return c
}

// Evaluation is what the external code evaluator returns for one run.
type Evaluation struct {
	Score  int    `json:"score"`
	Passed bool   `json:"passed"`
	Output string `json:"output"`
}

// Submission is one player's evaluated attempt for the current play cycle.
type Submission struct {
	UserID      string    `json:"userId"`
	Code        string    `json:"-"`
	Score       int       `json:"score"`
	Passed      bool      `json:"passed"`
	Output      string    `json:"output"`
	SubmittedAt time.Time `json:"submittedAt"`
	Auto        bool      `json:"auto,omitempty"`
}
