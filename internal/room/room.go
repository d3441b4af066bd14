// Package room owns duel rooms and drives each through its play cycle:
// Waiting -> Playing -> Waiting, under that room's own lock.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/models"
)

// Room is one 1v1 session. All fields are guarded by Mu.
type Room struct {
	ID          uuid.UUID
	Code        string
	Name        string
	CreatorID   string
	CreatorName string
	ChallengeID string
	TimeLimit   int
	IsPrivate   bool
	CreatedAt   time.Time

	Participants []models.ParticipantRef
	Status       models.RoomStatus
	Submissions  map[string]models.Submission

	// Set while Playing.
	Challenge *models.Challenge
	StartedAt time.Time
	Deadline  time.Time

	// cycle increases on every transition into and out of Playing. Work started
	// in an earlier cycle (evaluations, countdown ticks) is dropped when it comes back.
	cycle     uint64
	remaining int
	expired   bool
	seq       map[string]uint64
	snapshots map[string]string
	stopTimer context.CancelFunc
	closed    bool

	Mu sync.Mutex
}

func newRoom(id uuid.UUID, creator models.Profile, opts models.RoomOptions, now time.Time) *Room {
	return &Room{
		ID:          id,
		Name:        opts.Name,
		CreatorID:   creator.UserID,
		CreatorName: creator.Username,
		ChallengeID: opts.ChallengeID,
		TimeLimit:   opts.TimeLimitSeconds,
		IsPrivate:   opts.IsPrivate,
		CreatedAt:   now,
		Status:      models.StatusWaiting,
		Submissions: make(map[string]models.Submission),
		seq:         make(map[string]uint64),
		snapshots:   make(map[string]string),
	}
}

func (r *Room) indexOf(connID uuid.UUID) int {
	for i, p := range r.Participants {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) hasUser(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// opponentOf returns the other participant, if seated.
func (r *Room) opponentOf(connID uuid.UUID) (models.ParticipantRef, bool) {
	for _, p := range r.Participants {
		if p.ConnectionID != connID {
			return p, true
		}
	}
	return models.ParticipantRef{}, false
}

func (r *Room) connIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Participants))
	for i, p := range r.Participants {
		ids[i] = p.ConnectionID
	}
	return ids
}

func (r *Room) allReady() bool {
	if len(r.Participants) != models.MaxParticipants {
		return false
	}
	for _, p := range r.Participants {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) allSubmitted() bool {
	for _, p := range r.Participants {
		if _, ok := r.Submissions[p.UserID]; !ok {
			return false
		}
	}
	return len(r.Participants) == models.MaxParticipants
}

func (r *Room) cancelCountdown() {
	if r.stopTimer != nil {
		r.stopTimer()
		r.stopTimer = nil
	}
}

// backToWaiting ends the current play cycle without a result.
func (r *Room) backToWaiting() {
	r.cancelCountdown()
	r.Status = models.StatusWaiting
	r.Challenge = nil
	r.StartedAt = time.Time{}
	r.Deadline = time.Time{}
	r.Submissions = make(map[string]models.Submission)
	r.seq = make(map[string]uint64)
	r.snapshots = make(map[string]string)
	r.remaining = 0
	r.expired = false
	for i := range r.Participants {
		r.Participants[i].Ready = false
	}
	r.cycle++
}

// Cycle returns the current play-cycle counter.
func (r *Room) Cycle() uint64 {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.cycle
}
