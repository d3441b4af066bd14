// Package matchmaking pairs players waiting for a quick match, oldest first.
package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomMaker creates the room two paired players are seated in.
type RoomMaker interface {
	CreateMatchRoom(a, b models.MatchmakingEntry) (uuid.UUID, error)
}

// Queue is a FIFO of waiting players. No user appears twice.
type Queue struct {
	mu      sync.Mutex
	entries []models.MatchmakingEntry
	maker   RoomMaker
	log     *logrus.Logger
	now     func() time.Time

	// Present reports whether a connection is still live. When set, entries for
	// gone connections are never added or put back. It is called under the
	// queue lock, so a disconnect that cancels after it returns true always
	// finds the entry.
	Present func(connID uuid.UUID) bool
}

func NewQueue(maker RoomMaker, logger *logrus.Logger) *Queue {
	return &Queue{maker: maker, log: logger, now: time.Now}
}

// Enqueue appends a player and returns their 1-based position.
func (q *Queue) Enqueue(connID uuid.UUID, p models.Profile) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.present(connID) {
		return 0, fmt.Errorf("conn %s: %w", connID, common.ErrNotRegistered)
	}
	if q.queuedLocked(models.MatchmakingEntry{ConnectionID: connID, UserID: p.UserID}) {
		return 0, fmt.Errorf("user %s: %w", p.UserID, common.ErrAlreadyQueued)
	}
	q.entries = append(q.entries, models.MatchmakingEntry{
		ConnectionID: connID,
		UserID:       p.UserID,
		Username:     p.Username,
		Rating:       p.Rating,
		JoinedAt:     q.now(),
	})
	q.log.WithFields(logrus.Fields{"conn": connID, "user": p.UserID}).Debugf("queued at position %d", len(q.entries))
	return len(q.entries), nil
}

func (q *Queue) present(connID uuid.UUID) bool {
	return q.Present == nil || q.Present(connID)
}

// queuedLocked reports whether e's connection or user already waits. Caller holds q.mu.
func (q *Queue) queuedLocked(e models.MatchmakingEntry) bool {
	for _, w := range q.entries {
		if w.ConnectionID == e.ConnectionID || w.UserID == e.UserID {
			return true
		}
	}
	return false
}

// Cancel removes the connection's entry if present. It reports whether one was removed.
func (q *Queue) Cancel(connID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ConnectionID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the 1-based queue position of connID, or 0.
func (q *Queue) Position(connID uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ConnectionID == connID {
			return i + 1
		}
	}
	return 0
}

// Len is the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pairing is the outcome of a successful TryPair.
type Pairing struct {
	RoomID uuid.UUID
	A, B   models.MatchmakingEntry
}

// TryPair seats the two oldest entries in a new room. It returns nil when fewer
// than two players wait. If the room cannot be created, both entries go back
// to the head of the queue in their original order. When the maker reports a
// *common.SeatError, only the entries it did not name go back, and the error is
// returned so the caller can try again with the next player in line.
func (q *Queue) TryPair() (*Pairing, error) {
	q.mu.Lock()
	if len(q.entries) < 2 {
		q.mu.Unlock()
		return nil, nil
	}
	a, b := q.entries[0], q.entries[1]
	q.entries = append([]models.MatchmakingEntry(nil), q.entries[2:]...)
	q.mu.Unlock()

	roomID, err := q.maker.CreateMatchRoom(a, b)
	if err != nil {
		var seatErr *common.SeatError
		unseatable := errors.As(err, &seatErr)

		q.mu.Lock()
		var back []models.MatchmakingEntry
		for _, e := range []models.MatchmakingEntry{a, b} {
			if unseatable && seatErr.Unavailable(e.ConnectionID) {
				continue
			}
			if q.present(e.ConnectionID) && !q.queuedLocked(e) {
				back = append(back, e)
			}
		}
		q.entries = append(back, q.entries...)
		q.mu.Unlock()
		return nil, fmt.Errorf("pairing %s with %s: %w", a.UserID, b.UserID, err)
	}

	q.log.WithFields(logrus.Fields{"room": roomID}).Infof("Matched %s with %s", a.Username, b.Username)
	return &Pairing{RoomID: roomID, A: a, B: b}, nil
}
