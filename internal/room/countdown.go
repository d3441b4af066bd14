package room

import (
	"context"
	"time"

	"github.com/jason-s-yu/codearena/internal/models"
)

// startCountdown ticks r.remaining down once per Limits.Tick and expires the
// challenge at zero. Caller holds r.Mu. A countdown whose cycle has passed
// stops on its next tick.
func (s *Store) startCountdown(r *Room) {
	r.cancelCountdown()
	ctx, cancel := context.WithCancel(context.Background())
	r.stopTimer = cancel
	go s.runCountdown(ctx, r, r.cycle, s.limits.Tick)
}

func (s *Store) runCountdown(ctx context.Context, r *Room, gen uint64, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		r.Mu.Lock()
		if r.closed || r.cycle != gen || r.Status != models.StatusPlaying || r.expired {
			r.Mu.Unlock()
			return
		}
		r.remaining--
		if r.remaining > 0 {
			r.Mu.Unlock()
			continue
		}
		s.expire(r)
		r.Mu.Unlock()
		return
	}
}

// Remaining returns the countdown ticks left in the current challenge.
func (r *Room) Remaining() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.remaining
}
