package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/protocol"
	"github.com/jason-s-yu/codearena/internal/rating"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// SetReady flips a participant's ready flag. When both participants are ready
// the challenge starts.
func (s *Store) SetReady(roomID, connID uuid.UUID, isReady bool) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return common.ErrRoomNotFound
	}
	idx := r.indexOf(connID)
	if idx < 0 {
		return common.ErrNotInRoom
	}
	if r.Status == models.StatusPlaying {
		return common.ErrAlreadyPlaying
	}

	p := &r.Participants[idx]
	p.Ready = isReady
	s.gateway.SendToMany(r.connIDs(), protocol.PlayerReadyChanged(p.Username, p.UserID, isReady))

	if r.allReady() {
		return s.start(r)
	}
	return nil
}

// start moves r into Playing. Caller holds r.Mu.
func (s *Store) start(r *Room) error {
	ch, err := s.catalog.Resolve(r.ChallengeID)
	if err != nil {
		for i := range r.Participants {
			r.Participants[i].Ready = false
		}
		return err
	}

	now := s.now()
	r.Status = models.StatusPlaying
	r.Challenge = &ch
	r.StartedAt = now
	r.Deadline = now.Add(time.Duration(r.TimeLimit) * s.limits.Tick)
	r.Submissions = make(map[string]models.Submission)
	r.seq = make(map[string]uint64)
	r.snapshots = make(map[string]string)
	r.expired = false
	r.remaining = r.TimeLimit
	for i := range r.Participants {
		r.Participants[i].Ready = false
	}
	r.cycle++
	s.startCountdown(r)

	s.gateway.SendToMany(r.connIDs(), protocol.ChallengeStart(ch, r.TimeLimit, r.Deadline))
	s.publishSummary(r)
	s.log.WithFields(logrus.Fields{"room": r.ID, "challenge": ch.ID}).
		Infof("Challenge %q started in room %q", ch.Title, r.Name)
	return nil
}

// UpdateCode stores the participant's latest code for auto-submission and tells
// the opponent they are typing. Outside Playing it does nothing.
func (s *Store) UpdateCode(roomID, connID uuid.UUID, code string) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return common.ErrRoomNotFound
	}
	idx := r.indexOf(connID)
	if idx < 0 {
		return common.ErrNotInRoom
	}
	if r.Status != models.StatusPlaying || r.expired {
		return nil
	}
	p := r.Participants[idx]
	r.snapshots[p.UserID] = code
	if opp, ok := r.opponentOf(connID); ok {
		s.gateway.SendTo(opp.ConnectionID, protocol.CodeActivity(p.Username, p.UserID, len(code)))
	}
	return nil
}

// Submit evaluates code for the participant on connID. Evaluation runs without
// the room lock; its result is dropped if the play cycle ended meanwhile or a
// newer submission from the same player was made.
func (s *Store) Submit(ctx context.Context, roomID, connID uuid.UUID, code string) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}

	r.Mu.Lock()
	if r.closed {
		r.Mu.Unlock()
		return common.ErrRoomNotFound
	}
	idx := r.indexOf(connID)
	if idx < 0 {
		r.Mu.Unlock()
		return common.ErrNotInRoom
	}
	if r.Status != models.StatusPlaying || r.expired {
		r.Mu.Unlock()
		return common.ErrNotInChallenge
	}
	userID := r.Participants[idx].UserID
	r.seq[userID]++
	mySeq := r.seq[userID]
	r.snapshots[userID] = code
	gen := r.cycle
	ch := *r.Challenge
	r.Mu.Unlock()

	ev := s.evaluate(ctx, code, ch)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	logger := s.log.WithFields(logrus.Fields{"room": r.ID, "user": userID})
	if r.closed || r.cycle != gen || r.Status != models.StatusPlaying || r.expired {
		logger.Debug("dropping evaluation from a finished play cycle")
		return nil
	}
	if r.seq[userID] != mySeq {
		logger.Debug("dropping superseded evaluation")
		return nil
	}
	s.record(r, userID, code, ev, false)
	if r.allSubmitted() {
		s.finish(r)
	}
	return nil
}

func (s *Store) evaluate(ctx context.Context, code string, ch models.Challenge) models.Evaluation {
	if strings.TrimSpace(code) == "" {
		return models.Evaluation{Score: 0, Passed: false, Output: "No code submitted"}
	}
	return s.eval.Run(ctx, code, ch)
}

// record stores a submission and announces it. Caller holds r.Mu.
func (s *Store) record(r *Room, userID, code string, ev models.Evaluation, auto bool) {
	sub := models.Submission{
		UserID:      userID,
		Code:        code,
		Score:       ev.Score,
		Passed:      ev.Passed,
		Output:      ev.Output,
		SubmittedAt: s.now(),
		Auto:        auto,
	}
	if sub.Score < 0 {
		sub.Score = 0
	}
	r.Submissions[userID] = sub

	for _, p := range r.Participants {
		if p.UserID == userID {
			s.gateway.SendTo(p.ConnectionID, protocol.SubmissionAck(sub))
			if opp, ok := r.opponentOf(p.ConnectionID); ok {
				s.gateway.SendTo(opp.ConnectionID, protocol.ChallengeResult(p.Username, p.UserID, sub))
			}
			return
		}
	}
}

type pendingAuto struct {
	userID string
	code   string
	seq    uint64
}

// expire runs when the countdown reaches zero: every participant without a
// submission gets their last code snapshot submitted, then the match finishes.
// Caller holds r.Mu; the lock is released while auto-submissions evaluate.
func (s *Store) expire(r *Room) {
	r.expired = true
	r.cancelCountdown()
	gen := r.cycle
	ch := *r.Challenge

	var pending []pendingAuto
	for _, p := range r.Participants {
		if _, ok := r.Submissions[p.UserID]; ok {
			continue
		}
		r.seq[p.UserID]++
		pending = append(pending, pendingAuto{userID: p.UserID, code: r.snapshots[p.UserID], seq: r.seq[p.UserID]})
	}
	if len(pending) == 0 {
		s.finish(r)
		return
	}

	s.log.WithField("room", r.ID).Infof("Time is up in room %q; auto-submitting %d solution(s)", r.Name, len(pending))
	r.Mu.Unlock()
	results := make([]models.Evaluation, len(pending))
	var wg sync.WaitGroup
	for i, p := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.evaluate(context.Background(), p.code, ch)
		}()
	}
	wg.Wait()
	r.Mu.Lock()

	if r.closed || r.cycle != gen {
		return
	}
	for i, p := range pending {
		if r.seq[p.userID] == p.seq && r.hasUser(p.userID) {
			s.record(r, p.userID, p.code, results[i], true)
		}
	}
	s.finish(r)
}

// finish computes the result, reports it and returns r to Waiting. Caller holds r.Mu.
func (s *Store) finish(r *Room) {
	if len(r.Participants) != models.MaxParticipants || r.Challenge == nil {
		r.backToWaiting()
		s.publishSummary(r)
		return
	}
	p1, p2 := r.Participants[0], r.Participants[1]
	res := rating.ComputeResult(
		rating.EntryFor(p1, submissionOf(r, p1.UserID)),
		rating.EntryFor(p2, submissionOf(r, p2.UserID)),
	)
	for _, p := range r.Participants {
		s.gateway.SendTo(p.ConnectionID, protocol.MatchComplete(res, res.RatingChanges[p.UserID]))
	}

	rec := models.MatchRecord{
		MatchID:      uuid.New(),
		RoomID:       r.ID,
		ChallengeID:  r.Challenge.ID,
		Player1ID:    p1.UserID,
		Player2ID:    p2.UserID,
		Player1Score: res.Player1Score,
		Player2Score: res.Player2Score,
		Ratings:      map[string]int{p1.UserID: p1.Rating, p2.UserID: p2.Rating},
		Deltas:       res.RatingChanges,
		FinishedAt:   s.now(),
	}
	if res.WinnerUserID != nil {
		rec.WinnerID = *res.WinnerUserID
	}
	s.publishRecord(rec)

	winner := "draw"
	if res.Winner != nil {
		winner = *res.Winner
	}
	s.log.WithFields(logrus.Fields{"room": r.ID, "match": rec.MatchID}).
		Infof("Match complete: %s %d - %d %s (winner: %s)", p1.Username, res.Player1Score, res.Player2Score, p2.Username, winner)

	r.backToWaiting()
	s.publishSummary(r)
}

func submissionOf(r *Room, userID string) *models.Submission {
	if sub, ok := r.Submissions[userID]; ok {
		return &sub
	}
	return nil
}

// publishRecord hands the record to the history sink in the background.
// Failures are logged and never affect the match.
func (s *Store) publishRecord(rec models.MatchRecord) {
	if s.publisher == nil {
		return
	}
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishMatch(ctx, rec); err != nil {
			s.log.WithField("match", rec.MatchID).Warnf("Failed to publish match record: %v", err)
		}
	}()
}
