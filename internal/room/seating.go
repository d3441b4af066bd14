package room

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/protocol"
	"github.com/sirupsen/logrus"
)

// validateOptions fills defaults and rejects options the room cannot honor.
func (s *Store) validateOptions(creator models.Profile, opts models.RoomOptions) (models.RoomOptions, error) {
	if opts.MaxPlayers != nil && *opts.MaxPlayers != models.MaxParticipants {
		return opts, common.Errorf(common.ErrInvalidOptions, "rooms hold exactly %d players", models.MaxParticipants)
	}
	if opts.TimeLimitSeconds == 0 {
		opts.TimeLimitSeconds = s.limits.DefaultTimeLimit
	}
	if opts.TimeLimitSeconds < 0 ||
		(s.limits.MinTimeLimit > 0 && opts.TimeLimitSeconds < s.limits.MinTimeLimit) ||
		(s.limits.MaxTimeLimit > 0 && opts.TimeLimitSeconds > s.limits.MaxTimeLimit) {
		return opts, common.Errorf(common.ErrInvalidOptions, "time limit must be between %d and %d seconds",
			s.limits.MinTimeLimit, s.limits.MaxTimeLimit)
	}
	if opts.ChallengeID == "" {
		opts.ChallengeID = models.RandomChallenge
	}
	if !s.catalog.Has(opts.ChallengeID) {
		return opts, common.Errorf(common.ErrInvalidOptions, "unknown challenge %q", opts.ChallengeID)
	}
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		opts.Name = creator.Username + "'s Room"
	}
	return opts, nil
}

// Create opens a Waiting room with the creator as its only participant.
func (s *Store) Create(connID uuid.UUID, creator models.Profile, opts models.RoomOptions) (*Room, error) {
	opts, err := s.validateOptions(creator, opts)
	if err != nil {
		return nil, err
	}

	r := newRoom(uuid.New(), creator, opts, s.now())
	r.Participants = []models.ParticipantRef{models.NewParticipant(connID, creator)}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	s.insert(r)
	if err := s.seat(r, connID); err != nil {
		s.discard(r)
		return nil, err
	}

	s.gateway.SendTo(connID, protocol.RoomCreated(r.ID, r.Code, r.Name))
	s.gateway.SendTo(connID, protocol.JoinedRoom(r.ID, r.Code, r.Name, nil))
	s.publishSummary(r)

	s.log.WithFields(logrus.Fields{"room": r.ID, "user": creator.UserID}).
		Infof("Room %q created by %s (challenge %s, %ds, private=%v)", r.Name, creator.Username, r.ChallengeID, r.TimeLimit, r.IsPrivate)
	return r, nil
}

// CreateMatchRoom seats two matchmaking entries in a new public room with a
// random challenge. If either connection cannot be seated the room is dropped
// and a *common.SeatError names the connections that were unavailable.
func (s *Store) CreateMatchRoom(a, b models.MatchmakingEntry) (uuid.UUID, error) {
	opts := models.RoomOptions{
		Name:             "Quick Match",
		ChallengeID:      models.RandomChallenge,
		TimeLimitSeconds: s.limits.DefaultTimeLimit,
	}
	r := newRoom(uuid.New(), a.Profile(), opts, s.now())
	pa := models.NewParticipant(a.ConnectionID, a.Profile())
	pb := models.NewParticipant(b.ConnectionID, b.Profile())
	r.Participants = []models.ParticipantRef{pa, pb}

	// The room is indexed before seats are claimed so that a disconnect racing
	// the claim finds it and waits on r.Mu to leave.
	r.Mu.Lock()
	defer r.Mu.Unlock()
	s.insert(r)
	var seated, unavailable []uuid.UUID
	for _, e := range []models.MatchmakingEntry{a, b} {
		if err := s.seat(r, e.ConnectionID); err != nil {
			s.log.WithFields(logrus.Fields{"room": r.ID, "conn": e.ConnectionID}).Debugf("cannot seat matched player: %v", err)
			unavailable = append(unavailable, e.ConnectionID)
			continue
		}
		seated = append(seated, e.ConnectionID)
	}
	if len(unavailable) > 0 {
		for _, id := range seated {
			s.unseat(r, id)
		}
		s.discard(r)
		return uuid.Nil, &common.SeatError{ConnIDs: unavailable}
	}

	for _, pair := range [][2]models.ParticipantRef{{pa, pb}, {pb, pa}} {
		me, opp := pair[0], pair[1]
		s.gateway.SendTo(me.ConnectionID, protocol.MatchmakingFound(r.ID))
		s.gateway.SendTo(me.ConnectionID, protocol.JoinedRoom(r.ID, r.Code, r.Name, &opp))
	}
	s.publishSummary(r)
	return r.ID, nil
}

// JoinRequest targets a room by id or, when RoomID is nil, by join code.
type JoinRequest struct {
	RoomID      uuid.UUID
	Code        string
	ConnID      uuid.UUID
	Profile     models.Profile
	InviteToken string
}

// Join seats a player as the second participant.
func (s *Store) Join(req JoinRequest) (*Room, error) {
	var r *Room
	var ok bool
	if req.RoomID != uuid.Nil {
		r, ok = s.Get(req.RoomID)
	} else if req.Code != "" {
		r, ok = s.GetByCode(req.Code)
	}
	if !ok {
		return nil, common.ErrRoomNotFound
	}

	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.closed {
		return nil, common.ErrRoomNotFound
	}
	if r.indexOf(req.ConnID) >= 0 {
		opp, found := r.opponentOf(req.ConnID)
		var oppRef *models.ParticipantRef
		if found {
			oppRef = &opp
		}
		s.gateway.SendTo(req.ConnID, protocol.JoinedRoom(r.ID, r.Code, r.Name, oppRef))
		return r, nil
	}
	if len(r.Participants) >= models.MaxParticipants {
		return nil, common.ErrRoomFull
	}
	if r.hasUser(req.Profile.UserID) {
		return nil, common.Errorf(common.ErrAlreadyInRoom, "user %s is already seated", req.Profile.UserID)
	}
	if r.IsPrivate && !s.admitted(r, req) {
		return nil, common.ErrPrivateRoomDenied
	}

	if err := s.seat(r, req.ConnID); err != nil {
		return nil, err
	}
	existing := r.Participants[0]
	joiner := models.NewParticipant(req.ConnID, req.Profile)
	r.Participants = append(r.Participants, joiner)

	s.gateway.SendTo(existing.ConnectionID, protocol.PlayerJoined(joiner))
	s.gateway.SendTo(req.ConnID, protocol.JoinedRoom(r.ID, r.Code, r.Name, &existing))
	s.publishSummary(r)

	s.log.WithFields(logrus.Fields{"room": r.ID, "user": joiner.UserID}).Infof("%s joined room %q", joiner.Username, r.Name)
	return r, nil
}

// admitted reports whether a private room lets this joiner in: the creator's
// own user id, or the guest named by a valid invite for this room.
func (s *Store) admitted(r *Room, req JoinRequest) bool {
	if req.Profile.UserID == r.CreatorID {
		return true
	}
	if req.InviteToken == "" || s.invites == nil {
		return false
	}
	roomID, guest, err := s.invites.Verify(req.InviteToken)
	if err != nil {
		s.log.WithField("room", r.ID).Debugf("rejected invite: %v", err)
		return false
	}
	return roomID == r.ID && guest == req.Profile.UserID
}

// Leave removes a participant. A Playing room falls back to Waiting; an empty
// room is destroyed.
func (s *Store) Leave(roomID, connID uuid.UUID) error {
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

	leaver := r.Participants[idx]
	r.Participants = append(r.Participants[:idx], r.Participants[idx+1:]...)
	s.unseat(r, connID)
	s.gateway.SendTo(connID, protocol.LeftRoom(r.ID))

	logger := s.log.WithFields(logrus.Fields{"room": r.ID, "user": leaver.UserID})
	if r.Status == models.StatusPlaying {
		logger.Infof("%s left mid-challenge; room back to waiting", leaver.Username)
		r.backToWaiting()
	} else {
		delete(r.snapshots, leaver.UserID)
	}

	if len(r.Participants) == 0 {
		r.closed = true
		r.cancelCountdown()
		s.remove(r)
		return nil
	}

	s.gateway.SendToMany(r.connIDs(), protocol.PlayerLeft(leaver.Username, leaver.UserID))
	s.publishSummary(r)
	logger.Infof("%s left room %q", leaver.Username, r.Name)
	return nil
}

// AuthorizeInvite checks that connID created the private room roomID.
func (s *Store) AuthorizeInvite(roomID, connID uuid.UUID) error {
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
	if r.Participants[idx].UserID != r.CreatorID {
		return common.ErrNotCreator
	}
	if !r.IsPrivate {
		return common.Errorf(common.ErrInvalidOptions, "room %s is public", r.ID)
	}
	return nil
}

// RequestRematch tells the opponent that connID wants another round.
func (s *Store) RequestRematch(roomID, connID uuid.UUID) error {
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
	opp, ok := r.opponentOf(connID)
	if !ok {
		return fmt.Errorf("no opponent in room: %w", common.ErrNotInRoom)
	}
	s.gateway.SendTo(opp.ConnectionID, protocol.SystemMessage(
		fmt.Sprintf("%s wants a rematch! Click Ready to play again.", r.Participants[idx].Username)))
	return nil
}

// seat claims connID's presence for r. Caller holds r.Mu.
func (s *Store) seat(r *Room, connID uuid.UUID) error {
	if s.presence == nil {
		return nil
	}
	return s.presence.ClaimRoom(connID, r.ID)
}

func (s *Store) unseat(r *Room, connID uuid.UUID) {
	if s.presence != nil {
		s.presence.ClearRoomIf(connID, r.ID)
	}
}
