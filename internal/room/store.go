// internal/room/store.go
package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Broadcaster delivers events to connections.
type Broadcaster interface {
	SendTo(connID uuid.UUID, ev protocol.Event) bool
	SendToMany(connIDs []uuid.UUID, ev protocol.Event)
	BroadcastAll(ev protocol.Event)
}

// Catalog resolves challenge ids.
type Catalog interface {
	Has(id string) bool
	Resolve(id string) (models.Challenge, error)
	Difficulty(id string) string
}

// Runner evaluates a submission. It never fails; failures come back as score 0.
type Runner interface {
	Run(ctx context.Context, code string, ch models.Challenge) models.Evaluation
}

// ResultPublisher ships finished matches to the history sink.
type ResultPublisher interface {
	PublishMatch(ctx context.Context, rec models.MatchRecord) error
}

// InviteVerifier checks a private-room invite token.
type InviteVerifier interface {
	Verify(token string) (roomID uuid.UUID, guestUserID string, err error)
}

// Presence is the authority on which room a connection sits in. ClaimRoom
// fails for connections that are gone or already seated elsewhere.
type Presence interface {
	ClaimRoom(connID, roomID uuid.UUID) error
	ClearRoomIf(connID, roomID uuid.UUID)
}

// Limits bound the room options a client may choose.
type Limits struct {
	DefaultTimeLimit int
	MinTimeLimit     int
	MaxTimeLimit     int
	// Tick is one countdown step; a time limit of N counts down N ticks.
	Tick time.Duration
}

// Deps are the collaborators of a Store. Publisher, Invites and Presence may be nil.
type Deps struct {
	Gateway   Broadcaster
	Catalog   Catalog
	Evaluator Runner
	Publisher ResultPublisher
	Invites   InviteVerifier
	Presence  Presence
	Limits    Limits
	Logger    *logrus.Logger
}

// Store indexes live rooms by id and join code and keeps the public room list.
type Store struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*Room
	byCode    map[string]uuid.UUID
	summaries map[uuid.UUID]models.RoomSummary

	gateway   Broadcaster
	catalog   Catalog
	eval      Runner
	publisher ResultPublisher
	invites   InviteVerifier
	presence  Presence
	limits    Limits
	log       *logrus.Logger
	now       func() time.Time

	publishing sync.WaitGroup
}

func NewStore(d Deps) *Store {
	if d.Limits.Tick <= 0 {
		d.Limits.Tick = time.Second
	}
	if d.Limits.DefaultTimeLimit <= 0 {
		d.Limits.DefaultTimeLimit = 300
	}
	return &Store{
		rooms:     make(map[uuid.UUID]*Room),
		byCode:    make(map[string]uuid.UUID),
		summaries: make(map[uuid.UUID]models.RoomSummary),
		gateway:   d.Gateway,
		catalog:   d.Catalog,
		eval:      d.Evaluator,
		publisher: d.Publisher,
		invites:   d.Invites,
		presence:  d.Presence,
		limits:    d.Limits,
		log:       d.Logger,
		now:       time.Now,
	}
}

// Get returns a live room by id.
func (s *Store) Get(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// GetByCode returns a live room by its join code, case-insensitively.
func (s *Store) GetByCode(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, false
	}
	r, ok := s.rooms[id]
	return r, ok
}

// Len is the number of live rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// List returns the room list, oldest room first.
func (s *Store) List() []models.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) listLocked() []models.RoomSummary {
	out := make([]models.RoomSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// insert adds r with a fresh join code. Caller holds r.Mu.
func (s *Store) insert(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		code := newJoinCode()
		if _, taken := s.byCode[code]; !taken {
			r.Code = code
			s.byCode[code] = r.ID
			break
		}
	}
	s.rooms[r.ID] = r
}

// remove drops r from the index and republishes the room list. Caller holds r.Mu.
func (s *Store) remove(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, r.ID)
	delete(s.byCode, r.Code)
	delete(s.summaries, r.ID)
	s.log.WithField("room", r.ID).Infof("Room %q destroyed", r.Name)
	s.gateway.BroadcastAll(protocol.RoomList(s.listLocked()))
}

// discard drops a room that never became visible: no list broadcast. Caller holds r.Mu.
func (s *Store) discard(r *Room) {
	r.closed = true
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, r.ID)
	delete(s.byCode, r.Code)
	delete(s.summaries, r.ID)
}

// publishSummary refreshes r's row in the room list and broadcasts the list to
// every client. Caller holds r.Mu; the broadcast happens under the store lock so
// clients see list snapshots in the order they were taken.
func (s *Store) publishSummary(r *Room) {
	sum := models.RoomSummary{
		ID:         r.ID,
		Name:       r.Name,
		Creator:    r.CreatorName,
		Players:    len(r.Participants),
		MaxPlayers: models.MaxParticipants,
		Status:     r.Status,
		Difficulty: s.catalog.Difficulty(r.ChallengeID),
		TimeLimit:  r.TimeLimit,
		IsPrivate:  r.IsPrivate,
		CreatedAt:  r.CreatedAt,
	}
	if !r.IsPrivate {
		sum.Code = r.Code
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, live := s.rooms[r.ID]; !live {
		return
	}
	s.summaries[r.ID] = sum
	s.gateway.BroadcastAll(protocol.RoomList(s.listLocked()))
}

// Shutdown stops every countdown and waits for in-flight result publishes.
func (s *Store) Shutdown() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, r := range rooms {
		r.Mu.Lock()
		r.cancelCountdown()
		r.Mu.Unlock()
	}
	s.publishing.Wait()
}

func (s *Store) lookup(id uuid.UUID) (*Room, error) {
	r, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, common.ErrRoomNotFound)
	}
	return r, nil
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// JoinCodeLength is the length of the short code players share to join a room.
const JoinCodeLength = 6

func newJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
