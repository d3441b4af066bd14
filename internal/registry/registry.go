// Package registry tracks the player identity bound to each live connection.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/sirupsen/logrus"
)

// Registry maps connection ids to players.
type Registry struct {
	mu      sync.Mutex
	players map[uuid.UUID]*models.Player
	log     *logrus.Logger

	// OnRemove runs after a player is unregistered, outside the registry lock.
	// The coordinator uses it to cancel matchmaking and leave the current room.
	OnRemove func(p models.Player)
}

func New(logger *logrus.Logger) *Registry {
	return &Registry{
		players: make(map[uuid.UUID]*models.Player),
		log:     logger,
	}
}

// Register binds a profile to a connection. Re-registering overwrites the
// profile but keeps the player's current room.
func (r *Registry) Register(connID uuid.UUID, profile models.Profile) models.Player {
	profile = withDefaults(connID, profile)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		p = &models.Player{ConnectionID: connID}
		r.players[connID] = p
	}
	p.Username = profile.Username
	p.UserID = profile.UserID
	p.Rating = profile.Rating

	r.log.WithFields(logrus.Fields{"conn": connID, "user": p.UserID}).Debugf("registered %s (rating %d)", p.Username, p.Rating)
	return *p
}

// Unregister removes the player for connID and fires OnRemove. It is safe to
// call for connections that never registered.
func (r *Registry) Unregister(connID uuid.UUID) (models.Player, bool) {
	r.mu.Lock()
	p, ok := r.players[connID]
	if ok {
		delete(r.players, connID)
	}
	r.mu.Unlock()

	if !ok {
		return models.Player{}, false
	}
	if r.OnRemove != nil {
		r.OnRemove(*p)
	}
	return *p, true
}

// Get returns a copy of the player bound to connID.
func (r *Registry) Get(connID uuid.UUID) (models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		return models.Player{}, fmt.Errorf("conn %s: %w", connID, common.ErrNotRegistered)
	}
	return *p, nil
}

// ClaimRoom seats the connection in roomID. It fails when the connection is no
// longer registered or already sits in another room; claiming the room it
// already holds succeeds.
func (r *Registry) ClaimRoom(connID, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		return fmt.Errorf("conn %s: %w", connID, common.ErrNotRegistered)
	}
	if p.CurrentRoomID != nil && *p.CurrentRoomID != roomID {
		return fmt.Errorf("conn %s seated in %s: %w", connID, *p.CurrentRoomID, common.ErrAlreadyInRoom)
	}
	id := roomID
	p.CurrentRoomID = &id
	return nil
}

// Has reports whether connID is registered.
func (r *Registry) Has(connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[connID]
	return ok
}

// ClearRoomIf clears the room pointer only if it still points at roomID.
func (r *Registry) ClearRoomIf(connID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[connID]; ok && p.CurrentRoomID != nil && *p.CurrentRoomID == roomID {
		p.CurrentRoomID = nil
	}
}

// Count is the number of registered players.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// DefaultUsername is the name given to players that register without one.
func DefaultUsername(connID uuid.UUID) string {
	return "Player_" + connID.String()[:5]
}

func withDefaults(connID uuid.UUID, p models.Profile) models.Profile {
	if p.Username == "" {
		p.Username = DefaultUsername(connID)
	}
	if p.UserID == "" {
		p.UserID = connID.String()
	}
	if p.Rating <= 0 {
		p.Rating = models.DefaultRating
	}
	return p
}

// Complete fills the defaults into a partial profile without registering it.
func Complete(connID uuid.UUID, p models.Profile) models.Profile {
	return withDefaults(connID, p)
}
