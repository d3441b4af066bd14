// Package session routes decoded client messages into the registry, the
// matchmaking queue and the room store, and reports failures back to the sender.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/broadcast"
	"github.com/jason-s-yu/codearena/internal/common"
	"github.com/jason-s-yu/codearena/internal/matchmaking"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/protocol"
	"github.com/jason-s-yu/codearena/internal/registry"
	"github.com/jason-s-yu/codearena/internal/room"
	"github.com/sirupsen/logrus"
)

// InviteIssuer signs private-room invites.
type InviteIssuer interface {
	Create(roomID uuid.UUID, guestUserID string) (string, error)
}

// Coordinator is the single entry point for connection events.
type Coordinator struct {
	registry *registry.Registry
	queue    *matchmaking.Queue
	rooms    *room.Store
	gateway  *broadcast.Gateway
	invites  InviteIssuer
	log      *logrus.Logger

	inflight sync.WaitGroup
}

// New wires the coordinator into the registry so that removing a player also
// takes them out of the queue and their room.
func New(reg *registry.Registry, queue *matchmaking.Queue, rooms *room.Store, gw *broadcast.Gateway, invites InviteIssuer, logger *logrus.Logger) *Coordinator {
	c := &Coordinator{
		registry: reg,
		queue:    queue,
		rooms:    rooms,
		gateway:  gw,
		invites:  invites,
		log:      logger,
	}
	reg.OnRemove = c.onPlayerRemoved
	queue.Present = reg.Has
	return c
}

// Connect attaches a new connection and sends it the current room list.
func (c *Coordinator) Connect(sink broadcast.Sink) {
	c.gateway.Attach(sink)
	c.gateway.SendTo(sink.ID(), protocol.RoomList(c.rooms.List()))
}

// Disconnect tears down everything bound to connID. Safe to call more than once.
func (c *Coordinator) Disconnect(connID uuid.UUID) {
	_, wasRegistered := c.registry.Unregister(connID)
	c.queue.Cancel(connID)
	c.gateway.Detach(connID)
	if wasRegistered {
		c.gateway.BroadcastAll(protocol.OnlineCount(c.registry.Count()))
	}
}

func (c *Coordinator) onPlayerRemoved(p models.Player) {
	c.queue.Cancel(p.ConnectionID)
	if p.CurrentRoomID == nil {
		return
	}
	if err := c.rooms.Leave(*p.CurrentRoomID, p.ConnectionID); err != nil && !errors.Is(err, common.ErrRoomNotFound) && !errors.Is(err, common.ErrNotInRoom) {
		c.log.WithFields(logrus.Fields{"conn": p.ConnectionID, "room": *p.CurrentRoomID}).Warnf("leave on disconnect failed: %v", err)
	}
}

// Wait blocks until background submissions have finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// HandleRaw decodes one frame and handles it.
func (c *Coordinator) HandleRaw(ctx context.Context, connID uuid.UUID, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.fail(connID, "", err)
		return
	}
	c.Handle(ctx, connID, msg)
}

// Handle applies one message from connID. Errors go back to the sender only.
func (c *Coordinator) Handle(ctx context.Context, connID uuid.UUID, msg protocol.Message) {
	if err := c.dispatch(ctx, connID, msg); err != nil {
		c.fail(connID, msg.MessageType(), err)
	}
}

func (c *Coordinator) fail(connID uuid.UUID, action string, err error) {
	kind := common.KindOf(err)
	logger := c.log.WithFields(logrus.Fields{"conn": connID, "action": action})
	if kind == common.KindInternal {
		logger.Errorf("internal error: %v", err)
	} else {
		logger.Debugf("rejected: %v", err)
	}
	c.gateway.SendTo(connID, protocol.Error(action, common.Reason(err), kind.String()))
}

func (c *Coordinator) dispatch(ctx context.Context, connID uuid.UUID, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.Register:
		return c.register(connID, m)
	case *protocol.CreateRoom:
		return c.createRoom(connID, m)
	case *protocol.JoinRoom:
		return c.joinRoom(connID, m)
	case *protocol.LeaveRoom:
		roomID, err := c.roomFor(connID, m.RoomID)
		if err != nil {
			return err
		}
		return c.rooms.Leave(roomID, connID)
	case *protocol.PlayerReady:
		roomID, err := c.roomFor(connID, m.RoomID)
		if err != nil {
			return err
		}
		return c.rooms.SetReady(roomID, connID, m.IsReady)
	case *protocol.CodeUpdate:
		roomID, err := c.roomFor(connID, m.RoomID)
		if err != nil {
			return err
		}
		return c.rooms.UpdateCode(roomID, connID, m.Code)
	case *protocol.SubmitSolution:
		return c.submit(ctx, connID, m)
	case *protocol.FindQuickMatch:
		return c.findQuickMatch(connID, m)
	case *protocol.CancelMatchmaking:
		c.queue.Cancel(connID)
		return nil
	case *protocol.GetRooms:
		c.gateway.SendTo(connID, protocol.RoomList(c.rooms.List()))
		return nil
	case *protocol.CreateInvite:
		return c.createInvite(connID, m)
	case *protocol.RequestRematch:
		roomID, err := c.roomFor(connID, m.RoomID)
		if err != nil {
			return err
		}
		return c.rooms.RequestRematch(roomID, connID)
	case *protocol.Ping:
		c.gateway.SendTo(connID, protocol.Pong())
		return nil
	default:
		return fmt.Errorf("%w: %s", common.ErrUnknownMessage, msg.MessageType())
	}
}

func (c *Coordinator) register(connID uuid.UUID, m *protocol.Register) error {
	p := c.registry.Register(connID, models.Profile{Username: m.Username, UserID: m.UserID, Rating: m.Rating})
	c.gateway.SendTo(connID, protocol.SystemMessage(fmt.Sprintf("Welcome, %s!", p.Username)))
	c.gateway.BroadcastAll(protocol.OnlineCount(c.registry.Count()))
	return nil
}

// identify returns the player on connID, registering it when needed. Profile
// fields in the message update the player only while it is neither queued nor
// seated, so queue entries and seats always carry the registered identity.
func (c *Coordinator) identify(connID uuid.UUID, profile models.Profile) models.Player {
	p, err := c.registry.Get(connID)
	if err == nil {
		if profile.Username == "" && profile.UserID == "" {
			return p
		}
		if p.CurrentRoomID != nil || c.queue.Position(connID) > 0 {
			c.log.WithField("conn", connID).Debug("ignoring profile change while queued or seated")
			return p
		}
		if profile.Username == "" {
			profile.Username = p.Username
		}
		if profile.UserID == "" {
			profile.UserID = p.UserID
		}
		if profile.Rating <= 0 {
			profile.Rating = p.Rating
		}
	}
	return c.registry.Register(connID, profile)
}

func (c *Coordinator) createRoom(connID uuid.UUID, m *protocol.CreateRoom) error {
	c.queue.Cancel(connID)
	p := c.identify(connID, models.Profile{})
	if p.CurrentRoomID != nil {
		if err := c.rooms.Leave(*p.CurrentRoomID, connID); err != nil && !errors.Is(err, common.ErrRoomNotFound) {
			return err
		}
	}
	_, err := c.rooms.Create(connID, p.Profile(), models.RoomOptions{
		Name:             m.Name,
		IsPrivate:        m.IsPrivate,
		ChallengeID:      m.ChallengeID,
		TimeLimitSeconds: m.TimeLimit,
		MaxPlayers:       m.MaxPlayers,
	})
	return err
}

func (c *Coordinator) joinRoom(connID uuid.UUID, m *protocol.JoinRoom) error {
	p := c.identify(connID, models.Profile{Username: m.Username, UserID: m.UserID, Rating: m.Rating})

	req := room.JoinRequest{Code: m.Code, ConnID: connID, Profile: p.Profile(), InviteToken: m.InviteToken}
	if m.RoomID != "" {
		id, err := uuid.Parse(m.RoomID)
		if err != nil {
			return common.ErrRoomNotFound
		}
		req.RoomID = id
	}
	if p.CurrentRoomID != nil && *p.CurrentRoomID != req.RoomID {
		if req.RoomID != uuid.Nil || !c.codeMatches(*p.CurrentRoomID, m.Code) {
			return common.ErrAlreadyInRoom
		}
	}

	c.queue.Cancel(connID)
	_, err := c.rooms.Join(req)
	return err
}

func (c *Coordinator) codeMatches(roomID uuid.UUID, code string) bool {
	r, ok := c.rooms.GetByCode(code)
	return ok && r.ID == roomID
}

func (c *Coordinator) submit(ctx context.Context, connID uuid.UUID, m *protocol.SubmitSolution) error {
	roomID, err := c.roomFor(connID, m.RoomID)
	if err != nil {
		return err
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.rooms.Submit(ctx, roomID, connID, m.Code); err != nil {
			c.fail(connID, m.MessageType(), err)
		}
	}()
	return nil
}

func (c *Coordinator) findQuickMatch(connID uuid.UUID, m *protocol.FindQuickMatch) error {
	p := c.identify(connID, models.Profile{Username: m.Username, UserID: m.UserID, Rating: m.Rating})
	if p.CurrentRoomID != nil {
		return common.ErrAlreadyInRoom
	}
	pos, err := c.queue.Enqueue(connID, p.Profile())
	if err != nil {
		return err
	}
	c.gateway.SendTo(connID, protocol.MatchmakingQueued(pos))

	for {
		pairing, err := c.queue.TryPair()
		if errors.Is(err, common.ErrSeatUnavailable) {
			c.log.Debugf("matchmaking: %v", err)
			continue
		}
		if err != nil {
			c.log.Warnf("matchmaking: %v", err)
			return nil
		}
		if pairing == nil {
			return nil
		}
	}
}

func (c *Coordinator) createInvite(connID uuid.UUID, m *protocol.CreateInvite) error {
	if c.invites == nil {
		return common.Errorf(common.ErrInvalidInvite, "invites are disabled")
	}
	roomID, err := c.roomFor(connID, m.RoomID)
	if err != nil {
		return err
	}
	if err := c.rooms.AuthorizeInvite(roomID, connID); err != nil {
		return err
	}
	token, err := c.invites.Create(roomID, m.GuestUserID)
	if err != nil {
		return err
	}
	c.gateway.SendTo(connID, protocol.InviteCreated(roomID, m.GuestUserID, token))
	return nil
}

// roomFor resolves the room a message targets: the explicit id, or the
// sender's current room.
func (c *Coordinator) roomFor(connID uuid.UUID, raw string) (uuid.UUID, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, common.ErrRoomNotFound
		}
		return id, nil
	}
	p, err := c.registry.Get(connID)
	if err != nil {
		return uuid.Nil, err
	}
	if p.CurrentRoomID == nil {
		return uuid.Nil, common.ErrNotInRoom
	}
	return *p.CurrentRoomID, nil
}
