// Package broadcast fans outbound events out to live connections.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Sink is anything that accepts events for one connection. Write must not block.
type Sink interface {
	ID() uuid.UUID
	Write(ev protocol.Event)
}

// Conn is a websocket-backed sink. The write pump drains OutChan.
type Conn struct {
	id      uuid.UUID
	OutChan chan protocol.Event
	Cancel  func()
	log     *logrus.Entry

	overflow sync.Once
}

// NewConn creates a sink with a buffered outbound channel.
func NewConn(id uuid.UUID, buffer int, cancel func(), logger *logrus.Logger) *Conn {
	return &Conn{
		id:      id,
		OutChan: make(chan protocol.Event, buffer),
		Cancel:  cancel,
		log:     logger.WithField("conn", id),
	}
}

func (c *Conn) ID() uuid.UUID { return c.id }

// Write pushes an event onto OutChan without blocking. A connection that
// cannot keep up is cancelled once, which sends it through the disconnect path.
func (c *Conn) Write(ev protocol.Event) {
	select {
	case c.OutChan <- ev:
	default:
		c.overflow.Do(func() {
			c.log.Warnf("outbound buffer full at %q, closing slow connection", ev.Type)
			if c.Cancel != nil {
				c.Cancel()
			}
		})
	}
}

// Gateway maps connection ids to sinks.
type Gateway struct {
	mu    sync.Mutex
	sinks map[uuid.UUID]Sink
	log   *logrus.Logger
}

func NewGateway(logger *logrus.Logger) *Gateway {
	return &Gateway{
		sinks: make(map[uuid.UUID]Sink),
		log:   logger,
	}
}

// Attach registers a sink, replacing any previous sink with the same id.
func (g *Gateway) Attach(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks[s.ID()] = s
}

// Detach forgets a connection. Later sends to it are dropped silently.
func (g *Gateway) Detach(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sinks, id)
}

// SendTo delivers ev to one connection. It reports whether the connection was attached.
func (g *Gateway) SendTo(id uuid.UUID, ev protocol.Event) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sinks[id]
	if !ok {
		g.log.WithField("conn", id).Debugf("gateway: no sink for %q", ev.Type)
		return false
	}
	s.Write(ev)
	return true
}

// SendToMany delivers ev to each listed connection in order. Used for room-scoped
// events, where the caller holds the room lock so per-room ordering is kept.
func (g *Gateway) SendToMany(ids []uuid.UUID, ev protocol.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if s, ok := g.sinks[id]; ok {
			s.Write(ev)
		}
	}
}

// BroadcastAll delivers ev to every attached connection.
func (g *Gateway) BroadcastAll(ev protocol.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sinks {
		s.Write(ev)
	}
}

// Count returns the number of attached connections.
func (g *Gateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sinks)
}
