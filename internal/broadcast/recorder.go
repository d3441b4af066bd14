package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/protocol"
)

// Recorder is a Sink that keeps every event it receives. It stands in for a
// websocket in tests and in tooling that inspects traffic.
type Recorder struct {
	id     uuid.UUID
	mu     sync.Mutex
	events []protocol.Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{id: uuid.New(), notify: make(chan struct{}, 1)}
}

func (r *Recorder) ID() uuid.UUID { return r.id }

func (r *Recorder) Write(ev protocol.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type, oldest first.
func (r *Recorder) OfType(typ string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the newest event of the given type.
func (r *Recorder) Last(typ string) (protocol.Event, bool) {
	evs := r.OfType(typ)
	if len(evs) == 0 {
		return protocol.Event{}, false
	}
	return evs[len(evs)-1], true
}

// WaitFor blocks until an event of typ has been recorded or timeout elapses.
func (r *Recorder) WaitFor(typ string, timeout time.Duration) (protocol.Event, bool) {
	deadline := time.After(timeout)
	for {
		if ev, ok := r.Last(typ); ok {
			return ev, true
		}
		select {
		case <-r.notify:
		case <-deadline:
			return r.Last(typ)
		}
	}
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
