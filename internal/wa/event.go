package wa

import (
	"sync"
	"time"
)

// EventType identifies a session lifecycle notification
type EventType string

const (
	EventQR           EventType = "qr"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"
)

// Event is one session lifecycle notification delivered to subscribers.
type Event struct {
	Type         EventType `json:"type"`
	ConnectionID string    `json:"connection_id"`
	QR           string    `json:"qr,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// subscriberBuffer bounds how far a subscriber may lag before events are
// dropped for it. A slow SSE client must never block the session.
const subscriberBuffer = 32

// Emitter fans session events out to subscribers over channels. Closing the
// emitter closes every subscriber channel, which unblocks SSE bridges waiting
// on a torn-down session.
type Emitter struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newEmitter() *Emitter {
	return &Emitter{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel func removes the
// subscription; it is safe to call after the emitter is closed.
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextID
	e.nextID++
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// emit delivers an event to all subscribers without blocking. Events for a
// single session are emitted from serialized transitions, so per-subscriber
// ordering matches transition order.
func (e *Emitter) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber fell too far behind; drop rather than stall the session.
		}
	}
}

// close shuts down the emitter and all subscriber channels.
func (e *Emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
