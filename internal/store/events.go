// internal/store/events.go
package store

import (
	"sync"
	"time"
)

// EventKind names a session event
type EventKind string

const (
	EventLoggedIn        EventKind = "logged_in"
	EventLoggedOut       EventKind = "logged_out"
	EventSessionExpired  EventKind = "session_expired"
	EventProjectSelected EventKind = "project_selected"
)

// Event is published by the Store. Navigation layers subscribe to it
// instead of the Store driving navigation itself.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

const subscriberBuffer = 16

// Events fans store events out to subscribers
type Events struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEvents creates an empty bus
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered channel of events and a function that
// unsubscribes and closes it. The cancel function is safe to call twice.
func (e *Events) Subscribe() (<-chan Event, func()) {
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

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking; a subscriber
// whose buffer is full misses the event.
func (e *Events) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels; later subscriptions get a closed channel
func (e *Events) Close() {
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

// Subscribers returns the number of active subscriptions
func (e *Events) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}
