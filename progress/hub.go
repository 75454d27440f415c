package progress

import (
	"sync"

	"github.com/skillsenselab/interview-analyzer/logger"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events.
const subscriberBuffer = 64

// Subscription is one registered listener. Events arrive on Events();
// the channel is closed when the subscription is cancelled or the hub
// shuts down.
type Subscription struct {
	id        int
	sessionID string
	events    chan Event
	closed    bool
}

// Events returns the subscription's event channel.
func (s *Subscription) Events() <-chan Event { return s.events }

// Hub fans progress events out to subscribers. Subscribers attach to one
// session ID or to all sessions. Publishing never blocks: a full
// subscriber buffer drops the event for that subscriber only.
type Hub struct {
	log *logger.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
	done   bool
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:  log.WithComponent("progress"),
		subs: make(map[int]*Subscription),
	}
}

// Subscribe registers a listener for one session's events. An empty
// sessionID subscribes to every session.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:        h.nextID,
		sessionID: sessionID,
		events:    make(chan Event, subscriberBuffer),
	}
	if h.done {
		sub.closed = true
		close(sub.events)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
}

// Publish delivers the event to every matching subscriber without
// blocking. Slow subscribers lose the event.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return
	}
	for _, sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != event.SessionID {
			continue
		}
		select {
		case sub.events <- event:
		default:
			h.log.Warn("subscriber buffer full, dropping event", logger.Fields(
				logger.FieldSessionID, event.SessionID,
				"kind", string(event.Kind),
			))
		}
	}
}

// Shutdown closes every subscription. Publishing afterward is a no-op.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return
	}
	h.done = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		if !sub.closed {
			sub.closed = true
			close(sub.events)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var _ Publisher = (*Hub)(nil)
