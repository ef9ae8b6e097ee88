// Package notify fans enrichment events out to in-process subscribers and an
// optional webhook, and owns the debounced metrics broadcast.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType labels an event for subscribers.
type EventType string

const (
	EventTrackEnriched      EventType = "track_enriched"
	EventBatchComplete      EventType = "batch_complete"
	EventEnrichmentProgress EventType = "enrichment_progress"
	EventMetricUpdate       EventType = "metric_update"
)

// Event is one broadcast notification.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent builds an event with a fresh identifier.
func NewEvent(eventType EventType, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

const subscriberBuffer = 16

// Hub is the in-process subscriber registry. Publishing is best effort: a
// subscriber that stops draining its channel loses events rather than
// blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]chan Event
	nextID int64
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]chan Event)}
}

// Subscribe registers a subscriber channel. The returned cancel function
// removes the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
