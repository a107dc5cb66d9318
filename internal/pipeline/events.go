package pipeline

import (
	"sync"
	"time"

	"github.com/ziadkadry99/docvault/internal/documents"
)

// Event is a single stage transition.
type Event struct {
	DocumentID string                `json:"document_id"`
	Stage      documents.Stage       `json:"stage"`
	Status     documents.StageStatus `json:"status"`
	Message    string                `json:"message,omitempty"`
	Time       time.Time             `json:"time"`
}

const subscriberBuffer = 64

// Hub fans events out to subscribers. Slow subscribers miss events rather
// than blocking the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of future events and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
