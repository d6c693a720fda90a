package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("broadcast hub closed")

// Subscriber is one stream consumer with its own bounded send queue
type Subscriber struct {
	ID string

	ch      chan []byte
	sent    atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
}

// C returns the subscriber's message channel
func (s *Subscriber) C() <-chan []byte {
	return s.ch
}

// Stats returns sent and dropped counts for this subscriber
func (s *Subscriber) Stats() (sent, dropped uint64) {
	return s.sent.Load(), s.dropped.Load()
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// SubscriberStats is the per-subscriber view for the stats API
type SubscriberStats struct {
	ID      string  `json:"id"`
	Sent    uint64  `json:"sent"`
	Dropped uint64  `json:"dropped"`
	Queued  int     `json:"queued"`
	Drop    float64 `json:"drop_rate"` // percentage
}

// Hub fans wire records out to subscribers. Sends never block: a
// subscriber that cannot keep up loses records and the drop is counted
// against it alone.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
	bufSize     int

	totalPublished atomic.Uint64
}

// NewHub creates a hub with the given per-subscriber queue depth
func NewHub(bufSize int) *Hub {
	if bufSize < 1 {
		bufSize = 8
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		bufSize:     bufSize,
	}
}

// Subscribe registers a new consumer
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscriber{
		ID: uuid.NewString(),
		ch: make(chan []byte, h.bufSize),
	}
	h.subscribers[sub.ID] = sub
	return sub, nil
}

// Unsubscribe removes a consumer and closes its channel
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		sub.close()
		delete(h.subscribers, id)
	}
}

// Publish delivers one message to every subscriber without blocking
func (h *Hub) Publish(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	h.totalPublished.Add(1)

	for _, sub := range h.subscribers {
		select {
		case sub.ch <- msg:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// TotalPublished returns the number of records published so far
func (h *Hub) TotalPublished() uint64 {
	return h.totalPublished.Load()
}

// Stats returns per-subscriber delivery counters
func (h *Hub) Stats() []SubscriberStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]SubscriberStats, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		sent, dropped := sub.Stats()
		total := sent + dropped
		var rate float64
		if total > 0 {
			rate = float64(dropped) / float64(total) * 100
		}
		out = append(out, SubscriberStats{
			ID:      sub.ID,
			Sent:    sent,
			Dropped: dropped,
			Queued:  len(sub.ch),
			Drop:    rate,
		})
	}
	return out
}

// Close shuts down the hub and all subscriber channels
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, sub := range h.subscribers {
		sub.close()
	}
	h.subscribers = make(map[string]*Subscriber)
}
