// hub.go - Fan-out of new log lines to websocket subscribers

package logging

import (
	"sync"

	"go-home-dashboard/models"
)

const subscriberBuffer = 64

// Hub broadcasts new log lines to live subscribers (the terminal view).
// Slow subscribers miss lines rather than block writers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan models.Log]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan models.Log]struct{})}
}

// Subscribe returns a channel of new lines and a func that detaches it.
func (h *Hub) Subscribe() (<-chan models.Log, func()) {
	ch := make(chan models.Log, subscriberBuffer)
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

// Publish hands line to every subscriber that has room for it.
func (h *Hub) Publish(line models.Log) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribers reports how many clients are attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
