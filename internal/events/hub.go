package events

import (
	"log/slog"
	"sync"
)

// Hub fans notifications out to subscribers. Publishing never blocks the
// auction hotpath: a subscriber that stops draining its channel loses events
// rather than stalling state transitions.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}

	// onDrop is called when an event is dropped for a slow subscriber.
	onDrop func(Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// SetDropHandler installs a callback invoked on every dropped event.
func (h *Hub) SetDropHandler(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDrop = fn
}

// Subscribe returns a buffered channel receiving all future events and a
// cancel function that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber, dropping on full buffers.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			if h.onDrop != nil {
				h.onDrop(ev)
			}
			slog.Warn("event dropped for slow subscriber", slog.String("kind", ev.Kind()))
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
