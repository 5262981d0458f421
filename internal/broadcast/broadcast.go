// Package broadcast is the process-wide event fan-out hub (§4.4): every
// newly persisted event, and the monitor task's self-advertisement event,
// is offered to every live subscriber channel.
// Delivery is best-effort — a slow subscriber drops events rather than
// stalling ingestion, the same trade the reference relay's in-process
// publisher (kwsantiago-orly's pkg/protocol/socketapi/publisher.go) makes
// with its per-listener channel.
package broadcast

import (
	"sync"

	"github.com/nostrelay/relay/internal/nostr"
)

const subscriberBuffer = 1000

// Hub fans out persisted events to every registered subscriber channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan *nostr.Event]struct{}
}

// New builds an empty Hub.
func New() *Hub {
	return &Hub{subscribers: make(map[chan *nostr.Event]struct{})}
}

// Register returns a new buffered channel that receives every event
// subsequently published to the hub until Unregister is called with it.
func (h *Hub) Register() chan *nostr.Event {
	ch := make(chan *nostr.Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unregister stops delivery to ch and closes it.
func (h *Hub) Unregister(ch chan *nostr.Event) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish offers ev to every registered subscriber. A subscriber whose
// buffer is full does not receive ev — there is no durable delivery
// across a slow or disconnected consumer (spec Non-goal: durable delivery
// across reconnects).
func (h *Hub) Publish(ev *nostr.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
