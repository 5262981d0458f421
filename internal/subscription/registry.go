// Package subscription is the per-connection subscription registry (§3,
// §4.3): each connection owns one Registry mapping subscription ids to
// filter sets, mirroring the reference relay's per-listener subscription
// map (kwsantiago-orly's pkg/protocol/socketapi/publisher.go, which keys
// a Map[*ws.Listener]map[string]*filters.T) but scoped to a single
// connection rather than shared across the whole hub — the connection's
// receive loop is the only goroutine that touches it, so no locking is
// needed here.
package subscription

import "github.com/nostrelay/relay/internal/nostr"

// Registry holds one connection's live subscriptions, keyed by
// client-supplied subscription id. Re-using an id replaces the prior
// filter set (§4.1).
type Registry struct {
	subs map[string]nostr.FilterSet
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{subs: make(map[string]nostr.FilterSet)}
}

// Open registers or replaces the filter set for subID.
func (r *Registry) Open(subID string, filters nostr.FilterSet) {
	r.subs[subID] = filters
}

// Close removes subID, a no-op if it was never open.
func (r *Registry) Close(subID string) {
	delete(r.subs, subID)
}

// CloseAll removes every subscription, used when the connection shuts
// down.
func (r *Registry) CloseAll() {
	r.subs = make(map[string]nostr.FilterSet)
}

// Match returns every subscription id whose filter set matches ev, for
// live broadcast delivery (§4.4).
func (r *Registry) Match(ev *nostr.Event) []string {
	var matched []string
	for id, fs := range r.subs {
		if ok, _ := fs.Matches(ev); ok {
			matched = append(matched, id)
		}
	}
	return matched
}

// Len reports how many subscriptions are currently open.
func (r *Registry) Len() int { return len(r.subs) }
