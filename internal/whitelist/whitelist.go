// Package whitelist is the read-through pubkey whitelist cache (§4.5): a
// 300-second TTL in front of the user table, optionally backed by Redis
// (github.com/redis/go-redis/v9, the same client vcavallo-nostr-hypermedia
// uses for its cache tier) with an in-process map as the fallback when no
// Redis URL is configured or Redis is unreachable.
package whitelist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nostrelay/relay/internal/chk"
	"github.com/nostrelay/relay/internal/store"
)

const ttl = 300 * time.Second

// Source is the authoritative backing lookup, satisfied by *store.Store.
type Source interface {
	GetUser(ctx context.Context, pubkey string) (*store.User, error)
}

// Cache answers "is pubkey allowed to publish" with a TTL'd read-through
// layer over Source, invalidated explicitly on admin RPC writes and on
// NIP-62 vanish requests (§4.5, §4.7).
type Cache struct {
	source Source
	redis  *redis.Client

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	status    store.WhitelistStatus
	isAdmin   bool
	expiresAt time.Time
}

type cachedValue struct {
	Status  store.WhitelistStatus `json:"status"`
	IsAdmin bool                  `json:"is_admin"`
}

// New builds a Cache over source. If redisURL is non-empty it is used as
// the shared cache tier across relay processes; an empty URL (or a failed
// connection) falls back to the in-process map only.
func New(source Source, redisURL string) *Cache {
	c := &Cache{source: source, entries: make(map[string]entry)}
	if redisURL == "" {
		return c
	}
	opts, err := redis.ParseURL(redisURL)
	if chk.E(err) {
		return c
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); chk.E(err) {
		return c
	}
	c.redis = client
	return c
}

// Allowed reports whether pubkey currently holds ACTIVE whitelist status.
// A lookup error degrades to "not allowed" rather than panicking the
// caller's ingestion path.
func (c *Cache) Allowed(ctx context.Context, pubkey string) (bool, error) {
	e, ok, err := c.lookup(ctx, pubkey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return e.status == store.StatusActive, nil
}

// IsAdmin reports whether pubkey is flagged as an administrator, used by
// the admin RPC's authorization gate (§4.7).
func (c *Cache) IsAdmin(ctx context.Context, pubkey string) (bool, error) {
	e, ok, err := c.lookup(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return ok && e.isAdmin, nil
}

// Authorized reports whether pubkey may publish: either flag, is_admin or
// is_active, is enough (§4.2 step 3 — "if neither is true … blocked").
func (c *Cache) Authorized(ctx context.Context, pubkey string) (bool, error) {
	e, ok, err := c.lookup(ctx, pubkey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return e.isAdmin || e.status == store.StatusActive, nil
}

func (c *Cache) lookup(ctx context.Context, pubkey string) (entry, bool, error) {
	if e, ok := c.getLocal(pubkey); ok {
		return e, true, nil
	}
	if e, ok := c.getRedis(ctx, pubkey); ok {
		c.setLocal(pubkey, e)
		return e, true, nil
	}
	u, err := c.source.GetUser(ctx, pubkey)
	if err == store.ErrUserNotFound {
		// An absent row is cached too, as (not admin, not active).
		e := entry{expiresAt: time.Now().Add(ttl)}
		c.setLocal(pubkey, e)
		c.setRedis(ctx, pubkey, e)
		return e, true, nil
	}
	if err != nil {
		return entry{}, false, err
	}
	e := entry{status: u.WhitelistStatus, isAdmin: u.IsAdmin, expiresAt: time.Now().Add(ttl)}
	c.setLocal(pubkey, e)
	c.setRedis(ctx, pubkey, e)
	return e, true, nil
}

func (c *Cache) getLocal(pubkey string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pubkey]
	if !ok || time.Now().After(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

func (c *Cache) setLocal(pubkey string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pubkey] = e
}

func (c *Cache) getRedis(ctx context.Context, pubkey string) (entry, bool) {
	if c.redis == nil {
		return entry{}, false
	}
	data, err := c.redis.Get(ctx, redisKey(pubkey)).Bytes()
	if err == redis.Nil {
		return entry{}, false
	}
	if chk.W(err) {
		return entry{}, false
	}
	var v cachedValue
	if err := json.Unmarshal(data, &v); chk.W(err) {
		return entry{}, false
	}
	return entry{status: v.Status, isAdmin: v.IsAdmin, expiresAt: time.Now().Add(ttl)}, true
}

func (c *Cache) setRedis(ctx context.Context, pubkey string, e entry) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(cachedValue{Status: e.status, IsAdmin: e.isAdmin})
	if chk.W(err) {
		return
	}
	chk.W(c.redis.Set(ctx, redisKey(pubkey), data, ttl).Err())
}

// Invalidate drops any cached entry for pubkey, local and Redis, forcing
// the next lookup to read through to Source. Called by the admin RPC's
// allow_user/ban_user methods and by the NIP-62 vanish side effect — both
// cases spec.md flags as probable bugs in the reference relay when the
// cache is left stale (§9).
func (c *Cache) Invalidate(ctx context.Context, pubkey string) {
	c.mu.Lock()
	delete(c.entries, pubkey)
	c.mu.Unlock()
	if c.redis != nil {
		chk.W(c.redis.Del(ctx, redisKey(pubkey)).Err())
	}
}

func redisKey(pubkey string) string { return "relay:whitelist:" + pubkey }
