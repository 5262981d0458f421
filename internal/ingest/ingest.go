// Package ingest is the event ingestion pipeline (§4.2): verify signature,
// check expiration, authorize against the whitelist, replace any prior
// addressable/replaceable event, persist, run post-persist side effects,
// then hand back an OK/rejection reason for the caller to ack with —
// mirroring the reference relay's Ok handler table
// (kwsantiago-orly's pkg/protocol/socketapi/ok.go), reduced to the reason
// codes this pipeline actually produces.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nostrelay/relay/internal/broadcast"
	"github.com/nostrelay/relay/internal/nostr"
	"github.com/nostrelay/relay/internal/nostrcrypto"
	"github.com/nostrelay/relay/internal/whitelist"
)

// Reason names why an event was rejected, or Accepted on success.
type Reason string

const (
	Accepted         Reason = ""
	ReasonInvalid    Reason = "invalid"
	ReasonBlocked    Reason = "blocked"
	ReasonRestricted Reason = "restricted"
	ReasonError      Reason = "error"
)

// Result is the outcome of one Ingest call, enough to build the OK
// envelope the caller acks with.
type Result struct {
	Accepted bool
	Reason   Reason
	Message  string
}

// Store is the subset of the Event Store Gateway the pipeline needs.
type Store interface {
	InsertEvent(ctx context.Context, ev *nostr.Event, expiresAtUnix *int64) (bool, error)
	DeleteAddressable(ctx context.Context, pubkey string, kind int, dTag string) error
	DeleteReplaceable(ctx context.Context, pubkey string, kind int) error
	DeleteEventByID(ctx context.Context, id string) error
	DeleteByPubkey(ctx context.Context, pubkey string) error
	GetEventByID(ctx context.Context, id string) (*nostr.Event, error)
	SetVanished(ctx context.Context, pubkey string) error
}

// Whitelist is the subset of the whitelist cache the pipeline needs.
type Whitelist interface {
	Authorized(ctx context.Context, pubkey string) (bool, error)
	Invalidate(ctx context.Context, pubkey string)
}

const kindDeletion = 5
const kindVanish = 62

// Pipeline wires together the store, whitelist cache, signature verifier
// and broadcast hub into the full ingestion path.
type Pipeline struct {
	Store     Store
	Whitelist Whitelist
	Verifier  *nostrcrypto.Verifier
	Hub       *broadcast.Hub
}

// New builds a Pipeline from its collaborators.
func New(s Store, wl Whitelist, v *nostrcrypto.Verifier, hub *broadcast.Hub) *Pipeline {
	return &Pipeline{Store: s, Whitelist: wl, Verifier: v, Hub: hub}
}

// Ingest runs ev through the full pipeline (§4.2): id/signature
// verification, expiration, authorization, replacement, persistence,
// post-persist side effects, and broadcast on success.
func (p *Pipeline) Ingest(ctx context.Context, ev *nostr.Event) Result {
	ok, err := ev.IDMatches()
	if err != nil || !ok {
		return Result{Reason: ReasonInvalid, Message: "invalid: id does not match canonical serialization"}
	}
	valid, err := p.Verifier.Verify(ev.Pubkey, ev.ID, ev.Sig)
	if err != nil || !valid {
		return Result{Reason: ReasonInvalid, Message: "Invalid signature: verification failed"}
	}

	now := time.Now().Unix()
	for _, t := range ev.Tags.GetAll("expiration") {
		var at int64
		if _, err := fmt.Sscanf(t.Value(), "%d", &at); err == nil && at < now {
			return Result{Reason: ReasonError, Message: "error: event expired"}
		}
	}

	allowed, err := p.Whitelist.Authorized(ctx, ev.Pubkey)
	if err != nil {
		return Result{Reason: ReasonError, Message: "error: whitelist lookup failed"}
	}
	if !allowed {
		return Result{Reason: ReasonBlocked, Message: "blocked: user not whitelisted"}
	}

	if err := p.replacePrior(ctx, ev); err != nil {
		return Result{Reason: ReasonError, Message: "error: replacement check failed"}
	}

	var expiresAtUnix *int64
	if at, has := ev.Expiration(); has {
		expiresAtUnix = &at
	}
	inserted, err := p.Store.InsertEvent(ctx, ev, expiresAtUnix)
	if err != nil {
		return Result{Reason: ReasonError, Message: "error: internal error"}
	}
	if !inserted {
		return Result{Accepted: true, Message: "duplicate: already have this event"}
	}

	if err := p.postPersist(ctx, ev); err != nil {
		return Result{Reason: ReasonError, Message: "error: post-persist side effect failed"}
	}

	p.Hub.Publish(ev)
	return Result{Accepted: true}
}

// replacePrior deletes any existing event occupying ev's addressable or
// replaceable identity before the new row is inserted (§3, §4.2 step 4) —
// the reference relay's acknowledged gap this pipeline closes.
func (p *Pipeline) replacePrior(ctx context.Context, ev *nostr.Event) error {
	switch {
	case ev.Addressable():
		return p.Store.DeleteAddressable(ctx, ev.Pubkey, ev.Kind, ev.DTag())
	case ev.Replaceable():
		return p.Store.DeleteReplaceable(ctx, ev.Pubkey, ev.Kind)
	default:
		return nil
	}
}

// postPersist runs the side effects that only apply after a successful
// insert: kind-5 deletion requests and kind-62 vanish requests (§4.2
// step 6).
func (p *Pipeline) postPersist(ctx context.Context, ev *nostr.Event) error {
	switch ev.Kind {
	case kindDeletion:
		return p.handleDeletion(ctx, ev)
	case kindVanish:
		return p.handleVanish(ctx, ev)
	default:
		return nil
	}
}

// handleDeletion removes every event referenced by an 'e' tag that the
// deletion request's author also authored, per NIP-09: ownership is
// re-checked against the stored event rather than trusted from the tag.
func (p *Pipeline) handleDeletion(ctx context.Context, ev *nostr.Event) error {
	for _, tag := range ev.Tags.GetAll("e") {
		id := tag.Value()
		if id == "" {
			continue
		}
		target, err := p.Store.GetEventByID(ctx, id)
		if err != nil {
			return err
		}
		if target == nil || target.Pubkey != ev.Pubkey {
			continue
		}
		if err := p.Store.DeleteEventByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// handleVanish removes every event authored by ev's pubkey and
// invalidates its whitelist cache entry so a later lookup re-reads the
// VANISHED status instead of a stale cached ACTIVE one — resolving the
// stale-cache gap spec §9 flags in the reference relay's admin path.
func (p *Pipeline) handleVanish(ctx context.Context, ev *nostr.Event) error {
	if err := p.Store.DeleteByPubkey(ctx, ev.Pubkey); err != nil {
		return err
	}
	if err := p.Store.SetVanished(ctx, ev.Pubkey); err != nil {
		return err
	}
	p.Whitelist.Invalidate(ctx, ev.Pubkey)
	return nil
}
