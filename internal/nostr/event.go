// Package nostr implements the wire-level event and filter types shared by
// every component of the relay: canonical serialization, id hashing, and
// filter matching. Signature verification itself is delegated to
// internal/nostrcrypto, per the narrow signer interface this package
// expects callers to supply.
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Tag is an ordered sequence of strings; by convention the first element is
// the tag's name ("d", "e", "p", "expiration", "challenge", ...).
type Tag []string

// Name returns the tag's first element, or "" if the tag is empty.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag's second element, or "" if it has fewer than two.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is an ordered sequence of Tag.
type Tags []Tag

// GetFirst returns the first tag with the given name, or nil.
func (t Tags) GetFirst(name string) Tag {
	for _, tag := range t {
		if tag.Name() == name {
			return tag
		}
	}
	return nil
}

// GetAll returns every tag with the given name, in order.
func (t Tags) GetAll(name string) Tags {
	var out Tags
	for _, tag := range t {
		if tag.Name() == name {
			out = append(out, tag)
		}
	}
	return out
}

// Event is an immutable, signed Nostr event as defined by NIP-01.
type Event struct {
	ID        string `json:"id"`
	Pubkey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// canonicalArray renders the array whose SHA-256 hash is the event id:
// [0, pubkey, created_at, kind, tags, content]. encoding/json already
// produces compact (no insignificant whitespace) output for a []any slice
// containing only these field types.
func (e *Event) canonicalArray() []any {
	tags := make([][]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = []string(t)
	}
	return []any{0, e.Pubkey, e.CreatedAt, e.Kind, tags, e.Content}
}

// Serialize returns the canonical UTF-8 bytes this event's id is hashed
// from.
func (e *Event) Serialize() ([]byte, error) {
	return json.Marshal(e.canonicalArray())
}

// ComputeID returns the lowercase hex SHA-256 digest of the event's
// canonical serialization.
func (e *Event) ComputeID() (string, error) {
	b, err := e.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// IDMatches reports whether e.ID equals the hash of e's canonical
// serialization.
func (e *Event) IDMatches() (bool, error) {
	want, err := e.ComputeID()
	if err != nil {
		return false, err
	}
	return want == e.ID, nil
}

// Addressable reports whether the event's kind falls in the parameterized
// replaceable range [30000, 40000).
func (e *Event) Addressable() bool { return e.Kind >= 30000 && e.Kind < 40000 }

// Replaceable reports whether the event's kind is replaceable without a
// d-tag dimension: 0, 3, or in [10000, 20000).
func (e *Event) Replaceable() bool {
	return e.Kind == 0 || e.Kind == 3 || (e.Kind >= 10000 && e.Kind < 20000)
}

// DTag returns the value of the first "d" tag, or "" if absent — the
// discriminator for addressable-event identity.
func (e *Event) DTag() string {
	d := e.Tags.GetFirst("d")
	return d.Value()
}

// Expiration returns the latest valid "expiration" tag value as unix
// seconds, and whether one was found and parsed.
func (e *Event) Expiration() (at int64, ok bool) {
	for _, t := range e.Tags.GetAll("expiration") {
		var v int64
		if _, err := fmt.Sscanf(t.Value(), "%d", &v); err != nil {
			continue
		}
		if !ok || v > at {
			at, ok = v, true
		}
	}
	return
}
