// Package reconcile implements the NIP-77-style set-reconciliation
// sessions (§4.6): NEG-OPEN opens a session bound to one filter, NEG-MSG
// exchanges id sets until both sides converge, NEG-CLOSE tears it down.
// No negentropy implementation exists anywhere in the reference corpus,
// so the wire shape here is hand-rolled from the protocol description
// rather than grounded in a third-party library — see DESIGN.md. The
// session's id set is loaded through the same Filter→Query Lowerer the
// subscription path uses (internal/store), resolving the "fetch all ids
// and filter in memory" shortcut the reference implementation takes.
package reconcile

import (
	"context"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/nostrelay/relay/internal/nostr"
)

// MaxItems bounds how many ids a single session will ever hold (§5).
const MaxItems = 100_000

var (
	// ErrTooManyItems is returned when a filter's matching set would
	// exceed MaxItems.
	ErrTooManyItems = errors.New("reconcile: filter matches more than the reconciliation item cap")
	// ErrUnknownSession is returned for a NEG-MSG against an id with no
	// open session.
	ErrUnknownSession = errors.New("reconcile: no open session for this id")
	// ErrMalformedIDs is returned when a NEG-MSG payload does not decode
	// to a whole number of 32-byte ids.
	ErrMalformedIDs = errors.New("reconcile: malformed id set payload")
)

// IDLoader loads the bounded set of event ids matching a filter, the same
// interface the subscription path's historical backfill uses.
type IDLoader interface {
	QueryEventIDs(ctx context.Context, f *nostr.Filter, cap int) ([]string, error)
}

// Session is one open reconciliation exchange, scoped to a single
// connection the way a connection's subscription.Registry is.
type Session struct {
	filter *nostr.Filter
	ours   map[[32]byte]struct{}
}

// Manager holds every open session for one connection, keyed by the
// client-supplied session id.
type Manager struct {
	loader   IDLoader
	sessions map[string]*Session
}

// New builds an empty Manager over loader.
func New(loader IDLoader) *Manager {
	return &Manager{loader: loader, sessions: make(map[string]*Session)}
}

// Open starts a session for sessionID over filter, loading our side of
// the id set up front and returning it hex-encoded and concatenated, the
// initial NEG-MSG payload to diff against the client's own set.
func (m *Manager) Open(ctx context.Context, sessionID string, filter *nostr.Filter) (initialMsg string, err error) {
	ids, err := m.loader.QueryEventIDs(ctx, filter, MaxItems+1)
	if err != nil {
		return "", err
	}
	if len(ids) > MaxItems {
		return "", ErrTooManyItems
	}
	ours := make(map[[32]byte]struct{}, len(ids))
	for _, id := range ids {
		b, err := decodeID(id)
		if err != nil {
			continue
		}
		ours[b] = struct{}{}
	}
	m.sessions[sessionID] = &Session{filter: filter, ours: ours}
	return encodeIDSet(ours), nil
}

// Diff is the outcome of one NEG-MSG round: ids the requester is missing
// (Have, present on our side) and ids we are missing (Need, present only
// in the client's payload).
type Diff struct {
	Have []string
	Need []string
}

// Message processes one incoming NEG-MSG payload (a concatenation of
// 32-byte ids) for sessionID and returns the reconciliation diff.
func (m *Manager) Message(sessionID string, payload []byte) (Diff, error) {
	sess, ok := m.sessions[sessionID]
	if !ok {
		return Diff{}, ErrUnknownSession
	}
	theirs, err := parseIDSet(payload)
	if err != nil {
		return Diff{}, err
	}
	var d Diff
	for id := range sess.ours {
		if _, present := theirs[id]; !present {
			d.Have = append(d.Have, hex.EncodeToString(id[:]))
		}
	}
	for id := range theirs {
		if _, present := sess.ours[id]; !present {
			d.Need = append(d.Need, hex.EncodeToString(id[:]))
		}
	}
	sort.Strings(d.Have)
	sort.Strings(d.Need)
	return d, nil
}

// Close ends sessionID, a no-op if it was never open.
func (m *Manager) Close(sessionID string) {
	delete(m.sessions, sessionID)
}

// CloseAll ends every session, used on connection teardown.
func (m *Manager) CloseAll() {
	m.sessions = make(map[string]*Session)
}

func decodeID(hexID string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(hexID)
	if err != nil || len(b) != 32 {
		return out, ErrMalformedIDs
	}
	copy(out[:], b)
	return out, nil
}

func parseIDSet(payload []byte) (map[[32]byte]struct{}, error) {
	if len(payload)%32 != 0 {
		return nil, ErrMalformedIDs
	}
	set := make(map[[32]byte]struct{}, len(payload)/32)
	for i := 0; i < len(payload); i += 32 {
		var id [32]byte
		copy(id[:], payload[i:i+32])
		set[id] = struct{}{}
	}
	return set, nil
}

func encodeIDSet(set map[[32]byte]struct{}) string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, hex.EncodeToString(id[:]))
	}
	sort.Strings(ids)
	var out []byte
	for _, id := range ids {
		out = append(out, id...)
	}
	return string(out)
}
