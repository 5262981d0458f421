package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nostrelay/relay/internal/nostr"
)

// InsertEvent persists ev with ON CONFLICT(event_id) DO NOTHING semantics
// (§4.2 step 5). expiresAtUnix, if non-nil, is the latest valid
// "expiration" tag value found during ingestion. inserted reports whether
// a new row was actually written (false on a duplicate id).
func (s *Store) InsertEvent(ctx context.Context, ev *nostr.Event, expiresAtUnix *int64) (inserted bool, err error) {
	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	var expiresAtParam any
	if expiresAtUnix != nil {
		expiresAtParam = *expiresAtUnix
	}
	tag, err := s.pool.Exec(
		ctx,
		`INSERT INTO events (event_id, pubkey, kind, content, tags, sig, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7,
		         CASE WHEN $8::bigint IS NULL THEN NULL ELSE to_timestamp($8::bigint) END)
		 ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.Pubkey, ev.Kind, ev.Content, tagsJSON, ev.Sig, ev.CreatedAt, expiresAtParam,
	)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEvent(row pgx.Rows) (*nostr.Event, error) {
	var ev nostr.Event
	var tagsJSON []byte
	if err := row.Scan(&ev.ID, &ev.Pubkey, &ev.Kind, &ev.Content, &tagsJSON, &ev.Sig, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tagsJSON, &ev.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &ev, nil
}

// QueryEvents runs the lowered SQL predicate for f and reconstructs each
// matching row as an Event, newest first, capped at f's effective limit
// (§4.3). Callers must still re-check the full filter set in memory
// before forwarding results, since tag selectors are not lowered here.
func (s *Store) QueryEvents(ctx context.Context, f *nostr.Filter) ([]*nostr.Event, error) {
	lo := lowerFilter(f)
	if lo.limit == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT event_id, pubkey, kind, content, tags, sig, created_at
		 FROM events WHERE %s ORDER BY created_at DESC LIMIT %d`,
		lo.where, lo.limit,
	)
	rows, err := s.pool.Query(ctx, query, lo.args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []*nostr.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// QueryEventIDs returns just the event ids matching f's lowered predicate,
// at most cap of them, used by the reconciliation session builder (§4.6)
// so it never has to load the full event body. The filter's own
// historical-read limit does not apply here; only cap bounds the result.
func (s *Store) QueryEventIDs(ctx context.Context, f *nostr.Filter, cap int) ([]string, error) {
	lo := lowerFilter(f)
	if cap <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT event_id FROM events WHERE %s ORDER BY created_at DESC LIMIT %d`,
		lo.where, cap,
	)
	rows, err := s.pool.Query(ctx, query, lo.args...)
	if err != nil {
		return nil, fmt.Errorf("query event ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetEventByID fetches a single event by its hex id, or nil if absent.
func (s *Store) GetEventByID(ctx context.Context, id string) (*nostr.Event, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT event_id, pubkey, kind, content, tags, sig, created_at FROM events WHERE event_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEvent(rows)
}

// DeleteEventByID removes one event by id, unconditionally — callers are
// responsible for any ownership checks before calling this (§4.2 step 6).
func (s *Store) DeleteEventByID(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE event_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// DeleteAddressable removes every event with the given (pubkey, kind,
// d-tag) identity, ahead of inserting the replacement (§4.2 step 4).
// Matching on the d-tag requires a JSONB containment check because tags
// are stored as an array-of-arrays rather than a dedicated column. The
// empty-d-tag identity also has to match events that carry no "d" tag at
// all (its d-tag value is empty by definition, §3), not only events that
// carry a literal ["d", ""] pair.
func (s *Store) DeleteAddressable(ctx context.Context, pubkey string, kind int, dTag string) error {
	if dTag == "" {
		_, err := s.pool.Exec(
			ctx,
			`DELETE FROM events WHERE pubkey = $1 AND kind = $2 AND (
			     tags @> $3::jsonb
			     OR NOT EXISTS (
			         SELECT 1 FROM jsonb_array_elements(tags) elem WHERE elem->>0 = 'd'
			     )
			 )`,
			pubkey, kind, dTagContainment(dTag),
		)
		if err != nil {
			return fmt.Errorf("delete addressable: %w", err)
		}
		return nil
	}
	_, err := s.pool.Exec(
		ctx,
		`DELETE FROM events WHERE pubkey = $1 AND kind = $2 AND tags @> $3::jsonb`,
		pubkey, kind, dTagContainment(dTag),
	)
	if err != nil {
		return fmt.Errorf("delete addressable: %w", err)
	}
	return nil
}

// dTagContainment renders the JSONB containment fragment [["d", value]]
// used to find events carrying a given d-tag value.
func dTagContainment(value string) []byte {
	b, _ := json.Marshal([][]string{{"d", value}})
	return b
}

// DeleteReplaceable removes every event with the given (pubkey, kind)
// identity for kinds that replace without a d-tag dimension (§3, §4.2
// step 4).
func (s *Store) DeleteReplaceable(ctx context.Context, pubkey string, kind int) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE pubkey = $1 AND kind = $2`, pubkey, kind)
	if err != nil {
		return fmt.Errorf("delete replaceable: %w", err)
	}
	return nil
}

// DeleteByPubkey removes every event authored by pubkey, used by the
// kind-62 vanish side effect (§4.2 step 6).
func (s *Store) DeleteByPubkey(ctx context.Context, pubkey string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE pubkey = $1`, pubkey)
	if err != nil {
		return fmt.Errorf("delete by pubkey: %w", err)
	}
	return nil
}
