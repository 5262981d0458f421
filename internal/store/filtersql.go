package store

import (
	"fmt"
	"strings"

	"github.com/nostrelay/relay/internal/nostr"
)

// lowered is a parameterized WHERE predicate plus the re-check limit for
// one filter, per the Filter→Query Lowerer (§4.3): kinds, ids/authors
// (equality or prefix), since/until, and the expiry guard are all lowered
// to SQL; indexed tag selectors are deliberately left for the in-memory
// re-check (spec §9 design note — promoting them to JSONB containment
// queries is future work, not required for correctness since every row
// returned is re-checked against the full filter before being forwarded).
type lowered struct {
	where string
	args  []any
	limit int
}

// lowerFilter translates f into a parameterized SQL predicate, starting
// parameter numbering at $1. Every value is bound as a parameter — never
// string-interpolated — closing the injection gap spec §9 flags in the
// reference implementation's prefix-search path.
func lowerFilter(f *nostr.Filter) lowered {
	var clauses []string
	var args []any
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.IDs) > 0 {
		clauses = append(clauses, idOrAuthorClause("event_id", f.IDs, param))
	}
	if len(f.Authors) > 0 {
		clauses = append(clauses, idOrAuthorClause("pubkey", f.Authors, param))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]int32, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = int32(k)
		}
		clauses = append(clauses, fmt.Sprintf("kind = ANY(%s)", param(kinds)))
	}
	if f.Since != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= %s", param(*f.Since)))
	}
	if f.Until != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= %s", param(*f.Until)))
	}
	clauses = append(clauses, "(expires_at IS NULL OR expires_at > now())")

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}
	return lowered{where: where, args: args, limit: f.EffectiveLimit()}
}

// idOrAuthorClause builds `col = ANY($n)` for full-length (64-hex) values
// batched together, OR'd with one `col LIKE $n` per prefix value.
func idOrAuthorClause(col string, values []string, param func(any) string) string {
	var full []string
	var prefixClauses []string
	for _, v := range values {
		if len(v) == 64 {
			full = append(full, v)
			continue
		}
		prefixClauses = append(prefixClauses, fmt.Sprintf("%s LIKE %s", col, param(v+"%")))
	}
	var parts []string
	if len(full) > 0 {
		parts = append(parts, fmt.Sprintf("%s = ANY(%s)", col, param(full)))
	}
	parts = append(parts, prefixClauses...)
	if len(parts) == 0 {
		return "TRUE"
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
