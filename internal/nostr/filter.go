package nostr

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MaxLimit is the hard cap applied to every filter's historical-read limit,
// regardless of what the client requested.
const MaxLimit = 500

// DefaultLimit is used for historical reads when a filter specifies no
// limit at all.
const DefaultLimit = 100

// Filter selects events by conjunction of the dimensions below; a filter
// with a zero-value (nil/empty) dimension does not constrain on it.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	Limit   *int
	Tags    map[string][]string // "#e" -> values, "#p" -> values, etc.
}

// filterWire is the JSON shape of a filter object on the wire: known
// fields plus arbitrary "#<letter>" keys, which UnmarshalJSON below
// collects into Filter.Tags.
type filterWire struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// UnmarshalJSON parses a filter object, collecting any "#x" keys as tag
// selectors.
func (f *Filter) UnmarshalJSON(b []byte) error {
	var w filterWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	f.IDs = w.IDs
	f.Authors = w.Authors
	f.Kinds = w.Kinds
	f.Since = w.Since
	f.Until = w.Until
	f.Limit = w.Limit
	for k, v := range raw {
		if !strings.HasPrefix(k, "#") || len(k) < 2 {
			continue
		}
		var vals []string
		if err := json.Unmarshal(v, &vals); err != nil {
			continue
		}
		if f.Tags == nil {
			f.Tags = make(map[string][]string)
		}
		f.Tags[k[1:]] = vals
	}
	return nil
}

// MarshalJSON renders the filter back to wire form, including its tag
// selectors as "#<letter>" keys.
func (f *Filter) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit != nil {
		m["limit"] = *f.Limit
	}
	for k, v := range f.Tags {
		m["#"+k] = v
	}
	return json.Marshal(m)
}

// EffectiveLimit returns the limit to apply to a historical read for this
// filter: the client's request capped at MaxLimit, or DefaultLimit if
// unset.
func (f *Filter) EffectiveLimit() int {
	if f.Limit == nil {
		return DefaultLimit
	}
	if *f.Limit > MaxLimit {
		return MaxLimit
	}
	if *f.Limit <= 0 {
		return 0
	}
	return *f.Limit
}

func hasPrefix(full, prefix string) bool {
	if len(prefix) >= len(full) {
		return full == prefix
	}
	return strings.HasPrefix(full, prefix)
}

func matchesAny(values []string, candidate string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if len(v) == len(candidate) {
			if v == candidate {
				return true
			}
			continue
		}
		if hasPrefix(candidate, v) {
			return true
		}
	}
	return false
}

// Matches reports whether ev satisfies every constrained dimension of f.
func (f *Filter) Matches(ev *Event) bool {
	if !matchesAny(f.IDs, ev.ID) {
		return false
	}
	if !matchesAny(f.Authors, ev.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ev.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if !eventHasTagValue(ev, letter, values) {
			return false
		}
	}
	return true
}

func eventHasTagValue(ev *Event, letter string, values []string) bool {
	for _, t := range ev.Tags {
		if t.Name() != letter {
			continue
		}
		v := t.Value()
		for _, want := range values {
			if v == want {
				return true
			}
		}
	}
	return false
}

// FilterSet is a non-empty ordered sequence of filters, matched as a set
// union: an event matches the set if it matches any one filter in it.
type FilterSet []*Filter

// Matches reports whether ev matches any filter in the set, and if so,
// which index matched first.
func (fs FilterSet) Matches(ev *Event) (matched bool, index int) {
	for i, f := range fs {
		if f.Matches(ev) {
			return true, i
		}
	}
	return false, -1
}

// ParseTolerant parses a REQ's filter payload, accepting the nested-array
// variant in addition to the canonical one-filter-per-array-element form:
//
//   - ["REQ", sub_id, filter, filter, ...]            (canonical)
//   - ["REQ", sub_id, [filter, filter, ...]]           (nested array)
//
// raws is the list of remaining array elements after ["REQ", sub_id].
func ParseTolerant(raws []json.RawMessage) (FilterSet, error) {
	if len(raws) == 1 {
		var nested []json.RawMessage
		if err := json.Unmarshal(raws[0], &nested); err == nil {
			raws = nested
		}
	}
	fs := make(FilterSet, 0, len(raws))
	for _, raw := range raws {
		f := &Filter{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// ParsePrefixTolerant parses one filter object leniently: author/id values
// of any length from 1 to 64 are accepted as hex prefixes, matching the
// prefix-search path clients like Amethyst rely on. It differs from the
// strict Filter.UnmarshalJSON only in dropping id/author values that are
// empty or longer than 64 characters — prefix matching is already what
// Filter.Matches performs for any id/author shorter than 64 characters,
// so this is a thin, clearly-named entry point for that tolerant path
// rather than a different algorithm.
func ParsePrefixTolerant(raw json.RawMessage) (*Filter, error) {
	f := &Filter{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, err
	}
	clean := func(ss []string) []string {
		out := ss[:0]
		for _, s := range ss {
			if len(s) >= 1 && len(s) <= 64 {
				out = append(out, s)
			}
		}
		return out
	}
	f.IDs = clean(f.IDs)
	f.Authors = clean(f.Authors)
	return f, nil
}

// KindCount reports how many kinds the filter lists, used by callers
// deciding whether the kinds dimension constrains at all.
func (f *Filter) KindCount() int { return len(f.Kinds) }

// LimitString is a small helper for logging.
func LimitString(f *Filter) string {
	if f.Limit == nil {
		return "none"
	}
	return strconv.Itoa(*f.Limit)
}
