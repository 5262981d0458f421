package nostr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterUnmarshalCollectsTagSelectors(t *testing.T) {
	raw := []byte(`{"kinds":[1,2],"authors":["aa"],"#e":["x","y"],"#p":["z"]}`)
	var f Filter
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, []int{1, 2}, f.Kinds)
	assert.Equal(t, []string{"aa"}, f.Authors)
	assert.ElementsMatch(t, []string{"x", "y"}, f.Tags["e"])
	assert.ElementsMatch(t, []string{"z"}, f.Tags["p"])
}

func TestEffectiveLimit(t *testing.T) {
	unset := &Filter{}
	assert.Equal(t, DefaultLimit, unset.EffectiveLimit())

	over := 10000
	capped := &Filter{Limit: &over}
	assert.Equal(t, MaxLimit, capped.EffectiveLimit())

	neg := -5
	zero := &Filter{Limit: &neg}
	assert.Equal(t, 0, zero.EffectiveLimit())

	ten := 10
	normal := &Filter{Limit: &ten}
	assert.Equal(t, 10, normal.EffectiveLimit())
}

func TestFilterMatchesConjunction(t *testing.T) {
	ev := &Event{
		ID:        "abcdef0000000000000000000000000000000000000000000000000000ff",
		Pubkey:    "cafe000000000000000000000000000000000000000000000000000000be",
		Kind:      1,
		CreatedAt: 1000,
		Tags:      Tags{{"e", "ref1"}},
	}

	assert.True(t, (&Filter{Kinds: []int{1, 2}}).Matches(ev))
	assert.False(t, (&Filter{Kinds: []int{2}}).Matches(ev))

	assert.True(t, (&Filter{Authors: []string{"cafe"}}).Matches(ev), "prefix author match")
	assert.False(t, (&Filter{Authors: []string{"dead"}}).Matches(ev))

	assert.True(t, (&Filter{IDs: []string{ev.ID}}).Matches(ev), "full id match")
	assert.True(t, (&Filter{IDs: []string{"abcdef"}}).Matches(ev), "prefix id match")

	since := int64(1001)
	assert.False(t, (&Filter{Since: &since}).Matches(ev))
	until := int64(999)
	assert.False(t, (&Filter{Until: &until}).Matches(ev))

	assert.True(t, (&Filter{Tags: map[string][]string{"e": {"ref1"}}}).Matches(ev))
	assert.False(t, (&Filter{Tags: map[string][]string{"e": {"other"}}}).Matches(ev))
}

func TestFilterSetMatchesUnion(t *testing.T) {
	ev := &Event{Kind: 5}
	fs := FilterSet{{Kinds: []int{1}}, {Kinds: []int{5}}}
	matched, idx := fs.Matches(ev)
	assert.True(t, matched)
	assert.Equal(t, 1, idx)

	fs2 := FilterSet{{Kinds: []int{1}}}
	matched, _ = fs2.Matches(ev)
	assert.False(t, matched)
}

func TestParseTolerantUnwrapsNestedArray(t *testing.T) {
	nested := []byte(`[[{"kinds":[1]},{"kinds":[2]}]]`)
	var raws []json.RawMessage
	require.NoError(t, json.Unmarshal(nested, &raws))
	fs, err := ParseTolerant(raws)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, []int{1}, fs[0].Kinds)
	assert.Equal(t, []int{2}, fs[1].Kinds)
}

func TestParseTolerantCanonicalForm(t *testing.T) {
	canonical := []byte(`[{"kinds":[1]},{"kinds":[2]}]`)
	var raws []json.RawMessage
	require.NoError(t, json.Unmarshal(canonical, &raws))
	fs, err := ParseTolerant(raws)
	require.NoError(t, err)
	require.Len(t, fs, 2)
}

func TestParsePrefixTolerantDropsOversizedValues(t *testing.T) {
	tooLong := make([]byte, 0, 70)
	for i := 0; i < 70; i++ {
		tooLong = append(tooLong, 'a')
	}
	raw, _ := json.Marshal(map[string]any{"ids": []string{"short", string(tooLong)}})
	f, err := ParsePrefixTolerant(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, f.IDs)
}
