package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nostrelay/relay/internal/nostr"
)

func TestOpenReplacesExistingSubscriptionID(t *testing.T) {
	r := New()
	r.Open("s1", nostr.FilterSet{{Kinds: []int{1}}})
	assert.Equal(t, 1, r.Len())

	r.Open("s1", nostr.FilterSet{{Kinds: []int{2}}})
	assert.Equal(t, 1, r.Len())

	matched := r.Match(&nostr.Event{Kind: 1})
	assert.Empty(t, matched, "old filter should have been replaced")

	matched = r.Match(&nostr.Event{Kind: 2})
	assert.Equal(t, []string{"s1"}, matched)
}

func TestCloseRemovesSubscription(t *testing.T) {
	r := New()
	r.Open("s1", nostr.FilterSet{{Kinds: []int{1}}})
	r.Close("s1")
	assert.Equal(t, 0, r.Len())
	r.Close("does-not-exist")
}

func TestMatchReturnsEverySubscriptionThatMatches(t *testing.T) {
	r := New()
	r.Open("a", nostr.FilterSet{{Kinds: []int{1}}})
	r.Open("b", nostr.FilterSet{{Kinds: []int{1}}})
	r.Open("c", nostr.FilterSet{{Kinds: []int{2}}})

	matched := r.Match(&nostr.Event{Kind: 1})
	assert.ElementsMatch(t, []string{"a", "b"}, matched)
}

func TestCloseAllClearsEveryEntry(t *testing.T) {
	r := New()
	r.Open("a", nostr.FilterSet{{Kinds: []int{1}}})
	r.Open("b", nostr.FilterSet{{Kinds: []int{2}}})
	r.CloseAll()
	assert.Equal(t, 0, r.Len())
}
