package reconcile

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrelay/relay/internal/nostr"
)

type fakeLoader struct {
	ids []string
	err error
}

func (f *fakeLoader) QueryEventIDs(ctx context.Context, filter *nostr.Filter, cap int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ids) > cap {
		return f.ids[:cap], nil
	}
	return f.ids, nil
}

func id(b byte) string {
	buf := make([]byte, 32)
	buf[0] = b
	return hex.EncodeToString(buf)
}

func TestOpenReturnsOurIDSet(t *testing.T) {
	loader := &fakeLoader{ids: []string{id(1), id(2)}}
	m := New(loader)

	initial, err := m.Open(context.Background(), "s1", &nostr.Filter{})
	require.NoError(t, err)
	assert.Len(t, initial, 128) // two 32-byte ids, hex-encoded
}

func TestMessageComputesHaveAndNeed(t *testing.T) {
	loader := &fakeLoader{ids: []string{id(1), id(2)}}
	m := New(loader)
	_, err := m.Open(context.Background(), "s1", &nostr.Filter{})
	require.NoError(t, err)

	// client has id(2) and id(3); we have id(1) and id(2).
	b2, _ := hex.DecodeString(id(2))
	b3, _ := hex.DecodeString(id(3))
	payload := append(append([]byte{}, b2...), b3...)

	diff, err := m.Message("s1", payload)
	require.NoError(t, err)
	assert.Equal(t, []string{id(1)}, diff.Have)
	assert.Equal(t, []string{id(3)}, diff.Need)
}

func TestMessageUnknownSessionErrors(t *testing.T) {
	m := New(&fakeLoader{})
	_, err := m.Message("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestMessageRejectsMalformedPayload(t *testing.T) {
	loader := &fakeLoader{}
	m := New(loader)
	_, err := m.Open(context.Background(), "s1", &nostr.Filter{})
	require.NoError(t, err)

	_, err = m.Message("s1", []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedIDs)
}

func TestCloseDropsSession(t *testing.T) {
	loader := &fakeLoader{}
	m := New(loader)
	_, err := m.Open(context.Background(), "s1", &nostr.Filter{})
	require.NoError(t, err)

	m.Close("s1")
	_, err = m.Message("s1", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestOpenRejectsTooManyItems(t *testing.T) {
	ids := make([]string, MaxItems+1)
	for i := range ids {
		ids[i] = id(byte(i))
	}
	m := New(&fakeLoader{ids: ids})
	_, err := m.Open(context.Background(), "s1", &nostr.Filter{})
	assert.ErrorIs(t, err, ErrTooManyItems)
}

func TestCloseAllDropsEverySession(t *testing.T) {
	loader := &fakeLoader{}
	m := New(loader)
	_, _ = m.Open(context.Background(), "a", &nostr.Filter{})
	_, _ = m.Open(context.Background(), "b", &nostr.Filter{})
	m.CloseAll()
	_, err := m.Message("a", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = m.Message("b", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)
}
