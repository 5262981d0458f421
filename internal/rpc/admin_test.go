package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrelay/relay/internal/store"
	"github.com/nostrelay/relay/internal/whitelist"
)

type fakeUsers struct {
	active     []string
	statusSets map[string]store.WhitelistStatus
}

func (u *fakeUsers) ListActiveUsers(ctx context.Context) ([]string, error) {
	return u.active, nil
}

func (u *fakeUsers) SetStatus(ctx context.Context, pubkey string, status store.WhitelistStatus) error {
	if u.statusSets == nil {
		u.statusSets = map[string]store.WhitelistStatus{}
	}
	u.statusSets[pubkey] = status
	return nil
}

type fakeSource struct {
	users map[string]*store.User
}

func (f *fakeSource) GetUser(ctx context.Context, pubkey string) (*store.User, error) {
	u, ok := f.users[pubkey]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func TestIsRPCRequestDistinguishesObjectsFromArrays(t *testing.T) {
	assert.True(t, IsRPCRequest([]byte(`{"method":"list_allowed_users","id":1}`)))
	assert.False(t, IsRPCRequest([]byte(`["EVENT",{}]`)))
	assert.False(t, IsRPCRequest([]byte(`{"no_method":true}`)))
}

func TestHandleRejectsUnauthenticatedCaller(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{}}
	wl := whitelist.New(src, "")
	h := New(&fakeUsers{}, wl)

	resp := h.Handle(context.Background(), "", Request{Method: "list_allowed_users"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestHandleRejectsNonAdminCaller(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"alice": {Pubkey: "alice", IsAdmin: false, WhitelistStatus: store.StatusActive},
	}}
	wl := whitelist.New(src, "")
	h := New(&fakeUsers{}, wl)

	resp := h.Handle(context.Background(), "alice", Request{Method: "list_allowed_users"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestHandleListAllowedUsersForAdmin(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"admin": {Pubkey: "admin", IsAdmin: true, WhitelistStatus: store.StatusActive},
	}}
	wl := whitelist.New(src, "")
	users := &fakeUsers{active: []string{"alice", "bob"}}
	h := New(users, wl)

	resp := h.Handle(context.Background(), "admin", Request{Method: "list_allowed_users"})
	require.Nil(t, resp.Error)
	var got []string
	require.NoError(t, json.Unmarshal(mustMarshal(t, resp.Result), &got))
	assert.ElementsMatch(t, []string{"alice", "bob"}, got)
}

func TestHandleAllowUserInvalidatesCache(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"admin": {Pubkey: "admin", IsAdmin: true, WhitelistStatus: store.StatusActive},
	}}
	wl := whitelist.New(src, "")
	// warm the cache for the target pubkey with a stale REVOKED status.
	src.users["target"] = &store.User{Pubkey: "target", WhitelistStatus: store.StatusRevoked}
	_, _ = wl.Allowed(context.Background(), "target")

	users := &fakeUsers{}
	h := New(users, wl)

	params, err := json.Marshal("target")
	require.NoError(t, err)
	resp := h.Handle(context.Background(), "admin", Request{Method: "allow_user", Params: []json.RawMessage{params}})
	require.Nil(t, resp.Error)
	assert.Equal(t, store.StatusActive, users.statusSets["target"])

	// cache was invalidated, so a subsequent read goes back to the backing
	// store and sees the status it now holds rather than the cached REVOKED
	// answer from before the call.
	src.users["target"].WhitelistStatus = store.StatusActive
	allowed, err := wl.Allowed(context.Background(), "target")
	require.NoError(t, err)
	assert.True(t, allowed, "a cached REVOKED answer would survive without invalidation")
}

func TestHandleUnknownMethod(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"admin": {Pubkey: "admin", IsAdmin: true, WhitelistStatus: store.StatusActive},
	}}
	wl := whitelist.New(src, "")
	h := New(&fakeUsers{}, wl)

	resp := h.Handle(context.Background(), "admin", Request{Method: "delete_everything"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeUnknownMethod, resp.Error.Code)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
