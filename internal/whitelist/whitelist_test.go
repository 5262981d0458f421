package whitelist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrelay/relay/internal/store"
)

type fakeSource struct {
	users map[string]*store.User
	calls int
}

func (f *fakeSource) GetUser(ctx context.Context, pubkey string) (*store.User, error) {
	f.calls++
	u, ok := f.users[pubkey]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func TestAllowedReadsThroughOnMiss(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"alice": {Pubkey: "alice", WhitelistStatus: store.StatusActive},
	}}
	c := New(src, "")

	allowed, err := c.Allowed(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, src.calls)
}

func TestAllowedCachesSubsequentLookups(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"alice": {Pubkey: "alice", WhitelistStatus: store.StatusActive},
	}}
	c := New(src, "")

	_, _ = c.Allowed(context.Background(), "alice")
	_, _ = c.Allowed(context.Background(), "alice")
	_, _ = c.Allowed(context.Background(), "alice")
	assert.Equal(t, 1, src.calls, "second and third lookups should hit the cache")
}

func TestAllowedFalseForAbsentUser(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{}}
	c := New(src, "")

	allowed, err := c.Allowed(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllowedFalseForRevokedOrVanished(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"bob":   {Pubkey: "bob", WhitelistStatus: store.StatusRevoked},
		"carol": {Pubkey: "carol", WhitelistStatus: store.StatusVanished},
	}}
	c := New(src, "")

	allowed, err := c.Allowed(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = c.Allowed(context.Background(), "carol")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestIsAdminReflectsUserRecord(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"admin": {Pubkey: "admin", IsAdmin: true, WhitelistStatus: store.StatusActive},
	}}
	c := New(src, "")

	isAdmin, err := c.IsAdmin(context.Background(), "admin")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = c.IsAdmin(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestAuthorizedAdmitsAdminRegardlessOfStatus(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"root":  {Pubkey: "root", IsAdmin: true, WhitelistStatus: store.StatusRevoked},
		"plain": {Pubkey: "plain", WhitelistStatus: store.StatusActive},
		"bob":   {Pubkey: "bob", WhitelistStatus: store.StatusRevoked},
	}}
	c := New(src, "")

	authorized, err := c.Authorized(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, authorized, "an admin whose status isn't ACTIVE must still be authorized")

	authorized, err = c.Authorized(context.Background(), "plain")
	require.NoError(t, err)
	assert.True(t, authorized)

	authorized, err = c.Authorized(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, authorized)
}

func TestInvalidateForcesFreshLookup(t *testing.T) {
	src := &fakeSource{users: map[string]*store.User{
		"alice": {Pubkey: "alice", WhitelistStatus: store.StatusActive},
	}}
	c := New(src, "")

	_, _ = c.Allowed(context.Background(), "alice")
	assert.Equal(t, 1, src.calls)

	c.Invalidate(context.Background(), "alice")
	src.users["alice"].WhitelistStatus = store.StatusVanished

	allowed, err := c.Allowed(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, src.calls)
}
