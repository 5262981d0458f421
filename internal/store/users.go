package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrUserNotFound is returned by GetUser when pubkey has no row.
var ErrUserNotFound = errors.New("store: user not found")

// GetUser fetches the user record for pubkey.
func (s *Store) GetUser(ctx context.Context, pubkey string) (*User, error) {
	var u User
	err := s.pool.QueryRow(
		ctx,
		`SELECT pubkey, COALESCE(npub, ''), is_admin, COALESCE(whitelist_status, '') FROM users WHERE pubkey = $1`,
		pubkey,
	).Scan(&u.Pubkey, &u.Npub, &u.IsAdmin, &u.WhitelistStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpsertActive inserts pubkey as an active, non-admin user if it does not
// already exist; existing rows (and their admin flag) are left untouched.
func (s *Store) UpsertActive(ctx context.Context, pubkey string) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO users (pubkey, whitelist_status) VALUES ($1, $2)
		 ON CONFLICT (pubkey) DO NOTHING`,
		pubkey, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("upsert active user: %w", err)
	}
	return nil
}

// SetStatus updates pubkey's whitelist status, used by the admin RPC's
// allow_user/ban_user methods (§4.7).
func (s *Store) SetStatus(ctx context.Context, pubkey string, status WhitelistStatus) error {
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO users (pubkey, whitelist_status) VALUES ($1, $2)
		 ON CONFLICT (pubkey) DO UPDATE SET whitelist_status = $2`,
		pubkey, status,
	)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return nil
}

// SetVanished marks pubkey as vanished (NIP-62 kind-62 request), the
// terminal status a user's whitelist entry can reach.
func (s *Store) SetVanished(ctx context.Context, pubkey string) error {
	return s.SetStatus(ctx, pubkey, StatusVanished)
}

// ListActiveUsers returns every pubkey currently whitelisted as ACTIVE,
// for the admin RPC's list_allowed_users method (§4.7).
func (s *Store) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT pubkey FROM users WHERE whitelist_status = $1`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}
