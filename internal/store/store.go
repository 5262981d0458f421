// Package store is the Event Store Gateway (§11.2): a narrow interface
// over Postgres for insert/query/delete/addressable-replace, plus the user
// table the whitelist cache reads through to.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WhitelistStatus mirrors the Postgres whitelist_status enum.
type WhitelistStatus string

const (
	StatusActive   WhitelistStatus = "ACTIVE"
	StatusRevoked  WhitelistStatus = "REVOKED"
	StatusVanished WhitelistStatus = "VANISHED"
)

// User is the external user record spec §3 describes.
type User struct {
	Pubkey          string
	Npub            string
	IsAdmin         bool
	WhitelistStatus WhitelistStatus
}

// Store is the Postgres-backed Event Store Gateway, pooling up to 50
// connections via pgxpool the way the relay's existing storage layer
// pools its own backend connections.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at databaseURL with a pool capped at 50
// connections (§5 resource limits).
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 50
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }
