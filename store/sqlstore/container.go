// Package sqlstore is a Postgres-backed implementation of store.KeyStore,
// scoped to exactly the identity/prekey/signed-prekey/session operations
// the KeyStore contract declares.
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	waLog "go.mau.fi/wacore/log"
)

// Container owns the database pool and schema version for a single
// logical session's key material.
type Container struct {
	db  *pgxpool.Pool
	log waLog.Logger
}

// New connects to the Postgres database identified by dsn, applies any
// pending schema migrations, and returns a ready Container. The caller
// can then build one Store per JID via Container.Store.
func New(ctx context.Context, dsn string, log waLog.Logger) (*Container, error) {
	if log == nil {
		log = waLog.Noop
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: parsing postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connecting to postgres: %w", err)
	}
	c := &Container{db: pool, log: log}
	if err := c.Upgrade(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlstore: upgrading schema: %w", err)
	}
	return c, nil
}

// Close releases the underlying connection pool.
func (c *Container) Close() {
	c.db.Close()
}

// Store returns a store.KeyStore backed by this container. jid is kept on
// the Store but no query reads it; the schema is single-tenant (one
// identity row).
func (c *Container) Store(jid string) *Store {
	return &Store{Container: c, jid: jid}
}
