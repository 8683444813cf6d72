package sqlstore

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type upgradeFunc func(pgx.Tx) error

// upgrades holds the ordered schema migrations for a fresh or existing
// database: one upgradeFunc per version, each run in its own transaction.
var upgrades = [...]upgradeFunc{upgradeV1}

func (c *Container) getVersion(ctx context.Context) (int, error) {
	_, err := c.db.Exec(ctx, "CREATE TABLE IF NOT EXISTS wacore_version (version INTEGER)")
	if err != nil {
		return 0, err
	}
	version := 0
	row := c.db.QueryRow(ctx, "SELECT version FROM wacore_version LIMIT 1")
	_ = row.Scan(&version)
	return version, nil
}

func (c *Container) setVersion(ctx context.Context, tx pgx.Tx, version int) error {
	if _, err := tx.Exec(ctx, "DELETE FROM wacore_version"); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, "INSERT INTO wacore_version (version) VALUES ($1)", version)
	return err
}

// Upgrade brings the schema up to the latest version, running each
// not-yet-applied migration in its own transaction.
func (c *Container) Upgrade(ctx context.Context) error {
	version, err := c.getVersion(ctx)
	if err != nil {
		return err
	}
	for ; version < len(upgrades); version++ {
		tx, err := c.db.Begin(ctx)
		if err != nil {
			return err
		}
		c.log.Infof("Upgrading database to v%d", version+1)
		if err = upgrades[version](tx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err = c.setVersion(ctx, tx, version+1); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err = tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func upgradeV1(tx pgx.Tx) error {
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE wacore_identity (
			id               INTEGER PRIMARY KEY DEFAULT 1 CHECK ( id = 1 ),
			registration_id  BIGINT NOT NULL CHECK ( registration_id >= 0 AND registration_id < 4294967296 ),
			identity_pub     bytea NOT NULL CHECK ( length(identity_pub) = 32 ),
			identity_priv    bytea NOT NULL CHECK ( length(identity_priv) = 32 )
		)`,
		`CREATE TABLE wacore_prekey (
			id   INTEGER PRIMARY KEY CHECK ( id >= 0 AND id < 16777216 ),
			pub  bytea NOT NULL CHECK ( length(pub) = 32 ),
			priv bytea NOT NULL CHECK ( length(priv) = 32 )
		)`,
		`CREATE TABLE wacore_signed_prekey (
			id        INTEGER PRIMARY KEY CHECK ( id >= 0 AND id < 16777216 ),
			pub       bytea NOT NULL CHECK ( length(pub) = 32 ),
			priv      bytea NOT NULL CHECK ( length(priv) = 32 ),
			signature bytea NOT NULL CHECK ( length(signature) = 64 )
		)`,
		`CREATE TABLE wacore_session (
			their_jid TEXT NOT NULL,
			device_id INTEGER NOT NULL,
			session   bytea,
			PRIMARY KEY (their_jid, device_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
