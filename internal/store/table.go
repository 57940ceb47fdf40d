package store

import (
	"context"
	"fmt"
)

const schemaVersion = 1

func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER NOT NULL
);
`); err != nil {
		return err
	}

	var v int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_meta;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS properties (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  listing_url TEXT NOT NULL,
  location_key TEXT NOT NULL,
  location_name TEXT NOT NULL,
  property_type TEXT NOT NULL DEFAULT '',
  price DOUBLE PRECISION NOT NULL,
  city TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL,
  financial TEXT NOT NULL DEFAULT '{}',
  physical TEXT NOT NULL DEFAULT '{}',
  metadata TEXT NOT NULL DEFAULT '{}',
  issues TEXT NOT NULL DEFAULT '[]',
  first_seen TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_properties_first_seen
ON properties(first_seen);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_properties_location
ON properties(location_key);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO schema_meta(version) VALUES (?);`), schemaVersion); err != nil {
		return fmt.Errorf("mark schema v%d: %w", schemaVersion, err)
	}

	return tx.Commit()
}
