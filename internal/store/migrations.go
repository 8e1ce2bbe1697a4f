package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only schema change.
type migration struct {
	version int
	name    string
	up      string
}

// migrations are applied in order; never edit an applied entry.
var migrations = []migration{
	{
		version: 1,
		name:    "create runs and category_results",
		up: `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL,
				total INTEGER NOT NULL DEFAULT 0,
				passed INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				errors INTEGER NOT NULL DEFAULT 0,
				timeouts INTEGER NOT NULL DEFAULT 0,
				duration_seconds REAL NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS category_results (
				run_id TEXT NOT NULL,
				category TEXT NOT NULL,
				total INTEGER NOT NULL,
				passed INTEGER NOT NULL,
				failed INTEGER NOT NULL,
				errors INTEGER NOT NULL,
				timeouts INTEGER NOT NULL,
				duration_seconds REAL NOT NULL,
				PRIMARY KEY (run_id, category),
				FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
			);
		`,
	},
	{
		version: 2,
		name:    "create load_points",
		up: `
			CREATE TABLE IF NOT EXISTS load_points (
				run_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				num_users INTEGER NOT NULL,
				interval INTEGER NOT NULL DEFAULT 0,
				total_requests INTEGER NOT NULL,
				success_rate_percent REAL NOT NULL,
				avg_response_time REAL NOT NULL,
				p95_response_time REAL NOT NULL,
				max_response_time REAL NOT NULL,
				min_response_time REAL NOT NULL,
				error_count INTEGER NOT NULL,
				degraded INTEGER NOT NULL,
				PRIMARY KEY (run_id, seq),
				FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
			);
		`,
	},
	{
		version: 3,
		name:    "index runs by start time",
		up: `
			CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
		`,
	},
}

// migrate applies every pending migration, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
