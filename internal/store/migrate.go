package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS safe_mode_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		enabled INTEGER NOT NULL,
		rate_limit REAL NOT NULL,
		prev_enabled INTEGER NOT NULL,
		prev_rate_limit REAL NOT NULL,
		source TEXT NOT NULL,
		actor TEXT,
		reason TEXT,
		request_id TEXT,
		changed_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_safe_mode_changes_at ON safe_mode_changes(changed_at);`,
	`CREATE TABLE IF NOT EXISTS check_runs (
		id TEXT PRIMARY KEY,
		passed INTEGER NOT NULL,
		probes INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		report TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_check_runs_started ON check_runs(started_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
