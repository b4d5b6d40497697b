package sqlite

import (
	"context"
	"fmt"
)

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL DEFAULT '',
			token_hint TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			logged_in INTEGER NOT NULL DEFAULT 0,
			initial_level INTEGER,
			final_level INTEGER,
			damage_upgrades INTEGER NOT NULL DEFAULT 0,
			limit_upgrades INTEGER NOT NULL DEFAULT 0,
			missions_completed INTEGER NOT NULL DEFAULT 0,
			taps_performed INTEGER NOT NULL DEFAULT 0,
			tap_outcome TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			token_hint TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			level INTEGER,
			total_taps INTEGER NOT NULL DEFAULT 0,
			total_missions INTEGER NOT NULL DEFAULT 0,
			runs INTEGER NOT NULL DEFAULT 0,
			last_seen_at INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
