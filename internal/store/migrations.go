package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Runs table - one row per watch run
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			calibration TEXT NOT NULL DEFAULT '{}',
			ending_index INTEGER NOT NULL,
			required_no_led INTEGER NOT NULL,
			required_ending INTEGER NOT NULL,
			interval_ms INTEGER NOT NULL,
			verdict TEXT NOT NULL DEFAULT 'running'
				CHECK(verdict IN ('running', 'ending_detected', 'no_led_detected')),
			ticks INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Ticks table - one row per acquisition-classify-decide cycle
		`CREATE TABLE IF NOT EXISTS ticks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tick_index INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('no_led', 'single_led', 'ambiguous')),
			state INTEGER NOT NULL,
			count INTEGER NOT NULL,
			x REAL NOT NULL,
			xn REAL NOT NULL,
			consecutive_no_led INTEGER NOT NULL,
			consecutive_ending INTEGER NOT NULL,
			verdict TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			UNIQUE(run_id, tick_index)
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_ticks_run_id ON ticks(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
