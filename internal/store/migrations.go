package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Pose rules table - one row per overridden field of a pose rule document
		`CREATE TABLE IF NOT EXISTS pose_rules (
			pose TEXT NOT NULL,
			field TEXT NOT NULL,
			value REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (pose, field)
		)`,

		// Sessions table - one row per exercise attempt
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			pose TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('active', 'completed', 'abandoned')),
			target_ms INTEGER NOT NULL DEFAULT 0,
			held_ms INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_pose_rules_updated_at ON pose_rules(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_pose ON sessions(pose)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
