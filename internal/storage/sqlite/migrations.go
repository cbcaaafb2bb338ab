package sqlite

import (
	"context"
	"database/sql"
)

// Migrate runs all database migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Tasks table; seq preserves first insertion order.
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL UNIQUE
		)`,

		// Landmarks table
		`CREATE TABLE IF NOT EXISTS landmarks (
			task_id TEXT NOT NULL,
			landmark TEXT NOT NULL,
			PRIMARY KEY (task_id, landmark),
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_landmarks_landmark ON landmarks(landmark)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
