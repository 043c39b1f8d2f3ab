package store

import (
	"database/sql"
	"fmt"

	"postdesk/internal/logging"
)

// migrations[i] upgrades a database from schema version i to i+1. The
// version is kept in SQLite's user_version pragma.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// CurrentSchemaVersion is the version a fully migrated database reports.
var CurrentSchemaVersion = len(migrations)

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// runMigrations applies every pending migration, each in its own transaction.
// A database written by a newer postdesk is refused rather than modified.
func runMigrations(db *sql.DB) error {
	from, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if from > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", from, CurrentSchemaVersion)
	}

	for v := from; v < CurrentSchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration to version %d failed: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		logging.Store("schema migrated to version %d", v+1)
	}
	return nil
}
