package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step.
type migration struct {
	version     int
	description string
	statements  []string
}

// migrations is the ordered schema history. Append only.
var migrations = []migration{
	{
		version:     1,
		description: "sessions and wizard state",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS session (
				id TEXT PRIMARY KEY,
				access_token TEXT NOT NULL,
				email TEXT NOT NULL,
				created_at TEXT NOT NULL,
				expires_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_session_expires_at ON session(expires_at)`,
			`CREATE TABLE IF NOT EXISTS wizard_state (
				session_id TEXT PRIMARY KEY,
				step TEXT NOT NULL DEFAULT 'term',
				selected_term_id TEXT NOT NULL DEFAULT '',
				calendar_year INTEGER NOT NULL DEFAULT 1,
				default_capacity INTEGER NOT NULL DEFAULT 45,
				checked TEXT NOT NULL DEFAULT '{}',
				counts TEXT NOT NULL DEFAULT '{}',
				search TEXT NOT NULL DEFAULT '',
				upload TEXT,
				updated_at TEXT NOT NULL,
				FOREIGN KEY (session_id) REFERENCES session(id) ON DELETE CASCADE
			)`,
		},
	},
}

// LatestSchemaVersion returns the version the newest migration produces.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// InitDB configures the connection and brings the schema up to date.
// PRE: db is a valid database connection
// POST: WAL mode and foreign keys enabled, all migrations applied
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return MigrateDB(db)
}

// MigrateDB applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 on a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}
