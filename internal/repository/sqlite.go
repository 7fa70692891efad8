package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Local projects (source of the billable flag)
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		billable BOOLEAN NOT NULL DEFAULT 1,
		archived BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Raw time entries (read-only input to the sync engine)
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
		entry_date TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		skip_sync BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_time_entries_user_date ON time_entries(user_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_time_entries_project ON time_entries(project_id);

	-- Remote system connections (one per user)
	CREATE TABLE IF NOT EXISTS connections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		remote_base_url TEXT NOT NULL,
		remote_user_id BIGINT NOT NULL,
		token_encrypted TEXT NOT NULL,
		last_synced_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Local project <-> remote project mappings
	CREATE TABLE IF NOT EXISTS project_mappings (
		id TEXT PRIMARY KEY,
		connection_id TEXT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
		local_project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		remote_project_id BIGINT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		last_synced_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(connection_id, local_project_id),
		UNIQUE(connection_id, remote_project_id)
	);

	CREATE INDEX IF NOT EXISTS idx_project_mappings_connection ON project_mappings(connection_id);

	-- Last-synced state per (mapping, day)
	CREATE TABLE IF NOT EXISTS synced_units (
		id TEXT PRIMARY KEY,
		mapping_id TEXT NOT NULL REFERENCES project_mappings(id) ON DELETE CASCADE,
		unit_date TEXT NOT NULL,
		remote_entry_id BIGINT NOT NULL,
		last_hash TEXT NOT NULL,
		sync_version INTEGER NOT NULL DEFAULT 1,
		components TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(mapping_id, unit_date)
	);

	CREATE INDEX IF NOT EXISTS idx_synced_units_mapping ON synced_units(mapping_id);

	-- Sync run audit log
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		connection_id TEXT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		direction TEXT NOT NULL DEFAULT 'push',
		attempted INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error_summary TEXT,
		error_details TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_connection ON sync_runs(connection_id, started_at);

	-- Single-flight gate: at most one RUNNING run per connection
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_runs_one_running
		ON sync_runs(connection_id) WHERE status = 'RUNNING';
	`

	_, err := db.Exec(schema)
	return err
}
