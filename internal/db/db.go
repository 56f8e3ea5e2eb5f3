package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lmdevv/tabby-sub002/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file created under the base directory.
const FileName = "tabby.db"

// Init initializes the SQLite database at baseDir/tabby.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tabby.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Snapshot exports land here
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	// _txlock=immediate takes the write lock at BEGIN so two transitions never interleave.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: closed tabs are kept apart from tabs archived by a switch
	if version < 2 {
		if _, err := db.Exec(schemaV2); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// schemaV1 is the initial schema.
//
// tabs.workspace_id and tab_groups.workspace_id carry no foreign key because
// they hold -1 for unassigned rows. Snapshot rows are write-once: the triggers
// reject every UPDATE, and deletes cascade from the owning workspace.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS workspace_groups (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  name       TEXT NOT NULL,
  icon       TEXT,
  collapsed  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workspaces (
  id                      INTEGER PRIMARY KEY AUTOINCREMENT,
  group_id                INTEGER REFERENCES workspace_groups(id) ON DELETE SET NULL,
  name                    TEXT NOT NULL,
  description             TEXT,
  created_at              INTEGER NOT NULL,
  last_opened             INTEGER NOT NULL,
  active                  INTEGER NOT NULL DEFAULT 0 CHECK (active IN (0, 1)),
  resource_group_ids_json TEXT NOT NULL DEFAULT '[]'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_single_active
ON workspaces(active)
WHERE active = 1;

CREATE INDEX IF NOT EXISTS idx_workspaces_last_opened
ON workspaces(last_opened DESC, id DESC);

CREATE TABLE IF NOT EXISTS tab_groups (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  stable_id        TEXT NOT NULL UNIQUE,
  workspace_id     INTEGER NOT NULL,
  window_id        INTEGER NOT NULL,
  title            TEXT NOT NULL DEFAULT '',
  color            TEXT NOT NULL DEFAULT 'grey',
  collapsed        INTEGER NOT NULL DEFAULT 0,
  group_status     TEXT NOT NULL CHECK (group_status IN ('active', 'archived')),
  browser_group_id INTEGER,
  created_at       INTEGER NOT NULL,
  updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tab_groups_workspace_status
ON tab_groups(workspace_id, group_status);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tab_groups_browser_group_id
ON tab_groups(browser_group_id)
WHERE browser_group_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS tabs (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  stable_id      TEXT NOT NULL UNIQUE,
  workspace_id   INTEGER NOT NULL,
  window_id      INTEGER NOT NULL,
  tab_index      INTEGER NOT NULL,
  url            TEXT NOT NULL,
  title          TEXT NOT NULL DEFAULT '',
  group_id       INTEGER REFERENCES tab_groups(id) ON DELETE SET NULL,
  tab_status     TEXT NOT NULL CHECK (tab_status IN ('active', 'archived')),
  tags_json      TEXT,
  description    TEXT,
  browser_tab_id INTEGER,
  created_at     INTEGER NOT NULL,
  updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tabs_workspace_status
ON tabs(workspace_id, tab_status, window_id, tab_index);

CREATE INDEX IF NOT EXISTS idx_tabs_group_id
ON tabs(group_id)
WHERE group_id IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS idx_tabs_browser_tab_id
ON tabs(browser_tab_id)
WHERE browser_tab_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS resources (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  url         TEXT NOT NULL,
  title       TEXT NOT NULL DEFAULT '',
  tags_json   TEXT,
  description TEXT,
  created_at  INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS resource_groups (
  id                INTEGER PRIMARY KEY AUTOINCREMENT,
  name              TEXT NOT NULL,
  resource_ids_json TEXT NOT NULL DEFAULT '[]',
  created_at        INTEGER NOT NULL,
  updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  key        TEXT NOT NULL UNIQUE,
  value      TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS workspace_snapshots (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  workspace_id INTEGER NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
  label        TEXT,
  tab_count    INTEGER NOT NULL,
  group_count  INTEGER NOT NULL,
  window_count INTEGER NOT NULL,
  created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workspace_snapshots_workspace
ON workspace_snapshots(workspace_id, created_at DESC);

CREATE TABLE IF NOT EXISTS snapshot_tabs (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  snapshot_id     INTEGER NOT NULL REFERENCES workspace_snapshots(id) ON DELETE CASCADE,
  stable_id       TEXT NOT NULL,
  window_id       INTEGER NOT NULL,
  tab_index       INTEGER NOT NULL,
  url             TEXT NOT NULL,
  title           TEXT NOT NULL DEFAULT '',
  group_stable_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshot_tabs_snapshot
ON snapshot_tabs(snapshot_id, window_id, tab_index);

CREATE TABLE IF NOT EXISTS snapshot_tab_groups (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  snapshot_id INTEGER NOT NULL REFERENCES workspace_snapshots(id) ON DELETE CASCADE,
  stable_id   TEXT NOT NULL,
  window_id   INTEGER NOT NULL,
  title       TEXT NOT NULL DEFAULT '',
  color       TEXT NOT NULL,
  collapsed   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_snapshot_tab_groups_snapshot
ON snapshot_tab_groups(snapshot_id);

CREATE TRIGGER IF NOT EXISTS trg_workspace_snapshots_immutable
BEFORE UPDATE ON workspace_snapshots
BEGIN
  SELECT RAISE(ABORT, 'workspace snapshots are immutable');
END;

CREATE TRIGGER IF NOT EXISTS trg_snapshot_tabs_immutable
BEFORE UPDATE ON snapshot_tabs
BEGIN
  SELECT RAISE(ABORT, 'snapshot tabs are immutable');
END;

CREATE TRIGGER IF NOT EXISTS trg_snapshot_tab_groups_immutable
BEFORE UPDATE ON snapshot_tab_groups
BEGIN
  SELECT RAISE(ABORT, 'snapshot tab groups are immutable');
END;
`

// schemaV2 records when the browser closed a tab. A closed tab stays archived
// until the browser reports it live again; activation never revives it.
const schemaV2 = `
ALTER TABLE tabs ADD COLUMN closed_at INTEGER;
`

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
