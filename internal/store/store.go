// Package store persists the navigation graph in SQLite. It implements the
// nav.Storage contract: node saves coalesce with an equivalent recent record
// and return the canonical id, which callers must adopt.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection.
type Store struct {
	conn *sql.DB
	Path string

	// coalesceWindow bounds how recent an equivalent node must be for
	// SaveNode to merge into it instead of inserting.
	coalesceWindow time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	ended_at   INTEGER
);

CREATE TABLE IF NOT EXISTS nodes (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL,
	tab_id            TEXT NOT NULL,
	url               TEXT NOT NULL,
	normalized_url    TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	favicon           TEXT NOT NULL DEFAULT '',
	parent_id         TEXT NOT NULL DEFAULT '',
	type              TEXT NOT NULL,
	open_target       TEXT NOT NULL,
	source            TEXT NOT NULL,
	timestamp         INTEGER NOT NULL,
	first_visit       INTEGER NOT NULL,
	last_visit        INTEGER NOT NULL,
	visit_count       INTEGER NOT NULL DEFAULT 1,
	reload_count      INTEGER NOT NULL DEFAULT 0,
	spa_request_count INTEGER NOT NULL DEFAULT 0,
	frame_id          TEXT NOT NULL DEFAULT '',
	parent_frame_id   TEXT NOT NULL DEFAULT '',
	is_closed         INTEGER NOT NULL DEFAULT 0,
	close_time        INTEGER,
	active_time       INTEGER,
	load_time         INTEGER,
	referrer          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_nodes_session ON nodes(session_id);
CREATE INDEX IF NOT EXISTS idx_nodes_tab ON nodes(tab_id);
CREATE INDEX IF NOT EXISTS idx_nodes_norm ON nodes(session_id, tab_id, normalized_url);

CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	source_id  TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	timestamp  INTEGER NOT NULL,
	session_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_session ON edges(session_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
`

// Open opens a SQLite database with WAL mode and foreign keys enabled,
// creating the schema on first use.
func Open(path string, coalesceWindow time.Duration) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if coalesceWindow <= 0 {
		coalesceWindow = 2 * time.Second
	}
	return &Store{conn: conn, Path: path, coalesceWindow: coalesceWindow}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries.
func (s *Store) Conn() *sql.DB {
	return s.conn
}
