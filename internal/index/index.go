// Package index keeps a SQLite index of a local Logseq graph directory and
// serves it as a graph.Source.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid          TEXT NOT NULL UNIQUE,
	path          TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	journal       INTEGER NOT NULL DEFAULT 0,
	checksum      TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS blocks (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid      TEXT NOT NULL UNIQUE,
	page_id   INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL DEFAULT '',
	pre_block INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS refs (
	block_id INTEGER NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	UNIQUE(block_id, name)
);

CREATE TABLE IF NOT EXISTS properties (
	block_id INTEGER NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
	key      TEXT NOT NULL,
	value    TEXT NOT NULL,
	UNIQUE(block_id, key)
);

CREATE INDEX IF NOT EXISTS idx_pages_name ON pages(name);
CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page_id);
CREATE INDEX IF NOT EXISTS idx_refs_name ON refs(name);
CREATE INDEX IF NOT EXISTS idx_properties_key ON properties(key, value);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
