// Package index provides the SQLite-backed annotation index: file rows,
// annotations with their replies, and optional FTS5 search over annotation
// text.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS annotations (
	id              TEXT PRIMARY KEY,
	file_path       TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE ON UPDATE CASCADE,
	position        INTEGER NOT NULL,
	line_number     INTEGER NOT NULL,
	end_line_number INTEGER NOT NULL DEFAULT 0,
	line_content    TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL,
	content         TEXT NOT NULL,
	orphaned        BOOLEAN NOT NULL DEFAULT 0,
	added_by        TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS replies (
	id            TEXT PRIMARY KEY,
	annotation_id TEXT NOT NULL REFERENCES annotations(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	content       TEXT NOT NULL,
	added_by      TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_file ON annotations(file_path, position);
CREATE INDEX IF NOT EXISTS idx_replies_annotation ON replies(annotation_id, position);
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
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
