package store

import "database/sql"

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS collections (
    name       TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
    collection     TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
    chunk_id       TEXT NOT NULL,
    text           TEXT NOT NULL,
    vector         BLOB NOT NULL,
    file_path      TEXT NOT NULL,
    language       TEXT NOT NULL DEFAULT '',
    unit_type      TEXT NOT NULL DEFAULT '',
    name           TEXT NOT NULL DEFAULT '',
    parent         TEXT NOT NULL DEFAULT '',
    signature      TEXT NOT NULL DEFAULT '',
    imports        TEXT NOT NULL DEFAULT '[]',
    start_line     INTEGER NOT NULL,
    end_line       INTEGER NOT NULL,
    token_estimate INTEGER NOT NULL DEFAULT 0,
    oversized      INTEGER NOT NULL DEFAULT 0,
    summary        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (collection, chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_entries_file ON entries(collection, file_path);
`

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
