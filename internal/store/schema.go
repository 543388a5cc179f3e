package store

import (
	"fmt"
)

// initializeSchema creates all tables, the FTS5 index, and its sync triggers.
// Everything is IF NOT EXISTS so reopening an existing corpus is a no-op.
func (db *DB) initializeSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS atoms (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			compound_id TEXT,
			start_byte INTEGER NOT NULL DEFAULT -1,
			end_byte INTEGER NOT NULL DEFAULT -1,
			fingerprint TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0,
			provenance TEXT NOT NULL DEFAULT 'internal',
			atom_type TEXT NOT NULL DEFAULT 'prose',
			value REAL,
			unit TEXT,
			seq INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_atoms_compound ON atoms(compound_id)`,
		`CREATE INDEX IF NOT EXISTS idx_atoms_source ON atoms(source)`,
		`CREATE INDEX IF NOT EXISTS idx_atoms_created ON atoms(created_at)`,

		`CREATE TABLE IF NOT EXISTS atom_tags (
			atom_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (atom_id, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_atom_tags_tag ON atom_tags(tag)`,

		`CREATE TABLE IF NOT EXISTS atom_buckets (
			atom_id TEXT NOT NULL,
			bucket TEXT NOT NULL,
			PRIMARY KEY (atom_id, bucket)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_atom_buckets_bucket ON atom_buckets(bucket)`,

		`CREATE TABLE IF NOT EXISTS compounds (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			body BLOB,
			body_len INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS engrams (
			key_hash TEXT NOT NULL,
			atom_id TEXT NOT NULL,
			PRIMARY KEY (key_hash, atom_id)
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS atoms_fts USING fts5(
			content,
			source,
			content='atoms',
			content_rowid='rowid'
		)`,

		`CREATE TRIGGER IF NOT EXISTS atoms_fts_ai AFTER INSERT ON atoms BEGIN
			INSERT INTO atoms_fts(rowid, content, source)
			VALUES (new.rowid, new.content, new.source);
		END`,
		`CREATE TRIGGER IF NOT EXISTS atoms_fts_ad AFTER DELETE ON atoms BEGIN
			INSERT INTO atoms_fts(atoms_fts, rowid, content, source)
			VALUES ('delete', old.rowid, old.content, old.source);
		END`,
		`CREATE TRIGGER IF NOT EXISTS atoms_fts_au AFTER UPDATE ON atoms BEGIN
			INSERT INTO atoms_fts(atoms_fts, rowid, content, source)
			VALUES ('delete', old.rowid, old.content, old.source);
			INSERT INTO atoms_fts(rowid, content, source)
			VALUES (new.rowid, new.content, new.source);
		END`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}
