package store

import (
	"context"

	"mnemo/internal/fingerprint"
)

// EngramAtomIDs resolves a normalized lookup key to the atom ids the engram
// index associates with it. An unknown key returns an empty list.
func (db *DB) EngramAtomIDs(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT atom_id FROM engrams WHERE key_hash = ? ORDER BY atom_id",
		fingerprint.KeyHash(key))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertEngram associates a normalized key with an atom id. Used by the
// out-of-band indexer and tests.
func (db *DB) InsertEngram(key, atomID string) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO engrams (key_hash, atom_id) VALUES (?, ?)",
		fingerprint.KeyHash(key), atomID)
	return err
}
