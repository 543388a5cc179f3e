package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mnemo/internal/errors"
)

// atomColumns is the full column list selected for every atom read.
const atomColumns = `a.id, a.content, a.source, a.compound_id, a.start_byte, a.end_byte,
	a.fingerprint, a.created_at, a.provenance, a.atom_type, a.value, a.unit, a.seq`

func scanAtom(rows *sql.Rows, extra ...interface{}) (*Atom, error) {
	var (
		a          Atom
		compoundID sql.NullString
		value      sql.NullFloat64
		unit       sql.NullString
		seq        sql.NullInt64
	)
	dest := []interface{}{
		&a.ID, &a.Content, &a.Source, &compoundID, &a.StartByte, &a.EndByte,
		&a.Fingerprint, &a.CreatedAt, &a.Provenance, &a.Type, &value, &unit, &seq,
	}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	a.CompoundID = compoundID.String
	if value.Valid {
		v := value.Float64
		a.Value = &v
	}
	a.Unit = unit.String
	if seq.Valid {
		s := int(seq.Int64)
		a.Seq = &s
	}
	return &a, nil
}

// attachTagsAndBuckets loads the tag and bucket sets for a batch of atoms.
func (db *DB) attachTagsAndBuckets(ctx context.Context, atoms []Atom) error {
	if len(atoms) == 0 {
		return nil
	}
	byID := make(map[string]*Atom, len(atoms))
	ids := make([]string, len(atoms))
	for i := range atoms {
		byID[atoms[i].ID] = &atoms[i]
		ids[i] = atoms[i].ID
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	ph := placeholders(len(ids))

	tagRows, err := db.conn.QueryContext(ctx,
		"SELECT atom_id, tag FROM atom_tags WHERE atom_id IN ("+ph+") ORDER BY tag", args...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return err
		}
		if a := byID[id]; a != nil {
			a.Tags = append(a.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return err
	}

	bucketRows, err := db.conn.QueryContext(ctx,
		"SELECT atom_id, bucket FROM atom_buckets WHERE atom_id IN ("+ph+") ORDER BY bucket", args...)
	if err != nil {
		return fmt.Errorf("load buckets: %w", err)
	}
	defer bucketRows.Close()
	for bucketRows.Next() {
		var id, bucket string
		if err := bucketRows.Scan(&id, &bucket); err != nil {
			return err
		}
		if a := byID[id]; a != nil {
			a.Buckets = append(a.Buckets, bucket)
		}
	}
	return bucketRows.Err()
}

func (db *DB) collectAtoms(ctx context.Context, query string, args ...interface{}) ([]Atom, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atoms []Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.attachTagsAndBuckets(ctx, atoms); err != nil {
		return nil, err
	}
	return atoms, nil
}

// AtomsByIDs fetches atoms by id. Missing ids are silently skipped; the
// result order follows the input order.
func (db *DB) AtomsByIDs(ctx context.Context, ids []string) ([]Atom, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	atoms, err := db.collectAtoms(ctx,
		"SELECT "+atomColumns+" FROM atoms a WHERE a.id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Atom, len(atoms))
	for _, a := range atoms {
		byID[a.ID] = a
	}
	ordered := make([]Atom, 0, len(atoms))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// AtomsSharingTags fetches atoms sharing at least one of the given tags,
// excluding the listed ids, most recent first.
func (db *DB) AtomsSharingTags(ctx context.Context, tags []string, excludeIDs []string, limit int) ([]Atom, error) {
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	query := "SELECT DISTINCT " + atomColumns + ` FROM atoms a
		JOIN atom_tags t ON t.atom_id = a.id
		WHERE t.tag IN (` + placeholders(len(tags)) + `)`
	var args []interface{}
	for _, tag := range tags {
		args = append(args, tag)
	}
	if len(excludeIDs) > 0 {
		query += " AND a.id NOT IN (" + placeholders(len(excludeIDs)) + ")"
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY a.created_at DESC LIMIT ?"
	args = append(args, limit)

	return db.collectAtoms(ctx, query, args...)
}

// AtomsNear fetches atoms of the same compound whose byte ranges fall within
// pad bytes of [start, end), excluding the listed ids.
func (db *DB) AtomsNear(ctx context.Context, compoundID string, start, end, pad int, excludeIDs []string) ([]Atom, error) {
	if compoundID == "" {
		return nil, nil
	}
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	query := "SELECT " + atomColumns + ` FROM atoms a
		WHERE a.compound_id = ?
		  AND a.start_byte >= 0
		  AND a.end_byte > ?
		  AND a.start_byte < ?`
	args := []interface{}{compoundID, start - pad, end + pad}
	if len(excludeIDs) > 0 {
		query += " AND a.id NOT IN (" + placeholders(len(excludeIDs)) + ")"
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY a.start_byte"

	return db.collectAtoms(ctx, query, args...)
}

// InsertAtom writes an atom and its tag/bucket sets. Used by ingestion
// tooling and tests; the retrieval core never calls it.
func (db *DB) InsertAtom(a *Atom) error {
	if a.ID == "" {
		return errors.New(errors.InternalError, "atom id required", nil)
	}
	rangeAbsent := a.StartByte < 0 && a.EndByte <= 0
	if !rangeAbsent && !(a.StartByte >= 0 && a.StartByte < a.EndByte) {
		return errors.New(errors.InvalidRange,
			fmt.Sprintf("atom %s byte range [%d, %d)", a.ID, a.StartByte, a.EndByte), nil)
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	if a.Provenance == "" {
		a.Provenance = ProvInternal
	}
	if a.Type == "" {
		a.Type = TypeProse
	}
	if rangeAbsent {
		a.StartByte, a.EndByte = -1, -1
	}

	var compoundID interface{}
	if a.CompoundID != "" {
		compoundID = a.CompoundID
	}
	var value interface{}
	if a.Value != nil {
		value = *a.Value
	}
	var seq interface{}
	if a.Seq != nil {
		seq = *a.Seq
	}

	_, err := db.conn.Exec(`
		INSERT INTO atoms (id, content, source, compound_id, start_byte, end_byte,
			fingerprint, created_at, provenance, atom_type, value, unit, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Content, a.Source, compoundID, a.StartByte, a.EndByte,
		a.Fingerprint, a.CreatedAt, string(a.Provenance), string(a.Type),
		value, nullIfEmpty(a.Unit), seq)
	if err != nil {
		return fmt.Errorf("insert atom: %w", err)
	}

	for _, tag := range a.Tags {
		if _, err := db.conn.Exec(
			"INSERT OR IGNORE INTO atom_tags (atom_id, tag) VALUES (?, ?)", a.ID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	for _, bucket := range a.Buckets {
		if _, err := db.conn.Exec(
			"INSERT OR IGNORE INTO atom_buckets (atom_id, bucket) VALUES (?, ?)", a.ID, bucket); err != nil {
			return fmt.Errorf("insert bucket: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
