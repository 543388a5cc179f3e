package store

import (
	"context"
	"math"
	"strings"

	"mnemo/internal/errors"
)

// ftsVariant is one form of the full-text search query. The rich variant
// joins byte-offset and type metadata; the fallback variant selects safe
// defaults instead, surviving corpora ingested before those columns existed.
// Variants are tried in declaration order and the first that executes wins.
type ftsVariant struct {
	name string
	sql  string
}

var ftsVariants = []ftsVariant{
	{
		name: "rich",
		sql: `SELECT ` + atomColumns + `, bm25(atoms_fts) AS rank
			FROM atoms_fts f
			JOIN atoms a ON a.rowid = f.rowid
			WHERE atoms_fts MATCH ? AND %s
			ORDER BY rank LIMIT ?`,
	},
	{
		name: "fallback",
		sql: `SELECT a.id, a.content, a.source, a.compound_id, -1, -1,
				a.fingerprint, a.created_at, a.provenance, 'prose',
				NULL, NULL, NULL, bm25(atoms_fts) AS rank
			FROM atoms_fts f
			JOIN atoms a ON a.rowid = f.rowid
			WHERE atoms_fts MATCH ? AND %s
			ORDER BY rank LIMIT ?`,
	},
}

// SearchAtoms runs a full-text relevance search. Each returned atom carries
// its raw relevance in Score, normalized to [0, 1); callers apply their own
// tier weighting on top.
func (db *DB) SearchAtoms(ctx context.Context, query string, filters Filters, limit int) ([]Atom, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	filterSQL, filterArgs := Compile(filters.Predicate())

	var lastErr error
	for _, variant := range ftsVariants {
		sqlText := strings.Replace(variant.sql, "%s", filterSQL, 1)
		args := append([]interface{}{match}, filterArgs...)
		args = append(args, limit)

		atoms, err := db.searchVariant(ctx, sqlText, args)
		if err != nil {
			lastErr = err
			db.logger.Debug("FTS variant failed", map[string]interface{}{
				"variant": variant.name,
				"error":   err.Error(),
			})
			continue
		}
		return atoms, nil
	}
	return nil, errors.New(errors.SchemaMismatch, "all FTS query variants failed", lastErr)
}

func (db *DB) searchVariant(ctx context.Context, sqlText string, args []interface{}) ([]Atom, error) {
	rows, err := db.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atoms []Atom
	for rows.Next() {
		var rank float64
		a, err := scanAtom(rows, &rank)
		if err != nil {
			return nil, err
		}
		a.Score = rankToRelevance(rank)
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

// rankToRelevance maps an FTS5 bm25 rank (more negative = better) onto
// [0, 1), higher = better.
func rankToRelevance(rank float64) float64 {
	mag := math.Abs(rank)
	return mag / (1 + mag)
}

// matchExpression builds an FTS5 MATCH expression that ORs the query terms,
// each quoted so punctuation cannot reach the FTS parser.
func matchExpression(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}
