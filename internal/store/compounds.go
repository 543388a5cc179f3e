package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"mnemo/internal/errors"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Compound bodies are stored zstd-compressed; they are written once by
// ingestion and read many times by inflation, and prose compresses well.

// GetCompound fetches a compound and its decompressed canonical body.
func (db *DB) GetCompound(ctx context.Context, id string) (*Compound, error) {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var (
		c    Compound
		blob []byte
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, source, body, body_len, created_at FROM compounds WHERE id = ?", id).
		Scan(&c.ID, &c.Source, &blob, &c.BodyLen, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CompoundMissing, fmt.Sprintf("compound %s", id), nil)
	}
	if err != nil {
		return nil, err
	}

	if len(blob) > 0 {
		body, err := zstdDecoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress compound %s: %w", id, err)
		}
		c.Body = string(body)
	}
	return &c, nil
}

// InsertCompound writes a compound, compressing its body. Used by ingestion
// tooling and tests.
func (db *DB) InsertCompound(c *Compound) error {
	if c.ID == "" {
		return errors.New(errors.InternalError, "compound id required", nil)
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	c.BodyLen = len(c.Body)

	var blob []byte
	if c.Body != "" {
		blob = zstdEncoder.EncodeAll([]byte(c.Body), nil)
	}

	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO compounds (id, source, body, body_len, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.Source, blob, c.BodyLen, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert compound: %w", err)
	}
	return nil
}
