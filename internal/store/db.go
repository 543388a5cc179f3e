package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"mnemo/internal/logging"
)

// DB wraps the SQLite connection holding the ingested corpus.
type DB struct {
	conn    *sql.DB
	logger  *logging.Logger
	dbPath  string
	timeout time.Duration
}

// Open opens (or creates) the corpus database at the given path.
func Open(path string, logger *logging.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, logger: logger, dbPath: path, timeout: 5 * time.Second}
	if err := db.setup(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens an in-memory database. Intended for tests.
func OpenMemory(logger *logging.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	// A single connection keeps the in-memory database alive and visible.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger, dbPath: ":memory:", timeout: 5 * time.Second}
	if err := db.setup(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) setup() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",    // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL",  // Balance between safety and performance
		"PRAGMA foreign_keys=ON",     // Enable foreign key constraints
		"PRAGMA busy_timeout=5000",   // Wait up to 5 seconds on lock
		"PRAGMA cache_size=-64000",   // 64MB cache
		"PRAGMA temp_store=MEMORY",   // Use memory for temp tables
	}
	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("set pragma: %w", err)
		}
	}
	return db.initializeSchema()
}

// SetQueryTimeout overrides the per-call timeout applied by queryContext.
func (db *DB) SetQueryTimeout(d time.Duration) {
	if d > 0 {
		db.timeout = d
	}
}

// queryContext derives the bounded context every store query runs under.
// Callers that already carry a deadline keep the tighter of the two.
func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

// Conn exposes the raw connection for diagnostics.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.dbPath
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
