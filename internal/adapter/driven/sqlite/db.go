// Package sqlite implements the persistence ports on an embedded SQLite
// database, for local runs without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// Connection limits. SQLite allows a single writer; crawls are sequential, so
// two readers are plenty for lookups.
const (
	maxWriterConns = 1
	maxReaderConns = 2
)

// DB provides separate writer and reader handles over one database file.
// WAL mode lets readers proceed while the writer holds a transaction.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// sqlitePragmas are applied to every connection of a file database.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// NewDB opens the database at dbPath with WAL mode, a busy timeout,
// synchronous NORMAL and foreign keys enforced. dbPath may carry its own
// URI parameters (e.g. "stars.db?cache=shared"); they are kept alongside the
// pragmas.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn, path, err := buildDSN(dbPath)
	if err != nil {
		return nil, err
	}
	return openDB(ctx, dsn, path)
}

// buildDSN merges the caller's URI parameters with the connection pragmas and
// returns the DSN together with the bare file path.
func buildDSN(dbPath string) (string, string, error) {
	path, rawQuery, _ := strings.Cut(dbPath, "?")
	if path == "" {
		return "", "", fmt.Errorf("sqlite path is required")
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", "", fmt.Errorf("parsing sqlite parameters %q: %w", rawQuery, err)
	}
	for _, pragma := range sqlitePragmas {
		params.Add("_pragma", pragma)
	}
	return "file:" + path + "?" + params.Encode(), path, nil
}

func openDB(ctx context.Context, dsn, path string) (*DB, error) {
	writer, err := openPool(ctx, dsn, maxWriterConns)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(ctx, dsn, maxReaderConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the database file the handles were opened on.
func (db *DB) Path() string {
	return db.path
}

// Ping reports whether the writer connection is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Writer.PingContext(ctx)
}

// Close closes both handles and joins their errors.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}
