package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time interface satisfaction check.
var _ driven.SchemaMigrator = (*DB)(nil)

// EnsureSchema applies all pending migrations embedded in the binary.
// It is safe to call on every startup; already-applied migrations are skipped.
func (db *DB) EnsureSchema(_ context.Context) error {
	return RunMigrations(db.dsn)
}

// RunMigrations applies the embedded migrations against dsn.
func RunMigrations(dsn string) error {
	migrateURL, err := migrateDSN(dsn)
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, migrateURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// migrateDSN rewrites a postgres:// URL to the pgx5:// scheme the migrate
// driver registers.
func migrateDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported postgres dsn scheme %q", u.Scheme)
	}
	return u.String(), nil
}
