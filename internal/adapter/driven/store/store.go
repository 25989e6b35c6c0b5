// Package store opens the persistence backend selected by configuration and
// exposes it through the driven ports.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/stargazer/internal/adapter/driven/postgres"
	"github.com/ericfisherdev/stargazer/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/stargazer/internal/config"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// backend is what both database handles provide beyond the repositories.
type backend interface {
	driven.SchemaMigrator
	Ping(ctx context.Context) error
	Close() error
}

// Store bundles the repositories of one open backend.
type Store struct {
	Kind    config.StoreKind
	Schema  driven.SchemaMigrator
	Repos   driven.RepositoryStore
	Runs    driven.CrawlRunStore
	backend backend
}

// Open connects to the backend of the given kind. target is a Postgres DSN or
// a SQLite file path.
func Open(ctx context.Context, kind config.StoreKind, target string) (*Store, error) {
	switch kind {
	case config.StorePostgres:
		db, err := postgres.NewDB(ctx, postgres.Config{DSN: target})
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "kind", kind)
		return &Store{
			Kind:    kind,
			Schema:  db,
			Repos:   postgres.NewRepositoryRepo(db),
			Runs:    postgres.NewCrawlRunRepo(db),
			backend: db,
		}, nil

	case config.StoreSQLite:
		db, err := sqlite.NewDB(ctx, target)
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "kind", kind, "path", db.Path())
		return &Store{
			Kind:    kind,
			Schema:  db,
			Repos:   sqlite.NewRepositoryRepo(db),
			Runs:    sqlite.NewCrawlRunRepo(db),
			backend: db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// Ping reports whether the backend answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.Kind, err)
	}
	return nil
}

// Close releases the backend's connections.
func (s *Store) Close() error {
	return s.backend.Close()
}
