package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryStore = (*RepositoryRepo)(nil)

const upsertRepositorySQL = `
	INSERT INTO repositories (
		github_id, full_name, name, owner, url, description,
		primary_language, created_at, updated_at, last_crawled_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (full_name) DO UPDATE SET
		github_id = COALESCE(EXCLUDED.github_id, repositories.github_id),
		description = COALESCE(EXCLUDED.description, repositories.description),
		primary_language = COALESCE(EXCLUDED.primary_language, repositories.primary_language),
		updated_at = COALESCE(EXCLUDED.updated_at, repositories.updated_at),
		last_crawled_at = EXCLUDED.last_crawled_at
	RETURNING id`

const insertSnapshotSQL = `
	INSERT INTO stars_snapshots (repository_id, snapshot_date, stargazers_count)
	VALUES ($1, $2, $3)`

const selectRepositorySQL = `
	SELECT id, github_id, full_name, name, owner, url, description,
		primary_language, created_at, updated_at, last_crawled_at
	FROM repositories
	WHERE full_name = $1`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RepositoryRepo implements driven.RepositoryStore using PostgreSQL.
type RepositoryRepo struct {
	db *DB
}

// NewRepositoryRepo creates a new RepositoryRepo backed by the given DB.
func NewRepositoryRepo(db *DB) *RepositoryRepo {
	return &RepositoryRepo{db: db}
}

// UpsertRepository merges repo on its full name and returns the row id.
func (r *RepositoryRepo) UpsertRepository(ctx context.Context, repo model.Repository) (int64, error) {
	return upsertRepository(ctx, r.db.Pool, repo)
}

// AppendSnapshot adds one star observation row. Repeated calls add repeated rows.
func (r *RepositoryRepo) AppendSnapshot(ctx context.Context, snapshot model.StarSnapshot) error {
	return appendSnapshot(ctx, r.db.Pool, snapshot)
}

// RecordObservation upserts repo and appends its snapshot for day in one
// transaction. Either both rows are written or neither is.
func (r *RepositoryRepo) RecordObservation(ctx context.Context, repo model.Repository, stargazers int, day time.Time) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback after commit is a no-op.

	id, err := upsertRepository(ctx, tx, repo)
	if err != nil {
		return 0, err
	}

	if err := appendSnapshot(ctx, tx, model.StarSnapshot{
		RepositoryID: id,
		SnapshotDate: model.SnapshotDay(day),
		Stargazers:   stargazers,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit observation for %s: %w", repo.FullName, err)
	}

	return id, nil
}

// GetByFullName returns the stored repository or driven.ErrRepoNotFound.
func (r *RepositoryRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	var repo model.Repository
	err := r.db.Pool.QueryRow(ctx, selectRepositorySQL, fullName).Scan(
		&repo.ID,
		&repo.GitHubID,
		&repo.FullName,
		&repo.Name,
		&repo.Owner,
		&repo.URL,
		&repo.Description,
		&repo.PrimaryLanguage,
		&repo.CreatedAt,
		&repo.UpdatedAt,
		&repo.LastCrawledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, driven.ErrRepoNotFound
		}
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return &repo, nil
}

func upsertRepository(ctx context.Context, q querier, repo model.Repository) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, upsertRepositorySQL,
		repo.GitHubID,
		repo.FullName,
		repo.Name,
		repo.Owner,
		repo.URL,
		repo.Description,
		repo.PrimaryLanguage,
		repo.CreatedAt,
		repo.UpdatedAt,
		repo.LastCrawledAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}
	return id, nil
}

func appendSnapshot(ctx context.Context, q querier, snapshot model.StarSnapshot) error {
	_, err := q.Exec(ctx, insertSnapshotSQL,
		snapshot.RepositoryID,
		model.SnapshotDay(snapshot.SnapshotDate),
		snapshot.Stargazers,
	)
	if err != nil {
		return fmt.Errorf("append snapshot for repository %d: %w", snapshot.RepositoryID, err)
	}
	return nil
}
