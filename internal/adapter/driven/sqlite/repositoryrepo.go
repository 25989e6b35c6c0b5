package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryStore = (*RepositoryRepo)(nil)

// dateLayout is how snapshot dates are stored.
const dateLayout = "2006-01-02"

// RepositoryRepo is the SQLite implementation of the RepositoryStore port.
type RepositoryRepo struct {
	db *DB
}

// NewRepositoryRepo creates a new RepositoryRepo backed by the given DB.
func NewRepositoryRepo(db *DB) *RepositoryRepo {
	return &RepositoryRepo{db: db}
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpsertRepository merges repo on full_name. Known github_id, description,
// primary_language and updated_at values survive a null in the new row.
func (r *RepositoryRepo) UpsertRepository(ctx context.Context, repo model.Repository) (int64, error) {
	return upsertRepository(ctx, r.db.Writer, repo)
}

// AppendSnapshot inserts one star observation. It never merges.
func (r *RepositoryRepo) AppendSnapshot(ctx context.Context, snapshot model.StarSnapshot) error {
	return appendSnapshot(ctx, r.db.Writer, snapshot)
}

// RecordObservation upserts the repository and appends its snapshot in one
// transaction.
func (r *RepositoryRepo) RecordObservation(ctx context.Context, repo model.Repository, stargazers int, day time.Time) (int64, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	id, err := upsertRepository(ctx, tx, repo)
	if err != nil {
		return 0, err
	}

	if err := appendSnapshot(ctx, tx, model.StarSnapshot{
		RepositoryID: id,
		SnapshotDate: day,
		Stargazers:   stargazers,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit observation for %s: %w", repo.FullName, err)
	}

	return id, nil
}

// GetByFullName returns driven.ErrRepoNotFound if no row matches.
func (r *RepositoryRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	const query = `
		SELECT id, github_id, full_name, name, owner, url, description,
		       primary_language, created_at, updated_at, last_crawled_at
		FROM repositories
		WHERE full_name = ?
	`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrRepoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// SnapshotsFor returns the stored observations of a repository, oldest first.
func (r *RepositoryRepo) SnapshotsFor(ctx context.Context, repositoryID int64) ([]model.StarSnapshot, error) {
	const query = `
		SELECT id, repository_id, snapshot_date, stargazers_count
		FROM stars_snapshots
		WHERE repository_id = ?
		ORDER BY snapshot_date, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for repository %d: %w", repositoryID, err)
	}
	defer rows.Close()

	var snapshots []model.StarSnapshot
	for rows.Next() {
		var s model.StarSnapshot
		var day string
		if err := rows.Scan(&s.ID, &s.RepositoryID, &day, &s.Stargazers); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.SnapshotDate, err = time.Parse(dateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot_date: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}

func upsertRepository(ctx context.Context, q execQuerier, repo model.Repository) (int64, error) {
	const query = `
		INSERT INTO repositories (
			github_id, full_name, name, owner, url, description,
			primary_language, created_at, updated_at, last_crawled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			github_id = COALESCE(excluded.github_id, repositories.github_id),
			description = COALESCE(excluded.description, repositories.description),
			primary_language = COALESCE(excluded.primary_language, repositories.primary_language),
			updated_at = COALESCE(excluded.updated_at, repositories.updated_at),
			last_crawled_at = excluded.last_crawled_at
		RETURNING id
	`

	var id int64
	err := q.QueryRowContext(ctx, query,
		repo.GitHubID, repo.FullName, repo.Name, repo.Owner, repo.URL, repo.Description,
		repo.PrimaryLanguage, formatTimePtr(repo.CreatedAt), formatTimePtr(repo.UpdatedAt),
		formatTime(repo.LastCrawledAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}

	return id, nil
}

func appendSnapshot(ctx context.Context, q execQuerier, snapshot model.StarSnapshot) error {
	const query = `
		INSERT INTO stars_snapshots (repository_id, snapshot_date, stargazers_count)
		VALUES (?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		snapshot.RepositoryID,
		model.SnapshotDay(snapshot.SnapshotDate).Format(dateLayout),
		snapshot.Stargazers,
	)
	if err != nil {
		return fmt.Errorf("append snapshot for repository %d: %w", snapshot.RepositoryID, err)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var githubID sql.NullInt64
	var description, language, createdAt, updatedAt sql.NullString
	var lastCrawledAt string

	err := s.Scan(
		&repo.ID, &githubID, &repo.FullName, &repo.Name, &repo.Owner, &repo.URL, &description,
		&language, &createdAt, &updatedAt, &lastCrawledAt,
	)
	if err != nil {
		return nil, err
	}

	if githubID.Valid {
		repo.GitHubID = &githubID.Int64
	}
	if description.Valid {
		repo.Description = &description.String
	}
	if language.Valid {
		repo.PrimaryLanguage = &language.String
	}
	if repo.CreatedAt, err = parseNullTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if repo.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if repo.LastCrawledAt, err = parseTime(lastCrawledAt); err != nil {
		return nil, fmt.Errorf("parse last_crawled_at: %w", err)
	}

	return &repo, nil
}
