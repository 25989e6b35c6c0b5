package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CrawlRunStore = (*CrawlRunRepo)(nil)

// CrawlRunRepo implements driven.CrawlRunStore using PostgreSQL.
type CrawlRunRepo struct {
	db *DB
}

// NewCrawlRunRepo creates a new CrawlRunRepo backed by the given DB.
func NewCrawlRunRepo(db *DB) *CrawlRunRepo {
	return &CrawlRunRepo{db: db}
}

// StartRun inserts the row for a pass that is about to begin.
func (r *CrawlRunRepo) StartRun(ctx context.Context, run model.CrawlRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("parse crawl run id %q: %w", run.ID, err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO crawl_runs (id, query, target, started_at, status)
		VALUES ($1, $2, $3, $4, $5)`,
		id, run.Query, run.Target, run.StartedAt, string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("insert crawl run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a pass.
func (r *CrawlRunRepo) FinishRun(ctx context.Context, run model.CrawlRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("parse crawl run id %q: %w", run.ID, err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		UPDATE crawl_runs
		SET finished_at = $1, status = $2, collected = $3, stop_reason = $4, error = $5
		WHERE id = $6`,
		run.FinishedAt, string(run.Status), run.Collected, nullIfEmpty(string(run.StopReason)), nullIfEmpty(run.Error), id,
	)
	if err != nil {
		return fmt.Errorf("update crawl run: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
