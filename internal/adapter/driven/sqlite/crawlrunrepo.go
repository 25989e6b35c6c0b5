package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CrawlRunStore = (*CrawlRunRepo)(nil)

// CrawlRunRepo is the SQLite implementation of the CrawlRunStore port.
type CrawlRunRepo struct {
	db *DB
}

// NewCrawlRunRepo creates a new CrawlRunRepo backed by the given DB.
func NewCrawlRunRepo(db *DB) *CrawlRunRepo {
	return &CrawlRunRepo{db: db}
}

// StartRun inserts the row for a pass that is about to begin.
func (r *CrawlRunRepo) StartRun(ctx context.Context, run model.CrawlRun) error {
	const query = `
		INSERT INTO crawl_runs (id, query, target, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID, run.Query, run.Target, formatTime(run.StartedAt), string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("insert crawl run %s: %w", run.ID, err)
	}

	return nil
}

// FinishRun records the outcome of a pass.
func (r *CrawlRunRepo) FinishRun(ctx context.Context, run model.CrawlRun) error {
	const query = `
		UPDATE crawl_runs
		SET finished_at = ?, status = ?, collected = ?, stop_reason = ?, error = ?
		WHERE id = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		formatTime(run.FinishedAt), string(run.Status), run.Collected,
		nullString(string(run.StopReason)), nullString(run.Error), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update crawl run %s: %w", run.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update crawl run %s: no such run", run.ID)
	}

	return nil
}

// GetRun returns the stored run, or nil if it does not exist.
func (r *CrawlRunRepo) GetRun(ctx context.Context, id string) (*model.CrawlRun, error) {
	const query = `
		SELECT id, query, target, started_at, finished_at, status, collected, stop_reason, error
		FROM crawl_runs
		WHERE id = ?
	`

	var run model.CrawlRun
	var startedAt string
	var finishedAt, stopReason, errText sql.NullString
	var status string

	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Query, &run.Target, &startedAt, &finishedAt,
		&status, &run.Collected, &stopReason, &errText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl run %s: %w", id, err)
	}

	run.Status = model.CrawlStatus(status)
	run.StopReason = model.StopReason(stopReason.String)
	run.Error = errText.String

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	finished, err := parseNullTime(finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if finished != nil {
		run.FinishedAt = *finished
	}

	return &run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
