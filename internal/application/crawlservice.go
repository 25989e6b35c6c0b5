// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// ErrInvalidOptions is returned by Run before any network or store activity
// when the crawl options cannot describe a pass.
var ErrInvalidOptions = errors.New("invalid crawl options")

// CrawlOptions configures one crawl pass.
type CrawlOptions struct {
	Query          string
	Target         int
	PageSize       int
	QuotaPreflight bool
}

// Validate reports the first option that makes a pass impossible.
func (o CrawlOptions) Validate() error {
	switch {
	case o.Query == "":
		return fmt.Errorf("%w: search query is empty", ErrInvalidOptions)
	case o.Target <= 0:
		return fmt.Errorf("%w: target must be positive, got %d", ErrInvalidOptions, o.Target)
	case o.PageSize <= 0:
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidOptions, o.PageSize)
	}
	return nil
}

// CrawlSummary is the outcome of a finished pass.
type CrawlSummary struct {
	RunID      string
	Collected  int
	Pages      int
	StopReason model.StopReason
	Duration   time.Duration
}

// CrawlService runs one crawl pass: it prepares the schema, walks the search
// results, and records every repository with its star snapshot.
type CrawlService struct {
	search    driven.SearchClient
	quota     driven.QuotaClient
	schema    driven.SchemaMigrator
	repoStore driven.RepositoryStore
	runStore  driven.CrawlRunStore
	recorder  driven.CrawlRecorder
	governor  *RateLimitGovernor
	opts      CrawlOptions

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// CrawlServiceOption customises a CrawlService.
type CrawlServiceOption func(*CrawlService)

// WithGovernor replaces the default rate-limit governor.
func WithGovernor(g *RateLimitGovernor) CrawlServiceOption {
	return func(s *CrawlService) { s.governor = g }
}

// WithSleep replaces the context-aware sleep used for pacing.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) CrawlServiceOption {
	return func(s *CrawlService) { s.sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CrawlServiceOption {
	return func(s *CrawlService) { s.now = now }
}

// WithRecorder reports crawl progress to rec.
func WithRecorder(rec driven.CrawlRecorder) CrawlServiceOption {
	return func(s *CrawlService) { s.recorder = rec }
}

// WithQuotaClient enables the quota preflight against q.
func WithQuotaClient(q driven.QuotaClient) CrawlServiceOption {
	return func(s *CrawlService) { s.quota = q }
}

// NewCrawlService creates a new CrawlService with all required dependencies.
func NewCrawlService(
	search driven.SearchClient,
	schema driven.SchemaMigrator,
	repoStore driven.RepositoryStore,
	runStore driven.CrawlRunStore,
	opts CrawlOptions,
	options ...CrawlServiceOption,
) *CrawlService {
	s := &CrawlService{
		search:    search,
		schema:    schema,
		repoStore: repoStore,
		runStore:  runStore,
		recorder:  driven.NopRecorder{},
		governor:  NewRateLimitGovernor(),
		opts:      opts,
		sleep:     sleepContext,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run executes one pass. Any failure after validation marks the crawl run
// as failed; a rerun always starts from the first page.
func (s *CrawlService) Run(ctx context.Context) (*CrawlSummary, error) {
	if err := s.opts.Validate(); err != nil {
		return nil, err
	}

	if err := s.schema.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	if err := s.preflight(ctx); err != nil {
		return nil, err
	}

	run := model.CrawlRun{
		ID:        s.newID(),
		Query:     s.opts.Query,
		Target:    s.opts.Target,
		StartedAt: s.now().UTC(),
		Status:    model.CrawlStatusRunning,
	}
	if err := s.runStore.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("starting crawl run: %w", err)
	}

	slog.Info("crawl started",
		"run_id", run.ID,
		"query", run.Query,
		"target", run.Target,
		"page_size", s.opts.PageSize,
	)

	paginator := NewPaginator(s.search, s.governor, s.recorder, WithPageSleep(s.sleep))
	result, walkErr := paginator.Walk(ctx, PageOptions{
		Query:    s.opts.Query,
		Target:   s.opts.Target,
		PageSize: s.opts.PageSize,
	}, s.recordHit)

	run.FinishedAt = s.now().UTC()
	run.Collected = result.Collected
	run.StopReason = result.StopReason
	run.Status = model.CrawlStatusCompleted
	if walkErr != nil {
		run.Status = model.CrawlStatusFailed
		run.Error = walkErr.Error()
	}
	elapsed := run.FinishedAt.Sub(run.StartedAt)
	s.recorder.RunFinished(string(run.Status), run.Collected, elapsed)

	// The run row is closed even when ctx was cancelled.
	finishErr := s.runStore.FinishRun(context.WithoutCancel(ctx), run)

	if walkErr != nil {
		if finishErr != nil {
			slog.Error("failed to record crawl run outcome", "run_id", run.ID, "error", finishErr)
		}
		return nil, fmt.Errorf("crawl run %s: %w", run.ID, walkErr)
	}
	if finishErr != nil {
		return nil, fmt.Errorf("finishing crawl run %s: %w", run.ID, finishErr)
	}

	slog.Info("crawl finished",
		"run_id", run.ID,
		"collected", result.Collected,
		"pages", result.Pages,
		"stop_reason", result.StopReason,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return &CrawlSummary{
		RunID:      run.ID,
		Collected:  result.Collected,
		Pages:      result.Pages,
		StopReason: result.StopReason,
		Duration:   elapsed,
	}, nil
}

// recordHit persists one repository together with today's star snapshot.
func (s *CrawlService) recordHit(ctx context.Context, hit model.SearchHit) error {
	now := s.now().UTC()
	repo := hit.Repository
	repo.LastCrawledAt = now

	if _, err := s.repoStore.RecordObservation(ctx, repo, hit.Stargazers, model.SnapshotDay(now)); err != nil {
		return fmt.Errorf("recording %s: %w", repo.FullName, err)
	}
	s.recorder.RepositoryRecorded()
	return nil
}

// preflight logs the GraphQL budget and, when it is already low, waits as
// the governor instructs before the first page. A failed lookup is not fatal.
func (s *CrawlService) preflight(ctx context.Context) error {
	if !s.opts.QuotaPreflight || s.quota == nil {
		return nil
	}

	rl, err := s.quota.FetchRateLimit(ctx)
	if err != nil {
		slog.Warn("quota preflight failed, continuing", "error", err)
		return nil
	}
	if rl == nil {
		return nil
	}

	slog.Info("github graphql quota",
		"limit", rl.Limit,
		"remaining", rl.Remaining,
		"used", rl.Used,
		"reset_at", rl.ResetAt,
	)

	if rl.Remaining >= s.governor.lowWaterMark {
		return nil
	}

	wait := s.governor.Delay(rl)
	s.recorder.RateLimitWait(wait)
	if err := s.sleep(ctx, wait); err != nil {
		return fmt.Errorf("waiting for quota reset: %w", err)
	}
	return nil
}
