package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// MaxPageSize is the largest page the search API serves.
const MaxPageSize = 100

// PageOptions bounds one walk over the search results.
type PageOptions struct {
	Query    string
	Target   int
	PageSize int
}

// PaginationResult describes how a walk ended. StopReason is informational.
type PaginationResult struct {
	Collected  int
	Pages      int
	StopReason model.StopReason
}

// HitFunc receives every yielded hit in order. Returning an error aborts the
// walk with that error.
type HitFunc func(ctx context.Context, hit model.SearchHit) error

// Paginator walks the cursor-based search stream one page at a time, pacing
// requests with a RateLimitGovernor.
type Paginator struct {
	client   driven.SearchClient
	governor *RateLimitGovernor
	recorder driven.CrawlRecorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// PaginatorOption customises a Paginator.
type PaginatorOption func(*Paginator)

// WithPageSleep replaces the context-aware sleep between pages.
func WithPageSleep(sleep func(ctx context.Context, d time.Duration) error) PaginatorOption {
	return func(p *Paginator) { p.sleep = sleep }
}

// NewPaginator creates a Paginator. A nil recorder disables metrics.
func NewPaginator(client driven.SearchClient, governor *RateLimitGovernor, recorder driven.CrawlRecorder, opts ...PaginatorOption) *Paginator {
	if recorder == nil {
		recorder = driven.NopRecorder{}
	}
	p := &Paginator{
		client:   client,
		governor: governor,
		recorder: recorder,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Walk requests pages until Target hits were yielded, the source reports no
// next page, a page comes back empty, or a response carries no data. The
// cursor lives only for the duration of the call and only moves forward: a
// next page without a fresh cursor ends the walk instead of restarting it.
func (p *Paginator) Walk(ctx context.Context, opts PageOptions, yield HitFunc) (PaginationResult, error) {
	var (
		result PaginationResult
		cursor string
	)

	for result.Collected < opts.Target {
		take := min(opts.PageSize, MaxPageSize, opts.Target-result.Collected)

		page, err := p.client.SearchRepositories(ctx, model.SearchRequest{
			Query: opts.Query,
			First: take,
			After: cursor,
		})
		if err != nil {
			return result, fmt.Errorf("fetching page %d: %w", result.Pages+1, err)
		}
		if page == nil {
			result.StopReason = model.StopNoData
			return result, nil
		}

		result.Pages++
		p.recorder.PageFetched(len(page.Hits))
		logPage(result.Pages, take, page, result.Collected)

		if len(page.Hits) == 0 {
			result.StopReason = model.StopEmptyPage
			return result, nil
		}

		for _, hit := range page.Hits {
			if err := yield(ctx, hit); err != nil {
				return result, err
			}
			result.Collected++
			if result.Collected >= opts.Target {
				result.StopReason = model.StopTargetReached
				return result, nil
			}
		}

		if !page.PageInfo.HasNextPage {
			result.StopReason = model.StopEndOfResults
			return result, nil
		}
		next := page.PageInfo.EndCursor
		if next == "" || next == cursor {
			slog.Warn("search reported a next page without a new cursor, stopping",
				"page", result.Pages,
				"cursor", cursor,
				"end_cursor", next,
			)
			result.StopReason = model.StopCursorStalled
			return result, nil
		}
		cursor = next

		wait := p.governor.Delay(page.RateLimit)
		p.recorder.RateLimitWait(wait)
		if err := p.sleep(ctx, wait); err != nil {
			return result, fmt.Errorf("waiting between pages: %w", err)
		}
	}

	result.StopReason = model.StopTargetReached
	return result, nil
}

func logPage(n, take int, page *model.SearchPage, collectedBefore int) {
	attrs := []any{
		"page", n,
		"take", take,
		"hits", len(page.Hits),
		"collected", collectedBefore,
		"repository_count", page.RepositoryCount,
		"has_next_page", page.PageInfo.HasNextPage,
	}
	if rl := page.RateLimit; rl != nil {
		attrs = append(attrs, "rate_remaining", rl.Remaining, "rate_reset_at", rl.ResetAt)
	}
	slog.Info("fetched search page", attrs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
