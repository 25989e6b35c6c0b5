// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

// SearchClient defines the driven port for the remote repository search.
// Implementations absorb transient failures internally; a returned error is
// terminal for the crawl pass. A nil page with a nil error means the remote
// returned no decodable data and the stream should be treated as finished.
type SearchClient interface {
	SearchRepositories(ctx context.Context, req model.SearchRequest) (*model.SearchPage, error)
}

// QuotaClient reports the remaining search budget before a pass starts.
type QuotaClient interface {
	FetchRateLimit(ctx context.Context) (*model.RateLimit, error)
}
