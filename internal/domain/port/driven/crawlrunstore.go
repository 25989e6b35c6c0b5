package driven

import (
	"context"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

// CrawlRunStore records the start and outcome of each crawl pass.
type CrawlRunStore interface {
	StartRun(ctx context.Context, run model.CrawlRun) error
	FinishRun(ctx context.Context, run model.CrawlRun) error
}
