package driven

import "time"

// CrawlRecorder receives crawl progress signals for metrics.
type CrawlRecorder interface {
	PageFetched(hits int)
	RepositoryRecorded()
	RetryScheduled(cause string, delay time.Duration)
	RateLimitWait(delay time.Duration)
	RunFinished(status string, collected int, elapsed time.Duration)
}

// NopRecorder discards every signal.
type NopRecorder struct{}

func (NopRecorder) PageFetched(int) {}
func (NopRecorder) RepositoryRecorded() {}
func (NopRecorder) RetryScheduled(string, time.Duration) {}
func (NopRecorder) RateLimitWait(time.Duration) {}
func (NopRecorder) RunFinished(string, int, time.Duration) {}
