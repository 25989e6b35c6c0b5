package model

import "time"

// CrawlStatus represents the lifecycle state of a crawl pass.
type CrawlStatus string

const (
	CrawlStatusRunning   CrawlStatus = "running"
	CrawlStatusCompleted CrawlStatus = "completed"
	CrawlStatusFailed    CrawlStatus = "failed"
)

// StopReason records why pagination ended.
type StopReason string

const (
	StopTargetReached StopReason = "target_reached"
	StopEndOfResults  StopReason = "end_of_results"
	StopEmptyPage     StopReason = "empty_page"
	StopNoData        StopReason = "no_data"
	// StopCursorStalled means the source claimed a next page but returned no
	// new cursor to reach it.
	StopCursorStalled StopReason = "cursor_stalled"
)

// CrawlRun is the bookkeeping row written for every crawl pass.
type CrawlRun struct {
	ID         string
	Query      string
	Target     int
	StartedAt  time.Time
	FinishedAt time.Time
	Status     CrawlStatus
	Collected  int
	StopReason StopReason
	Error      string
}
