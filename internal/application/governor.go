package application

import (
	"log/slog"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

// Rate-limit pacing defaults.
const (
	DefaultLowWaterMark      = 10
	DefaultInterRequestDelay = 300 * time.Millisecond
	defaultResetMargin       = time.Second
	defaultUnknownResetWait  = 60 * time.Second
)

// RateLimitGovernor turns the rate-limit state of the last response into the
// pause required before the next request. It never fails: missing data means
// the normal inter-request delay.
type RateLimitGovernor struct {
	lowWaterMark     int
	interRequest     time.Duration
	resetMargin      time.Duration
	unknownResetWait time.Duration
	now              func() time.Time
}

// GovernorOption customises a RateLimitGovernor.
type GovernorOption func(*RateLimitGovernor)

// WithLowWaterMark sets the remaining budget below which the governor waits
// for the window to reset.
func WithLowWaterMark(n int) GovernorOption {
	return func(g *RateLimitGovernor) { g.lowWaterMark = n }
}

// WithInterRequestDelay sets the pause used while the budget is healthy.
func WithInterRequestDelay(d time.Duration) GovernorOption {
	return func(g *RateLimitGovernor) { g.interRequest = d }
}

// WithGovernorClock replaces time.Now.
func WithGovernorClock(now func() time.Time) GovernorOption {
	return func(g *RateLimitGovernor) { g.now = now }
}

// NewRateLimitGovernor creates a governor with the default thresholds.
func NewRateLimitGovernor(opts ...GovernorOption) *RateLimitGovernor {
	g := &RateLimitGovernor{
		lowWaterMark:     DefaultLowWaterMark,
		interRequest:     DefaultInterRequestDelay,
		resetMargin:      defaultResetMargin,
		unknownResetWait: defaultUnknownResetWait,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Delay returns how long to wait before the next request.
//
// Below the low-water mark it waits until the reset instant plus a margin, or
// a fixed minute when the reset is unknown. A reset already in the past falls
// back to the inter-request delay.
func (g *RateLimitGovernor) Delay(rl *model.RateLimit) time.Duration {
	if rl == nil || rl.Remaining >= g.lowWaterMark {
		return g.interRequest
	}

	if !rl.HasReset() {
		slog.Warn("github rate limit low, reset unknown",
			"remaining", rl.Remaining,
			"wait", g.unknownResetWait,
		)
		return g.unknownResetWait
	}

	untilReset := rl.ResetAt.Sub(g.now())
	if untilReset <= 0 {
		return g.interRequest
	}

	wait := untilReset + g.resetMargin
	slog.Warn("github rate limit low, waiting for reset",
		"remaining", rl.Remaining,
		"reset_at", rl.ResetAt,
		"wait", wait.Round(time.Second),
	)
	return wait
}
