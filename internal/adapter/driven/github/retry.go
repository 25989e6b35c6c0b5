package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Default retry schedule. Every failure class shares one schedule so the
// waits between attempts never shrink.
const (
	DefaultMaxAttempts = 6
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultJitter      = 200 * time.Millisecond
)

// Retrier runs an operation up to MaxAttempts times with capped exponential
// backoff plus jitter. A Retrier is immutable once built and safe to reuse
// for every call.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      time.Duration

	sleep    func(ctx context.Context, d time.Duration) error
	randomIn func(limit time.Duration) time.Duration
	recorder driven.CrawlRecorder
}

// RetrierOption customises a Retrier.
type RetrierOption func(*Retrier)

// WithSchedule overrides the base delay, the delay cap and the jitter bound.
func WithSchedule(base, maxDelay, jitter time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.baseDelay = base
		r.maxDelay = maxDelay
		r.jitter = jitter
	}
}

// WithSleep replaces the wall-clock wait between attempts. Tests use it to
// record waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = sleep }
}

// WithJitterSource replaces the uniform jitter generator.
func WithJitterSource(fn func(limit time.Duration) time.Duration) RetrierOption {
	return func(r *Retrier) { r.randomIn = fn }
}

// WithRetryRecorder reports every scheduled retry to rec.
func WithRetryRecorder(rec driven.CrawlRecorder) RetrierOption {
	return func(r *Retrier) { r.recorder = rec }
}

// NewRetrier builds a Retrier. A non-positive maxAttempts falls back to
// DefaultMaxAttempts.
func NewRetrier(maxAttempts int, opts ...RetrierOption) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	r := &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		jitter:      defaultJitter,
		randomIn:    uniformJitter,
		recorder:    driven.NopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts returns the attempt budget.
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Delay returns the capped exponential part of the wait after the given
// 1-based attempt: min(base * 2^attempt, cap).
func (r *Retrier) Delay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}
	return time.Duration(delay)
}

// Backoff returns Delay(attempt) plus uniform jitter in [0, jitter).
func (r *Retrier) Backoff(attempt int) time.Duration {
	return r.Delay(attempt) + r.randomIn(r.jitter)
}

// Do calls op until it succeeds, returns a permanent error, the context ends,
// or the attempt budget is spent. Exhaustion yields an error matching
// ErrRetriesExhausted that also wraps the last failure.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var (
		attempt int
		stopped bool
	)
	operation := func() error {
		if err := ctx.Err(); err != nil {
			stopped = true
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			stopped = true
			return backoff.Permanent(ctxErr)
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			stopped = true
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		class := failureClass(err)
		slog.Warn("github request failed, backing off",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"class", class,
			"wait", wait.Round(time.Millisecond),
			"error", err,
		)
		r.recorder.RetryScheduled(class, wait)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&scheduleBackOff{retrier: r}, uint64(r.maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, r.timer(ctx))
	switch {
	case err == nil:
		return nil
	case stopped:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.maxAttempts, err)
}

// timer returns nil, the library's wall-clock timer, unless a sleep function
// was injected.
func (r *Retrier) timer(ctx context.Context) backoff.Timer {
	if r.sleep == nil {
		return nil
	}
	return &sleepTimer{ctx: ctx, sleep: r.sleep}
}

// scheduleBackOff yields Backoff(1), Backoff(2), ... for one Do call.
type scheduleBackOff struct {
	retrier *Retrier
	attempt int
}

func (b *scheduleBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.retrier.Backoff(b.attempt)
}

func (b *scheduleBackOff) Reset() { b.attempt = 0 }

// sleepTimer adapts an injected sleep function to backoff.Timer. The channel
// fires once the sleep returns; cancellation is observed by the retry loop.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	_ = t.sleep(t.ctx, d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}
