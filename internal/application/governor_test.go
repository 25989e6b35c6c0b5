package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/stargazer/internal/application"
	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

func TestRateLimitGovernor_Delay(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	g := application.NewRateLimitGovernor(application.WithGovernorClock(func() time.Time { return now }))

	tests := []struct {
		name string
		rl   *model.RateLimit
		want time.Duration
	}{
		{"no rate limit data", nil, 300 * time.Millisecond},
		{"healthy budget", &model.RateLimit{Remaining: 50, ResetAt: now.Add(30 * time.Second)}, 300 * time.Millisecond},
		{"exactly at low-water mark", &model.RateLimit{Remaining: 10, ResetAt: now.Add(time.Minute)}, 300 * time.Millisecond},
		{"low budget waits for reset plus margin", &model.RateLimit{Remaining: 5, ResetAt: now.Add(30 * time.Second)}, 31 * time.Second},
		{"exhausted budget", &model.RateLimit{Remaining: 0, ResetAt: now.Add(2 * time.Minute)}, 2*time.Minute + time.Second},
		{"low budget with unknown reset", &model.RateLimit{Remaining: 3}, 60 * time.Second},
		{"low budget with reset in the past", &model.RateLimit{Remaining: 1, ResetAt: now.Add(-5 * time.Second)}, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Delay(tt.rl))
		})
	}
}

func TestRateLimitGovernor_RealClockWithinWindow(t *testing.T) {
	g := application.NewRateLimitGovernor()

	got := g.Delay(&model.RateLimit{Remaining: 5, ResetAt: time.Now().Add(30 * time.Second)})

	assert.GreaterOrEqual(t, got, 30*time.Second)
	assert.LessOrEqual(t, got, 31*time.Second+50*time.Millisecond)
}

func TestRateLimitGovernor_Options(t *testing.T) {
	g := application.NewRateLimitGovernor(
		application.WithLowWaterMark(100),
		application.WithInterRequestDelay(time.Second),
	)

	assert.Equal(t, time.Second, g.Delay(&model.RateLimit{Remaining: 500}))
	assert.Equal(t, 60*time.Second, g.Delay(&model.RateLimit{Remaining: 99}))
}
