// Package metrics implements the crawl recorder port with Prometheus
// collectors that are pushed to a Pushgateway when a pass ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CrawlRecorder = (*Recorder)(nil)

// Recorder owns every crawl collector.
type Recorder struct {
	registry *prometheus.Registry

	pagesFetched   prometheus.Counter
	hitsReceived   prometheus.Counter
	reposRecorded  prometheus.Counter
	retries        *prometheus.CounterVec
	rateLimitWaits prometheus.Histogram
	runsFinished   *prometheus.CounterVec
	runDuration    prometheus.Gauge
	runCollected   prometheus.Gauge
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stargazer_pages_fetched_total",
			Help: "Search pages fetched.",
		}),
		hitsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stargazer_search_hits_total",
			Help: "Repositories returned by search pages.",
		}),
		reposRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stargazer_repositories_recorded_total",
			Help: "Repositories persisted together with a star snapshot.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stargazer_retries_total",
			Help: "Retried remote calls partitioned by failure class.",
		}, []string{"class"}),
		rateLimitWaits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stargazer_rate_limit_wait_seconds",
			Help:    "Pauses between search requests.",
			Buckets: []float64{0.1, 0.3, 1, 5, 15, 30, 60, 300, 900, 3600},
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stargazer_runs_finished_total",
			Help: "Crawl passes finished partitioned by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stargazer_last_run_duration_seconds",
			Help: "Wall time of the last crawl pass.",
		}),
		runCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stargazer_last_run_collected",
			Help: "Repositories collected by the last crawl pass.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		r.pagesFetched,
		r.hitsReceived,
		r.reposRecorded,
		r.retries,
		r.rateLimitWaits,
		r.runsFinished,
		r.runDuration,
		r.runCollected,
	} {
		if err := r.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawl collector: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the registry, e.g. for a /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) PageFetched(hits int) {
	r.pagesFetched.Inc()
	r.hitsReceived.Add(float64(hits))
}

func (r *Recorder) RepositoryRecorded() {
	r.reposRecorded.Inc()
}

func (r *Recorder) RetryScheduled(cause string, _ time.Duration) {
	r.retries.WithLabelValues(cause).Inc()
}

func (r *Recorder) RateLimitWait(delay time.Duration) {
	r.rateLimitWaits.Observe(delay.Seconds())
}

func (r *Recorder) RunFinished(status string, collected int, elapsed time.Duration) {
	r.runsFinished.WithLabelValues(status).Inc()
	r.runDuration.Set(elapsed.Seconds())
	r.runCollected.Set(float64(collected))
}

// Push sends every collector to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
