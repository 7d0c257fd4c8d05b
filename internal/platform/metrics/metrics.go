// Package metrics holds the Prometheus collectors for discovery runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so tests and multiple servers never collide on
// the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

// New creates the collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podinbox_discovery_runs_total",
				Help: "Discovery runs by outcome (found, no_inbox, fault).",
			},
			[]string{"outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "podinbox_discovery_stage_duration_seconds",
				Help:    "Duration of one discovery stage including remote fetches.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
			},
			[]string{"stage"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podinbox_discovery_stage_failures_total",
				Help: "Discovery stages that could not determine a result.",
			},
			[]string{"stage"},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "podinbox_http_rate_limited_total",
				Help: "Requests rejected by the rate limit interceptor.",
			},
		),
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

// RecordStage observes one stage; failed counts a stage that produced a failure.
func (m *Metrics) RecordStage(stage string, d time.Duration, failed bool) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRateLimited counts a 429 response.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// Gatherer exposes the registry for tests and custom handlers.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
