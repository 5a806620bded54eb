// Package metrics provides Prometheus instrumentation for fetch outcomes,
// run durations, and per-site change counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "sitewatch"
	metricsSubsystem = "core"
)

// Metrics holds the Prometheus metrics exported by a sitewatch process.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RunsInProgress prometheus.Gauge

	ChangesTotal *prometheus.CounterVec
}

// New creates and registers all sitewatch metrics against reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "fetch_total",
				Help:      "Total number of fetch attempts by host and outcome.",
			},
			[]string{"host", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of fetch attempts in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"host", "outcome"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "runs_total",
				Help:      "Total number of detection runs by site and outcome.",
			},
			[]string{"site_id", "outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of a site's detection run in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"site_id"},
		),
		RunsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "runs_in_progress",
				Help:      "Number of detection runs currently in progress.",
			},
		),
		ChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "changes_total",
				Help:      "Total number of classified changes by site and kind.",
			},
			[]string{"site_id", "kind"},
		),
	}
}

// RecordFetch implements fetcher.Recorder.
func (m *Metrics) RecordFetch(host, outcome string, duration time.Duration) {
	m.FetchTotal.WithLabelValues(host, outcome).Inc()
	m.FetchDuration.WithLabelValues(host, outcome).Observe(duration.Seconds())
}

// RecordRunStarted marks one more run in progress.
func (m *Metrics) RecordRunStarted() {
	m.RunsInProgress.Inc()
}

// RecordRunFinished records a completed run and its outcome.
func (m *Metrics) RecordRunFinished(siteID, outcome string, duration time.Duration) {
	m.RunsInProgress.Dec()
	m.RunsTotal.WithLabelValues(siteID, outcome).Inc()
	m.RunDuration.WithLabelValues(siteID).Observe(duration.Seconds())
}

// RecordChanges increments the change counter for siteID by kind.
func (m *Metrics) RecordChanges(siteID string, counts map[string]int) {
	for kind, n := range counts {
		m.ChangesTotal.WithLabelValues(siteID, kind).Add(float64(n))
	}
}
