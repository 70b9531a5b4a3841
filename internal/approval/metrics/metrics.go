// Package metrics provides observability for the approval pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the approval module's Prometheus metrics.
type Metrics struct {
	// Terminal outcomes by status (revised, rejected, fault) and reason class.
	Outcomes *prometheus.CounterVec

	// Per-stage latency of the pipeline.
	StageLatency *prometheus.HistogramVec

	// Latency of external collaborators (registry, ledger, rules).
	ExternalLatency *prometheus.HistogramVec

	// Overall approval latency.
	ApproveLatency prometheus.Histogram
}

// New creates and registers all approval module metrics.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regbridge_approval_outcomes_total",
			Help: "Terminal approval outcomes by status and reason class",
		}, []string{"status", "reason"}),

		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regbridge_approval_stage_duration_seconds",
			Help:    "Duration of individual approval pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage"}),

		ExternalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regbridge_approval_external_duration_seconds",
			Help:    "Duration of external collaborator calls by target",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"target"}),

		ApproveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regbridge_approval_duration_seconds",
			Help:    "Duration of full approval requests",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementOutcome records a terminal outcome.
func (m *Metrics) IncrementOutcome(status, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, reason).Inc()
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveExternal records the duration of an external call.
func (m *Metrics) ObserveExternal(target string, d time.Duration) {
	if m != nil {
		m.ExternalLatency.WithLabelValues(target).Observe(d.Seconds())
	}
}

// ObserveApprove records the total request duration.
func (m *Metrics) ObserveApprove(d time.Duration) {
	if m != nil {
		m.ApproveLatency.Observe(d.Seconds())
	}
}
