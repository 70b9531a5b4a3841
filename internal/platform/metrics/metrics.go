// Package metrics exposes process-level Prometheus metrics and the /metrics
// handler. Feature metrics live next to their feature (internal/approval/metrics).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds application-wide Prometheus metrics.
type Metrics struct {
	RequestsInFlight prometheus.Gauge
}

// New creates and registers process-level metrics.
func New() *Metrics {
	return &Metrics{
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "regbridge_requests_in_flight",
			Help: "Number of approval requests currently being processed",
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Track wraps an http.Handler with the in-flight gauge.
func (m *Metrics) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()
		next.ServeHTTP(w, r)
	})
}
