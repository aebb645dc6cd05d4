package httpapi

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	DetectDuration prometheus.Histogram
	Findings       prometheus.Counter
	DetectErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers the API collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xray_http_requests_total",
				Help: "HTTP requests partitioned by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		DetectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "xray_detect_duration_seconds",
				Help:    "Time taken to analyze an uploaded image.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
		),
		Findings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xray_findings_total",
				Help: "Total opacity regions reported.",
			},
		),
		DetectErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xray_detect_errors_total",
				Help: "Failed detection requests partitioned by error type.",
			},
			[]string{"error_type"},
		),
	}

	for _, c := range []prometheus.Collector{m.Requests, m.DetectDuration, m.Findings, m.DetectErrors} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
