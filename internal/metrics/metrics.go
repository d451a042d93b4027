// Package metrics exposes the tuner's Prometheus metrics.
package metrics

import (
	"fmt"
	stdlog "log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tuner/internal/log"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Tuner    *TunerMetrics
}

// New creates a registry and registers every collector on it.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	tunerMetrics, err := NewTunerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tuner metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Tuner:    tunerMetrics,
	}, nil
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux, path string) {
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, m.Handler())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(log.Writer(), "metrics handler: ", 0),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
