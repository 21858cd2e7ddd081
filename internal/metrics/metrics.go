package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hivemindhq/decision-engine/internal/config"
)

// Collector owns the Prometheus registry and the metric families recorded
// by the evaluation service.
type Collector struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	tablesRegistered   prometheus.GaugeFunc
	httpResponses      *prometheus.CounterVec
}

// Evaluation outcomes recorded on evaluationsTotal.
const (
	OutcomeMatched  = "matched"
	OutcomeDefault  = "default"
	OutcomeNoMatch  = "no_match"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// NewCollector creates a collector using cfg's namespace/subsystem. The
// registrySize function is polled at scrape time for the registry gauge; a
// nil registry uses a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry, registrySize func() float64) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if registrySize == nil {
		registrySize = func() float64 { return 0 }
	}

	c := &Collector{
		registry: registry,
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluations_total",
			Help:      "Decision table evaluations by outcome.",
		}, []string{"outcome"}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of a single table evaluation.",
			// Evaluation is in-memory work; buckets span microseconds to low milliseconds.
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		tablesRegistered: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tables_registered",
			Help:      "Compiled tables currently cached in the registry.",
		}, registrySize),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_responses_total",
			Help:      "HTTP responses by status class.",
		}, []string{"class"}),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.tablesRegistered,
		c.httpResponses,
	)

	return c
}

// RecordEvaluation records one evaluation with its outcome and duration.
func (c *Collector) RecordEvaluation(outcome string, duration time.Duration) {
	c.evaluationsTotal.WithLabelValues(outcome).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordResponse records an HTTP response status.
func (c *Collector) RecordResponse(status int) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	c.httpResponses.WithLabelValues(class).Inc()
}

// Handler returns the exposition endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
