package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "earshot_worker"

// Metrics tracks extraction outcomes for the /metrics endpoint.
type Metrics struct {
	registry *prometheus.Registry

	ExtractionsTotal *prometheus.CounterVec
	StageFailures    *prometheus.CounterVec
	AuthRejections   prometheus.Counter
	ExtractDuration  prometheus.Histogram
}

// NewMetrics creates a metric set on its own registry so multiple servers
// can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		ExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "extractions_total",
			Help:      "Extraction requests by outcome",
		}, []string{"outcome"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_failures_total",
			Help:      "Extraction failures by pipeline stage",
		}, []string{"stage"}),
		AuthRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_rejections_total",
			Help:      "Requests rejected for a missing or invalid signature",
		}),
		ExtractDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "extract_duration_seconds",
			Help:      "End to end extraction duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
}

// RecordSuccess counts a completed extraction.
func (m *Metrics) RecordSuccess(durationSeconds float64) {
	m.ExtractionsTotal.WithLabelValues("success").Inc()
	m.ExtractDuration.Observe(durationSeconds)
}

// RecordFailure counts a failed extraction for the given stage.
func (m *Metrics) RecordFailure(stage string, durationSeconds float64) {
	if stage == "" {
		stage = "unknown"
	}
	m.ExtractionsTotal.WithLabelValues("failure").Inc()
	m.StageFailures.WithLabelValues(stage).Inc()
	m.ExtractDuration.Observe(durationSeconds)
}
