package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// External AI / persistence calls made by the analysis pipeline
	ExternalCalls   *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec

	// Analysis outcomes by terminal state
	Analyses *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "External calls made by the analysis pipeline",
		}, []string{"capability", "status"}),
		ExternalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Duration of external calls made by the analysis pipeline",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"capability"}),
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis runs by terminal state",
		}, []string{"state"}),
	}
}

// ObserveCall records one external call outcome.
func (m *Metrics) ObserveCall(capability string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ExternalCalls.WithLabelValues(capability, status).Inc()
	m.ExternalLatency.WithLabelValues(capability).Observe(time.Since(started).Seconds())
}
