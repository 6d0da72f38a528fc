package parmap

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus instrumentation for an engine. Attach it
// with WithMetrics; when absent, the engine records nothing.
type Metrics struct {
	ItemsDispatched prometheus.Counter
	ItemsCompleted  prometheus.Counter
	ItemsFailed     prometheus.Counter
	WorkersLive     prometheus.Gauge
	ItemDuration    prometheus.Histogram
}

// NewMetrics creates engine metrics and registers them with the default
// Prometheus registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		ItemsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_dispatched_total",
			Help:      "Total number of items handed to workers, retries included",
		}),
		ItemsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_completed_total",
			Help:      "Total number of items that completed successfully",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_failed_total",
			Help:      "Total number of items that completed with an error",
		}),
		WorkersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_live",
			Help:      "Current number of live workers in the pool",
		}),
		ItemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "item_duration_seconds",
			Help:      "Histogram of per-item execution latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.ItemsDispatched,
		m.ItemsCompleted,
		m.ItemsFailed,
		m.WorkersLive,
		m.ItemDuration,
	)
	return m
}
