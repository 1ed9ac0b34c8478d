package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics contains the Prometheus metrics of the invalid recipient store.
type StoreMetrics struct {
	Operations        *prometheus.CounterVec   // by operation and status
	OperationDuration *prometheus.HistogramVec // by operation
	CacheHits         prometheus.Counter
	StoredRecipients  prometheus.Gauge
	registry          *prometheus.Registry
}

// NewStoreMetrics creates and registers StoreMetrics.
func NewStoreMetrics(registry *prometheus.Registry) (*StoreMetrics, error) {
	m := &StoreMetrics{registry: registry}

	m.Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_store_operations_total",
			Help: "Invalid recipient store operations by operation and status",
		},
		[]string{"operation", "status"},
	)
	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_store_operation_duration_seconds",
			Help:    "Duration of invalid recipient store operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_store_dedupe_hits_total",
		Help: "Invalidations skipped because the recipient was recorded recently",
	})
	m.StoredRecipients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_store_recipients",
		Help: "Number of invalid recipients currently stored",
	})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register store metrics: %w", err)
	}
	return m, nil
}

// RecordOperation records one store operation.
func (m *StoreMetrics) RecordOperation(operation string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordCacheHit counts a deduplicated invalidation.
func (m *StoreMetrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// SetStoredRecipients updates the stored recipient gauge.
func (m *StoreMetrics) SetStoredRecipients(n int64) {
	m.StoredRecipients.Set(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *StoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.OperationDuration.Collect(ch)
	ch <- m.CacheHits
	ch <- m.StoredRecipients
}

// Describe implements the prometheus.Collector interface.
func (m *StoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.OperationDuration.Describe(ch)
	ch <- m.CacheHits.Desc()
	ch <- m.StoredRecipients.Desc()
}
