package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains the Prometheus metrics of the invalidation event publisher.
type MQTTMetrics struct {
	ConnectionStatus prometheus.Gauge
	EventsPublished  prometheus.Counter
	Errors           *prometheus.CounterVec
	LastConnectTime  prometheus.Gauge
	EventSize        prometheus.Histogram
	PublishLatency   prometheus.Histogram
	registry         *prometheus.Registry
}

// NewMQTTMetrics creates a new instance of MQTTMetrics.
// It requires a Prometheus registry to register the metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_mqtt_connection_status",
		Help: "Current MQTT connection status (1 for connected, 0 for disconnected)",
	})

	m.EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_mqtt_events_published_total",
		Help: "Total number of invalidation events published to the broker",
	})

	m.Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_mqtt_errors_total",
			Help: "Total number of MQTT errors by operation",
		},
		[]string{"operation"}, // connect, publish, encode
	)

	m.LastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_mqtt_last_connect_time_seconds",
		Help: "Timestamp of the last successful MQTT connection",
	})

	m.EventSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_mqtt_event_size_bytes",
		Help:    "Size of published invalidation events in bytes",
		Buckets: prometheus.ExponentialBuckets(64, 2, 8),
	})

	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_mqtt_publish_latency_seconds",
		Help:    "Latency of MQTT publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})
}

// UpdateConnectionStatus updates the connection gauge and, on connect, the
// last connect time.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.SetToCurrentTime()
		return
	}
	m.ConnectionStatus.Set(0)
}

// RecordPublish records a successful publish.
func (m *MQTTMetrics) RecordPublish(sizeBytes int, latency time.Duration) {
	m.EventsPublished.Inc()
	m.EventSize.Observe(float64(sizeBytes))
	m.PublishLatency.Observe(latency.Seconds())
}

// RecordError counts a failed operation.
func (m *MQTTMetrics) RecordError(operation string) {
	m.Errors.WithLabelValues(operation).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ConnectionStatus
	ch <- m.EventsPublished
	m.Errors.Collect(ch)
	ch <- m.LastConnectTime
	ch <- m.EventSize
	ch <- m.PublishLatency
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ConnectionStatus.Desc()
	ch <- m.EventsPublished.Desc()
	m.Errors.Describe(ch)
	ch <- m.LastConnectTime.Desc()
	ch <- m.EventSize.Desc()
	ch <- m.PublishLatency.Desc()
}
