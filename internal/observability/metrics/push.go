// Package metrics provides custom Prometheus metrics for the push dispatcher.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/push-dispatcher/internal/push"
)

// PushMetrics contains all Prometheus metrics related to notification dispatch.
// It implements push.Metrics.
type PushMetrics struct {
	// Queue metrics
	TasksEnqueued prometheus.Counter
	TasksDropped  prometheus.Counter
	Queued        prometheus.Gauge

	// Delivery metrics
	Attempts        *prometheus.CounterVec   // by recipient kind and classification
	AttemptDuration *prometheus.HistogramVec // by recipient kind
	Retries         *prometheus.CounterVec   // by recipient kind
	RetryDelay      prometheus.Histogram

	// Outcome metrics
	TasksFinished *prometheus.CounterVec // by terminal state
	TaskAttempts  prometheus.Histogram
	Invalidated   *prometheus.CounterVec // by recipient kind

	// Client construction
	ClientBuilds       *prometheus.CounterVec // by status
	ClientBuildSeconds prometheus.Gauge

	registry *prometheus.Registry
}

// NewPushMetrics creates a new instance of PushMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewPushMetrics(registry *prometheus.Registry) (*PushMetrics, error) {
	m := &PushMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register push metrics: %w", err)
	}
	return m, nil
}

func (m *PushMetrics) initMetrics() {
	m.TasksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_push_tasks_enqueued_total",
		Help: "Total number of push notification tasks accepted by the dispatcher",
	})

	m.TasksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_push_tasks_dropped_total",
		Help: "Total number of tasks evicted from a bounded queue",
	})

	m.Queued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_push_queue_depth",
		Help: "Current number of tasks waiting for a worker",
	})

	m.Attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_attempts_total",
			Help: "Total number of delivery attempts by recipient kind and response classification",
		},
		[]string{"recipient", "classification"},
	)

	m.AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_push_attempt_duration_seconds",
			Help:    "Time taken by a single send call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0}, // 10ms to 10s
		},
		[]string{"recipient"},
	)

	m.Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_retries_total",
			Help: "Total number of scheduled retries by recipient kind",
		},
		[]string{"recipient"},
	)

	m.RetryDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_push_retry_delay_seconds",
		Help:    "Backoff delay applied before a retry",
		Buckets: prometheus.LinearBuckets(1.5, 1.5, 5),
	})

	m.TasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"state"}, // delivered, invalidating, permanently_failed, exhausted
	)

	m.TaskAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_push_task_attempts",
		Help:    "Number of attempts a task used before reaching a terminal state",
		Buckets: prometheus.LinearBuckets(1, 1, 6),
	})

	m.Invalidated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_recipients_invalidated_total",
			Help: "Total number of recipients reported as stale by the provider",
		},
		[]string{"recipient"},
	)

	m.ClientBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_client_builds_total",
			Help: "Delivery client constructions by status",
		},
		[]string{"status"},
	)

	m.ClientBuildSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_push_client_build_seconds",
		Help: "Time the delivery client construction and auth handshake took",
	})
}

// TaskEnqueued records an accepted task and the resulting queue depth.
func (m *PushMetrics) TaskEnqueued(queueDepth int) {
	m.TasksEnqueued.Inc()
	m.Queued.Set(float64(queueDepth))
}

// TaskDropped records a task evicted from a bounded queue.
func (m *PushMetrics) TaskDropped() {
	m.TasksDropped.Inc()
}

// AttemptCompleted records the outcome and latency of one send call.
func (m *PushMetrics) AttemptCompleted(kind push.RecipientKind, class push.Classification, duration time.Duration) {
	m.Attempts.WithLabelValues(kind.String(), class.String()).Inc()
	m.AttemptDuration.WithLabelValues(kind.String()).Observe(duration.Seconds())
}

// RetryScheduled records a retry and the delay before it.
func (m *PushMetrics) RetryScheduled(kind push.RecipientKind, delay time.Duration) {
	m.Retries.WithLabelValues(kind.String()).Inc()
	m.RetryDelay.Observe(delay.Seconds())
}

// TaskFinished records the terminal state of a task.
func (m *PushMetrics) TaskFinished(state push.TaskState, attempts int) {
	m.TasksFinished.WithLabelValues(state.String()).Inc()
	m.TaskAttempts.Observe(float64(attempts))
}

// RecipientInvalidated records a stale recipient.
func (m *PushMetrics) RecipientInvalidated(kind push.RecipientKind) {
	m.Invalidated.WithLabelValues(kind.String()).Inc()
}

// QueueDepth sets the current queue depth.
func (m *PushMetrics) QueueDepth(depth int) {
	m.Queued.Set(float64(depth))
}

// ClientBuilt records the single delivery client construction. It matches
// the callback signature of push.NewClientProvider.
func (m *PushMetrics) ClientBuilt(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ClientBuilds.WithLabelValues(status).Inc()
	m.ClientBuildSeconds.Set(elapsed.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *PushMetrics) Collect(ch chan<- prometheus.Metric) {
	m.TasksEnqueued.Collect(ch)
	m.TasksDropped.Collect(ch)
	m.Queued.Collect(ch)
	m.Attempts.Collect(ch)
	m.AttemptDuration.Collect(ch)
	m.Retries.Collect(ch)
	m.RetryDelay.Collect(ch)
	m.TasksFinished.Collect(ch)
	m.TaskAttempts.Collect(ch)
	m.Invalidated.Collect(ch)
	m.ClientBuilds.Collect(ch)
	m.ClientBuildSeconds.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *PushMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.TasksEnqueued.Describe(ch)
	m.TasksDropped.Describe(ch)
	m.Queued.Describe(ch)
	m.Attempts.Describe(ch)
	m.AttemptDuration.Describe(ch)
	m.Retries.Describe(ch)
	m.RetryDelay.Describe(ch)
	m.TasksFinished.Describe(ch)
	m.TaskAttempts.Describe(ch)
	m.Invalidated.Describe(ch)
	m.ClientBuilds.Describe(ch)
	m.ClientBuildSeconds.Describe(ch)
}
