package push

import "time"

// Metrics receives dispatch events. internal/observability/metrics provides
// the Prometheus implementation.
type Metrics interface {
	TaskEnqueued(queueDepth int)
	TaskDropped()
	AttemptCompleted(kind RecipientKind, class Classification, duration time.Duration)
	RetryScheduled(kind RecipientKind, delay time.Duration)
	TaskFinished(state TaskState, attempts int)
	RecipientInvalidated(kind RecipientKind)
	QueueDepth(depth int)
}

type noopMetrics struct{}

func (noopMetrics) TaskEnqueued(int)                                              {}
func (noopMetrics) TaskDropped()                                                  {}
func (noopMetrics) AttemptCompleted(RecipientKind, Classification, time.Duration) {}
func (noopMetrics) RetryScheduled(RecipientKind, time.Duration)                   {}
func (noopMetrics) TaskFinished(TaskState, int)                                   {}
func (noopMetrics) RecipientInvalidated(RecipientKind)                            {}
func (noopMetrics) QueueDepth(int)                                                {}
