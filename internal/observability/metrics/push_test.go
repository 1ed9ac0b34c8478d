package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/push-dispatcher/internal/push"
)

// Compile-time check that PushMetrics satisfies the dispatcher's interface.
var _ push.Metrics = (*PushMetrics)(nil)

func newPushMetrics(t *testing.T) *PushMetrics {
	t.Helper()
	m, err := NewPushMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestPushMetricsRecordsLifecycle(t *testing.T) {
	t.Parallel()

	m := newPushMetrics(t)

	m.TaskEnqueued(1)
	m.TaskEnqueued(2)
	m.QueueDepth(1)
	m.AttemptCompleted(push.RecipientToken, push.ClassTransientServer, 200*time.Millisecond)
	m.RetryScheduled(push.RecipientToken, 1500*time.Millisecond)
	m.AttemptCompleted(push.RecipientToken, push.ClassSuccess, 50*time.Millisecond)
	m.TaskFinished(push.StateDelivered, 2)
	m.AttemptCompleted(push.RecipientTopic, push.ClassStaleRecipient, 10*time.Millisecond)
	m.RecipientInvalidated(push.RecipientTopic)
	m.TaskFinished(push.StateInvalidating, 1)
	m.TaskDropped()

	assert.InDelta(t, 2, testutil.ToFloat64(m.TasksEnqueued), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksDropped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Queued), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("token", "transient_server")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("token", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Retries.WithLabelValues("token")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksFinished.WithLabelValues("delivered")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksFinished.WithLabelValues("invalidating")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Invalidated.WithLabelValues("topic")), 0)

	metric := &dto.Metric{}
	require.NoError(t, m.TaskAttempts.Write(metric))
	assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 3, metric.GetHistogram().GetSampleSum(), 0)
}

func TestPushMetricsClientBuilt(t *testing.T) {
	t.Parallel()

	m := newPushMetrics(t)
	m.ClientBuilt(nil, 300*time.Millisecond)
	m.ClientBuilt(errors.New("no credentials"), time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ClientBuilds.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ClientBuilds.WithLabelValues("error")), 0)
	assert.InDelta(t, 0.001, testutil.ToFloat64(m.ClientBuildSeconds), 1e-9)
}

func TestMetricsRejectDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewPushMetrics(registry)
	require.NoError(t, err)
	_, err = NewPushMetrics(registry)
	require.Error(t, err)

	_, err = NewMQTTMetrics(registry)
	require.NoError(t, err)
	_, err = NewStoreMetrics(registry)
	require.NoError(t, err)
}

func TestStoreAndMQTTMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	store, err := NewStoreMetrics(registry)
	require.NoError(t, err)
	mqtt, err := NewMQTTMetrics(registry)
	require.NoError(t, err)

	store.RecordOperation("save", nil, time.Millisecond)
	store.RecordOperation("save", errors.New("locked"), time.Millisecond)
	store.RecordCacheHit()
	store.SetStoredRecipients(7)

	mqtt.UpdateConnectionStatus(true)
	mqtt.RecordPublish(256, 5*time.Millisecond)
	mqtt.RecordError("publish")

	assert.InDelta(t, 1, testutil.ToFloat64(store.Operations.WithLabelValues("save", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(store.Operations.WithLabelValues("save", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(store.CacheHits), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(store.StoredRecipients), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mqtt.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mqtt.EventsPublished), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mqtt.Errors.WithLabelValues("publish")), 0)

	mqtt.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(mqtt.ConnectionStatus), 0)
}
