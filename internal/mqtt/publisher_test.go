package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/push-dispatcher/internal/push"
)

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes instead of talking to a broker.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []published
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func TestPublisherPublishesInvalidationEvent(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	p := NewPublisher(client, "apps/chat/invalid", nil)
	at := time.Date(2026, 5, 2, 8, 30, 0, 0, time.FixedZone("EEST", 3*3600))

	err := p.Invalidate(context.Background(), push.Invalidation{
		TaskID:     "4b7c",
		Recipient:  push.Token("device-token"),
		StatusCode: 404,
		Body:       `{"error":{"status":"NOT_FOUND"}}`,
		At:         at,
	})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	assert.Equal(t, "apps/chat/invalid", client.messages[0].topic)

	var event map[string]any
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &event))
	assert.Equal(t, "4b7c", event["taskId"])
	assert.Equal(t, "token", event["recipientKind"])
	assert.Equal(t, "device-token", event["recipient"])
	assert.InDelta(t, 404, event["statusCode"], 0)
	assert.Equal(t, "2026-05-02T05:30:00Z", event["timestamp"])
	assert.Contains(t, event["reason"], "NOT_FOUND")
}

func TestPublisherDefaultsAndErrors(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(client, "", nil)
	assert.Equal(t, "push/invalidated", p.Topic())

	err := p.Invalidate(context.Background(), push.Invalidation{Recipient: push.Topic("news")})
	require.EqualError(t, err, "not connected")
}

func TestNewInvalidationEventTruncatesReason(t *testing.T) {
	t.Parallel()

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	event := NewInvalidationEvent(push.Invalidation{Recipient: push.Topic("t"), Body: string(long)})

	assert.Len(t, event.Reason, maxReasonLength)
	assert.Equal(t, "topic", event.RecipientKind)
	assert.False(t, event.Timestamp.IsZero())
}
