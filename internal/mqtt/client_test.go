package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	connected bool
	errors    map[string]int
}

func (r *recordingMetrics) UpdateConnectionStatus(connected bool) { r.connected = connected }
func (r *recordingMetrics) RecordPublish(int, time.Duration)      {}
func (r *recordingMetrics) RecordError(op string) {
	if r.errors == nil {
		r.errors = make(map[string]int)
	}
	r.errors[op]++
}

func TestNewClientValidatesBroker(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)

	_, err = NewClient(Config{Broker: "tcp://[::1"}, nil, nil)
	require.Error(t, err)

	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
}

func TestClientPublishRequiresConnection(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, nil, nil)
	require.NoError(t, err)

	err = c.Publish(context.Background(), "push/invalidations", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	// disconnecting a client that never connected is a no-op
	c.Disconnect()
}

func TestClientConnectMissingHost(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Broker: "tcp://:1883"}, nil, nil)
	require.NoError(t, err)
	require.Error(t, c.Connect(context.Background()))
}

func TestClientConnectRefused(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	// port 1 on loopback is closed on any sane test host
	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1", ConnectTimeout: 2 * time.Second}, nil, metrics)
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, metrics.connected)
	assert.Equal(t, 1, metrics.errors["connect"])
}

// fakeToken lets waitToken be tested without a broker.
type fakeToken struct {
	done chan struct{}
}

func (f *fakeToken) Wait() bool                       { <-f.done; return true }
func (f *fakeToken) WaitTimeout(d time.Duration) bool { return waitToken(context.Background(), f, d) }
func (f *fakeToken) Done() <-chan struct{}            { return f.done }
func (f *fakeToken) Error() error                     { return nil }

func TestWaitToken(t *testing.T) {
	t.Parallel()

	done := &fakeToken{done: make(chan struct{})}
	close(done.done)
	assert.True(t, waitToken(context.Background(), done, time.Second))

	pending := &fakeToken{done: make(chan struct{})}
	assert.False(t, waitToken(context.Background(), pending, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, waitToken(ctx, pending, time.Minute))
}
