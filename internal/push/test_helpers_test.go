package push

import (
	"context"
	"sync"
	"testing"
	"time"
)

// scriptedClient returns responses in order, then nil for every later call.
type scriptedClient struct {
	mu        sync.Mutex
	responses []error
	sent      []*Message
}

func newScriptedClient(responses ...error) *scriptedClient {
	return &scriptedClient{responses: responses}
}

func (c *scriptedClient) Send(_ context.Context, msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := len(c.sent)
	c.sent = append(c.sent, msg)
	if idx < len(c.responses) {
		return c.responses[idx]
	}
	return nil
}

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// repeatingClient returns the same error for every call.
type repeatingClient struct {
	err   error
	mu    sync.Mutex
	calls int
}

func (c *repeatingClient) Send(context.Context, *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *repeatingClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// staticSource hands out a fixed client.
type staticSource struct {
	client DeliveryClient
	err    error
}

func (s staticSource) Get(context.Context) (DeliveryClient, error) {
	return s.client, s.err
}

// waitRecorder replaces the backoff sleep and records requested delays.
type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
}

func (w *waitRecorder) Delays() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

// recordingInvalidator captures invalidations.
type recordingInvalidator struct {
	mu   sync.Mutex
	seen []Invalidation
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, inv Invalidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, inv)
	return r.err
}

func (r *recordingInvalidator) Seen() []Invalidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invalidation(nil), r.seen...)
}

// newTestExecutor builds an executor with recorded waits and no real sleep.
func newTestExecutor(t *testing.T, client DeliveryClient, opts ...ExecutorOption) (*Executor, *waitRecorder) {
	t.Helper()
	rec := &waitRecorder{}
	e := NewExecutor(staticSource{client: client}, opts...)
	e.wait = rec.wait
	return e, rec
}

func testPayload() *Notification {
	return &Notification{Title: "New message", Body: "You have a new message"}
}
