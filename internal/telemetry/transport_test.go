package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// recordingTransport captures events instead of sending them.
type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
	signal chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{signal: make(chan struct{}, 16)}
}

//nolint:gocritic // hugeParam: signature fixed by sentry.Transport
func (r *recordingTransport) Configure(sentry.ClientOptions) {}

func (r *recordingTransport) SendEvent(event *sentry.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *recordingTransport) Flush(time.Duration) bool                  { return true }
func (r *recordingTransport) FlushWithContext(ctx context.Context) bool { return ctx.Err() == nil }
func (r *recordingTransport) Close()                                    {}

func (r *recordingTransport) captured() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

// waitFor blocks until n events arrived or timeout passed.
func (r *recordingTransport) waitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for len(r.captured()) < n {
		select {
		case <-r.signal:
		case <-deadline:
			return false
		}
	}
	return true
}
