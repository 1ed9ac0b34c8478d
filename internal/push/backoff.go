package push

import (
	"context"
	"time"
)

// Backoff computes the wait before a retry attempt.
type Backoff interface {
	// Delay returns the wait before attempt (1-based for retries).
	Delay(attempt int) time.Duration
}

// LinearBackoff waits attempt*Step, optionally capped at Max.
type LinearBackoff struct {
	Step time.Duration
	Max  time.Duration // 0 means uncapped
}

func (l LinearBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := l.Step * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
