package push

import (
	"context"
	"errors"
	"time"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Invalidation describes a recipient the provider reported as stale
// (HTTP 400 or 404).
type Invalidation struct {
	TaskID     string
	Recipient  Recipient
	StatusCode int
	Body       string
	At         time.Time
}

// Invalidator receives stale recipients so the application can stop
// addressing them. Errors are logged by the caller and never retried.
type Invalidator interface {
	Invalidate(ctx context.Context, inv Invalidation) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, inv Invalidation) error

func (f InvalidatorFunc) Invalidate(ctx context.Context, inv Invalidation) error {
	return f(ctx, inv)
}

// LogInvalidator records stale recipients in the log only.
type LogInvalidator struct {
	log logger.Logger
}

// NewLogInvalidator creates an Invalidator that logs at warn level.
func NewLogInvalidator(log logger.Logger) *LogInvalidator {
	return &LogInvalidator{log: log}
}

func (l *LogInvalidator) Invalidate(_ context.Context, inv Invalidation) error {
	l.log.Warn("recipient invalidated by provider",
		logger.String("task_id", inv.TaskID),
		logger.String("recipient", inv.Recipient.String()),
		logger.Int("status_code", inv.StatusCode),
		logger.String("body", truncate(inv.Body, 512)))
	return nil
}

type multiInvalidator []Invalidator

// Invalidators fans out to every non-nil sink and joins their errors.
func Invalidators(sinks ...Invalidator) Invalidator {
	var m multiInvalidator
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multiInvalidator) Invalidate(ctx context.Context, inv Invalidation) error {
	var errs []error
	for _, s := range m {
		if err := s.Invalidate(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
