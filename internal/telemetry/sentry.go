// Package telemetry provides privacy-compliant error tracking through Sentry.
// It is opt-in: nothing is sent unless sentry.enabled is set.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
	"github.com/tphakala/push-dispatcher/internal/errors"
	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Option adjusts the Sentry client options.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// InitSentry initializes the Sentry SDK and installs the error reporter.
// It returns false when telemetry is disabled.
func InitSentry(settings *conf.SentrySettings, build *buildinfo.Context, log logger.Logger, opts ...Option) (bool, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	if !settings.Enabled {
		log.Info("sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return false, nil
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "", // no hostname leakage
		Release:          build.Release(),
		BeforeSend:       applyPrivacyFilters,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("instance_id", build.GetInstanceID())
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry initialized",
		logger.String("environment", environment),
		logger.String("release", options.Release))
	return true, nil
}

// Flush waits for queued events to be delivered.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// applyPrivacyFilters strips host and user data and scrubs messages.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
