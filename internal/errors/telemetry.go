package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives built errors when telemetry is enabled
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a Sentry reporter. Sentry must already be
// initialized with sentry.Init.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends the error to Sentry with URLs and device tokens scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)
	level := levelForCategory(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func errorTitle(ee *EnhancedError) string {
	parts := []string{ee.Component, string(ee.Category)}
	if op, ok := ee.Context["operation"].(string); ok && op != "" {
		parts = append(parts, op)
	}
	return strings.Join(parts, " ")
}

func levelForCategory(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryHTTP, CategoryMQTTConnect, CategoryMQTTPublish:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var telemetryReporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter installs the global reporter; nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		telemetryReporter.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	telemetryReporter.Store(&reporter)
	hasActiveReporting.Store(reporter.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	ptr := telemetryReporter.Load()
	if ptr == nil {
		return
	}
	if reporter := *ptr; reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|token|auth|password)[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
		// FCM registration tokens: long base64url strings, usually with a colon
		regexp.MustCompile(`[A-Za-z0-9_-]{20,}:[A-Za-z0-9_-]{60,}`),
	}
)

// scrubMessageForPrivacy strips query strings, credentials and device tokens
func scrubMessageForPrivacy(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range secretRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}

// ScrubMessage applies the same privacy scrubbing used for reported errors.
func ScrubMessage(message string) string {
	return scrubMessageForPrivacy(message)
}
