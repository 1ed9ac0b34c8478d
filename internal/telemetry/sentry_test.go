package telemetry

import (
	"bytes"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
	"github.com/tphakala/push-dispatcher/internal/errors"
	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Tests here are not parallel: the Sentry hub and error reporter are global.

func TestInitSentryDisabled(t *testing.T) {
	var buf bytes.Buffer
	ok, err := InitSentry(&conf.SentrySettings{}, buildinfo.New("v1", ""), logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "disabled")
}

func TestInitSentryReportsEnhancedErrors(t *testing.T) {
	transport := newRecordingTransport()
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		_ = sentry.Init(sentry.ClientOptions{})
	})

	ok, err := InitSentry(&conf.SentrySettings{
		Enabled:     true,
		DSN:         "https://public@sentry.example.test/1",
		Environment: "test",
	}, buildinfo.New("v1.0.0", "2026-01-01"), nil, WithTransport(transport))
	require.NoError(t, err)
	require.True(t, ok)

	_ = errors.Newf("send failed for https://fcm.example.test/v1/projects/p?key=secret").
		Component("push").
		Category(errors.CategoryIntegration).
		Context("operation", "send").
		Build()

	require.True(t, transport.waitFor(1, 2*time.Second))
	event := transport.captured()[0]

	assert.Equal(t, "push", event.Tags["component"])
	assert.Equal(t, "integration", event.Tags["category"])
	assert.Equal(t, "test", event.Environment)
	assert.Equal(t, "push-dispatcher@v1.0.0", event.Release)
	assert.NotContains(t, event.Message, "secret")
	assert.Empty(t, event.ServerName)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := &sentry.Event{
		Message:    "token=abcdef lookup",
		ServerName: "build-host",
		User:       sentry.User{ID: "42", IPAddress: "10.0.0.1"},
		Contexts:   map[string]sentry.Context{"device": {}, "os": {}, "app": {}},
		Tags:       map[string]string{"hostname": "h", "component": "push"},
		Exception:  []sentry.Exception{{Value: "password=hunter2"}},
	}

	out := applyPrivacyFilters(event, nil)

	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Message, "abcdef")
	assert.NotContains(t, out.Exception[0].Value, "hunter2")
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "app")
	assert.NotContains(t, out.Tags, "hostname")
	assert.Equal(t, "push", out.Tags["component"])
}
