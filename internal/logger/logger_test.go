package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     logger.LogLevel
		logFunc   func(l logger.Logger)
		wantInLog bool
	}{
		{"debug suppressed at info", logger.LogLevelInfo, func(l logger.Logger) { l.Debug("probe") }, false},
		{"info emitted at info", logger.LogLevelInfo, func(l logger.Logger) { l.Info("probe") }, true},
		{"warn emitted at info", logger.LogLevelInfo, func(l logger.Logger) { l.Warn("probe") }, true},
		{"trace suppressed at debug", logger.LogLevelDebug, func(l logger.Logger) { l.Trace("probe") }, false},
		{"trace emitted at trace", logger.LogLevelTrace, func(l logger.Logger) { l.Trace("probe") }, true},
		{"error always emitted", logger.LogLevelError, func(l logger.Logger) { l.Error("probe") }, true},
		{"explicit level respects threshold", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelInfo, "probe") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewSlogLogger(&buf, tt.level, time.UTC)
			tt.logFunc(log)

			assert.Equal(t, tt.wantInLog, strings.Contains(buf.String(), "probe"))
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC).
		Module("push").
		Module("worker").
		With(logger.Int("worker", 3))

	log.Info("task delivered",
		logger.String("task_id", "abc"),
		logger.Duration("elapsed", 1500*time.Millisecond),
		logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "module=push.worker")
	assert.Contains(t, out, "worker=3")
	assert.Contains(t, out, "task_id=abc")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(context.Background(), "trace-42")
	log.WithContext(ctx).Info("hello")
	log.WithContext(context.Background()).Info("no trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=trace-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "push.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"push": "debug"},
	})
	require.NoError(t, err)

	cl.Module("push").Module("worker").Debug("inherited level", logger.Int("attempt", 2))
	cl.Module("api").Debug("filtered by default level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "inherited level", entry["msg"])
	assert.Equal(t, "push.worker", entry["module"])
	assert.InDelta(t, 2, entry["attempt"], 0)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}
