package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nihalnihalani/EnrichedMMCP/internal/config"
)

func lastEntry(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again)

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastEntry(t, string(content))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewLogger_Outputs(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.LoggingConfig
		wantConsole bool
		wantFile    bool
	}{
		{name: "console", cfg: config.LoggingConfig{Output: "console"}, wantConsole: true},
		{name: "file", cfg: config.LoggingConfig{Output: "file"}, wantFile: true},
		{name: "both", cfg: config.LoggingConfig{Output: "both"}, wantConsole: true, wantFile: true},
		{name: "unknown falls back to console", cfg: config.LoggingConfig{Output: "syslog"}, wantConsole: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			tt.cfg.FilePath = filepath.Join(t.TempDir(), "app.log")

			logger, file, err := NewLogger(tt.cfg, &console)
			require.NoError(t, err)
			logger.Info("hello")

			assert.Equal(t, tt.wantConsole, strings.Contains(console.String(), "hello"))
			if !tt.wantFile {
				assert.Nil(t, file)
				return
			}
			require.NotNil(t, file)
			require.NoError(t, file.Close())
			content, err := os.ReadFile(tt.cfg.FilePath)
			require.NoError(t, err)
			assert.Contains(t, string(content), "hello")
		})
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("plain", slog.Int("rows", 3))
	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "rows=3")
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "debug"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "test-trace-123")
	logger.With(slog.String("component", "test")).InfoContext(ctx, "with trace")

	entry := lastEntry(t, buf.String())
	assert.Equal(t, "test-trace-123", entry["trace_id"])
	assert.Equal(t, "test", entry["component"])
	assert.NotContains(t, entry, "span_id")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	spanCtx, span := tp.Tracer("test").Start(ctx, "op")
	logger.InfoContext(spanCtx, "inside span")
	span.End()

	entry = lastEntry(t, buf.String())
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true, wantWarn: true},
		{level: "info", wantInfo: true, wantWarn: true},
		{level: "WARNING", wantWarn: true},
		{level: "error"},
		{level: "bogus", wantInfo: true, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, _, err := NewLogger(config.LoggingConfig{Level: tt.level}, &buf)
			require.NoError(t, err)

			logger.Debug("debug-line")
			logger.Info("info-line")
			logger.Warn("warn-line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug-line"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info-line"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "warn-line"))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
	assert.NotEqual(t, GenerateTraceID(), GenerateTraceID())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent(base, "scheduler").Info("tick")
	assert.Equal(t, "scheduler", lastEntry(t, buf.String())["component"])

	assert.NotNil(t, WithComponent(nil, "fallback"))
}
