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

	"covidlag/internal/config"
)

func lastJSONLine(t *testing.T, content []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
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

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	entry := lastJSONLine(t, content)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestInitializeLogger_Once(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: filepath.Join(t.TempDir(), "a.log")})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: filepath.Join(t.TempDir(), "b.log")})
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	ctx := WithStage(WithRunID(context.Background(), "run-123"), "lag_join")
	logger.InfoContext(ctx, "with run")

	entry := lastJSONLine(t, buf.Bytes())
	assert.Equal(t, "run-123", entry["run_id"])
	assert.Equal(t, "lag_join", entry["stage"])
	assert.NotContains(t, entry, "trace_id", "no span in context")

	logger.Info("bare")
	entry = lastJSONLine(t, buf.Bytes())
	assert.NotContains(t, entry, "run_id")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level   string
		debugOK bool
		infoOK  bool
		warnOK  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"unknown", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(config.LoggingConfig{Level: tt.level, Format: "json"}, &buf)
			ctx := context.Background()

			assert.Equal(t, tt.debugOK, logger.Enabled(ctx, parseLogLevel("debug")))
			assert.Equal(t, tt.infoOK, logger.Enabled(ctx, parseLogLevel("info")))
			assert.Equal(t, tt.warnOK, logger.Enabled(ctx, parseLogLevel("warn")))
		})
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("plain", "stage", "clean")

	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "stage=clean")
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunID(ctx))
	assert.Empty(t, Stage(ctx))

	ctx = WithStage(WithRunID(ctx, "abc"), "fit")
	assert.Equal(t, "abc", RunID(ctx))
	assert.Equal(t, "fit", Stage(ctx))
	assert.Equal(t, "evaluate", Stage(WithStage(ctx, "evaluate")))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	WithComponent(logger, "lagjoin").Info("component")
	entry := lastJSONLine(t, buf.Bytes())
	assert.Equal(t, "lagjoin", entry["component"])
	assert.NotNil(t, WithComponent(nil, "pipeline"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
