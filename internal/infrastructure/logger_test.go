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

	"wbreports/internal/config"
)

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

	logger.Info("cabinet done", "cabinet", "MAU")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &entry), "log output should be JSON")
	assert.Equal(t, "cabinet done", entry["msg"])
	assert.Equal(t, "MAU", entry["cabinet"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "source")
}

func TestCreateLogger_BothOutputs(t *testing.T) {
	defer ResetLoggerForTesting()

	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "both.log")
	logger, err := createLogger(config.LoggingConfig{
		Level:    "debug",
		Format:   "text",
		Output:   "both",
		FilePath: logFile,
	}, &console)
	require.NoError(t, err)

	logger.Debug("probing landmark", "landmark", "cabinet search")
	require.NoError(t, CloseLogFile())

	assert.Contains(t, console.String(), "probing landmark")
	assert.Contains(t, console.String(), "cabinet search")
	assert.False(t, json.Valid(bytes.TrimSpace(console.Bytes())), "text console output should not be JSON")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, json.Valid(bytes.TrimSpace(content)))
}

func TestRunIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&runHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithRunID(context.Background(), "run-123")
	logger.InfoContext(ctx, "with run")
	logger.Info("without run")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "run-123", first["run_id"])
	assert.NotContains(t, second, "run_id")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestFanoutHandler_RespectsLevels(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	h := fanoutHandler{
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	logger := slog.New(h).With("component", "test")

	logger.Debug("quiet")
	logger.Error("loud")

	assert.Contains(t, debugBuf.String(), "quiet")
	assert.Contains(t, debugBuf.String(), "loud")
	assert.NotContains(t, errorBuf.String(), "quiet")
	assert.Contains(t, errorBuf.String(), `"component":"test"`)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))

	ctx = EnsureRunID(ctx)
	id := GetRunID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetRunID(EnsureRunID(ctx)), "existing run id kept")
	assert.NotEqual(t, GenerateRunID(), GenerateRunID())
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithError(WithComponent(base, "watcher"), assert.AnError).Info("x")
	assert.Contains(t, buf.String(), `"component":"watcher"`)
	assert.Contains(t, buf.String(), assert.AnError.Error())

	assert.Same(t, base, WithError(base, nil))
}
