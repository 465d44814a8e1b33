package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
		assert.True(t, handler.ContainsAttr("code", int64(500)))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "warn")
	})

	t.Run("keeps attributes bound with With", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "cabinet")).
			With(slog.String("cabinet", "MAU")).
			Warn("step failed", slog.String("step", "export"))

		records := handler.Find("step failed")
		require.Len(t, records, 1)
		assert.Equal(t, "cabinet", records[0].Attrs["component"])
		assert.Equal(t, "MAU", records[0].Attrs["cabinet"])
		assert.Equal(t, "export", records[0].Attrs["step"])
	})

	t.Run("derived loggers share records", func(t *testing.T) {
		logger, handler := NewTestLogger(nil)

		logger.Info("root")
		logger.With(slog.String("a", "b")).Info("child")

		assert.Equal(t, 2, handler.Count())
		AssertNoErrors(t, handler)
	})
}
