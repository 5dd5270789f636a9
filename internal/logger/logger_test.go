package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/rahul4469/speciessight/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("creates logger with JSON format", func(t *testing.T) {
		logger, err := New(config.LogConfig{Level: "info", Format: "json"})

		assert.NoError(t, err)
		assert.NotNil(t, logger)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		logger, err := New(config.LogConfig{Level: "debug", Format: "console"})

		assert.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("defaults to info level for invalid level", func(t *testing.T) {
		logger, err := New(config.LogConfig{Level: "loud", Format: "json"})

		assert.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("respects warn level", func(t *testing.T) {
		logger, err := New(config.LogConfig{Level: "warn", Format: "console"})

		assert.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})
}
