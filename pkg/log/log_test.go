package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	debug := NewLogger("test", "debug", FormatText)
	assert.True(t, debug.Enabled(context.Background(), slog.LevelDebug))

	warn := NewLogger("test", "warn", FormatJSON)
	assert.False(t, warn.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, warn.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLoggerFallsBackOnUnknownSettings(t *testing.T) {
	logger := NewLogger("test", "verbose", "yaml")

	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
