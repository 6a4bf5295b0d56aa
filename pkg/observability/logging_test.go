package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, level, err := NewLogger("production", "warn")
	require.NoError(t, err)
	defer func() { _ = logger.Sync() }()

	assert.Equal(t, zapcore.WarnLevel, level.Level())
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel(level, "debug"))
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "level changes apply to the built logger")

	assert.Error(t, SetLevel(level, "loud"))
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	_, _, err = NewLogger("development", "nope")
	assert.Error(t, err)
}
