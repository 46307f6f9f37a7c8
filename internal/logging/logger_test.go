package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	log, err := New(false, false)
	require.NoError(t, err)
	require.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	require.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))

	log, err = New(true, true)
	require.NoError(t, err)
	require.True(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	require.NotNil(t, log)
	log.Infow("discarded", "key", "value")
}
