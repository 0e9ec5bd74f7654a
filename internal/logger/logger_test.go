package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetWithoutInitIsNop(t *testing.T) {
	global = nil
	l := Get()
	require.NotNil(t, l)
	l.Infow("dropped", "k", "v")
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { global = nil })
	require.NoError(t, Init("loud", "development"))
	assert.True(t, Get().Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, Get().Desugar().Core().Enabled(zap.DebugLevel))
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(zap.New(core)).With("ticker", "AAPL")
	l.Infow("analysis done", "transactions", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "AAPL", fields["ticker"])
	assert.EqualValues(t, 3, fields["transactions"])
}
