package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCollectorKeepsMostRecentEntries(t *testing.T) {
	collector := NewCollector(3, zapcore.InfoLevel)
	logr := zap.New(collector)

	logr.Debug("ignored")
	for _, msg := range []string{"one", "two", "three", "four"} {
		logr.Info(msg)
	}

	entries := collector.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
}

func TestCollectorRecordsFields(t *testing.T) {
	collector := NewCollector(10, zapcore.DebugLevel)
	logr := zap.New(collector).With(zap.String("component", "builder"))

	logr.Warn("capacity reached", zap.Int("accepted", 50000))

	entries := collector.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "builder", entries[0].Fields["component"])
	assert.Equal(t, int64(50000), entries[0].Fields["accepted"])

	collector.Clear()
	assert.Empty(t, collector.Entries())
}
