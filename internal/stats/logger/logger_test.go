package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chopzip/chopzip/internal/stats"
)

func TestCollector(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricChunks, 2)
	c.SetGauge(stats.MetricActiveWorkers, 3)
	c.ObserveHistogram(stats.MetricChunkDuration, 0.25)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "counter", entries[0].Message)
	assert.Equal(t, stats.MetricChunks, entries[0].ContextMap()["metric"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["delta"])
	assert.Equal(t, "gauge", entries[1].Message)
	assert.Equal(t, int64(3), entries[1].ContextMap()["value"])
	assert.Equal(t, "chunk finished", entries[2].Message)
	assert.Equal(t, 250*time.Millisecond, entries[2].ContextMap()["elapsed"])
}

func TestCollector_Bytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricBytesOut, 3<<20)
	c.ObserveHistogram("other", 1.5)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "3.0 MiB", entries[0].ContextMap()["size"])
	assert.Equal(t, "histogram", entries[1].Message)
	assert.Equal(t, 1.5, entries[1].ContextMap()["value"])
}

func TestNew_NilLogger(t *testing.T) {
	c := New(nil)
	c.IncCounter("x", 1)
}
