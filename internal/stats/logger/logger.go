// Package logger provides a stats collector that writes metrics to a zap
// logger at debug level.
package logger

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/stats"
)

// Collector implements stats.Collector by logging every update. Byte
// counters carry a human-readable size and chunk durations are logged
// as durations.
type Collector struct {
	logger *zap.Logger
}

var _ stats.Collector = (*Collector)(nil)

// New creates a logging collector. A nil logger discards everything.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger.Named("stats")}
}

func (c *Collector) IncCounter(name string, delta int64) {
	fields := []zap.Field{zap.String("metric", name), zap.Int64("delta", delta)}
	switch name {
	case stats.MetricBytesIn, stats.MetricBytesOut:
		fields = append(fields, zap.String("size", humanize.IBytes(uint64(max(delta, 0)))))
	}
	c.logger.Debug("counter", fields...)
}

func (c *Collector) SetGauge(name string, value int64) {
	c.logger.Debug("gauge", zap.String("metric", name), zap.Int64("value", value))
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	if name == stats.MetricChunkDuration {
		c.logger.Debug("chunk finished",
			zap.String("metric", name),
			zap.Duration("elapsed", time.Duration(value*float64(time.Second))),
		)
		return
	}
	c.logger.Debug("histogram", zap.String("metric", name), zap.Float64("value", value))
}
