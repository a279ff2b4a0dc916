// Package prometheus provides a Prometheus-backed stats collector.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/stats"
)

// DurationBuckets covers chunk operations from 10ms to roughly 20 minutes.
var DurationBuckets = prometheus.ExponentialBuckets(0.01, 4, 10)

// Collector implements stats.Collector using Prometheus metrics. Metrics
// are created and registered on first use.
type Collector struct {
	registry prometheus.Registerer
	logger   *zap.Logger

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ stats.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger that reports metrics which could not be
// registered.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// New creates a collector registering into registry, or into
// prometheus.DefaultRegisterer when registry is nil.
func New(registry prometheus.Registerer, opts ...Option) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	c := &Collector{
		registry:   registry,
		logger:     zap.NewNop(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) IncCounter(name string, delta int64) {
	counter := lookup(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: stats.Help(name)})
	})
	counter.Add(float64(delta))
}

func (c *Collector) SetGauge(name string, value int64) {
	gauge := lookup(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: stats.Help(name)})
	})
	gauge.Set(float64(value))
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := lookup(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    stats.Help(name),
			Buckets: DurationBuckets,
		})
	})
	histogram.Observe(value)
}

// lookup returns the metric cached under name, creating and registering it
// if needed. A compatible metric already registered under the same name is
// adopted. When registration fails otherwise the metric is kept unexported
// so updates stay cheap, and the failure is logged once.
func lookup[M prometheus.Collector](c *Collector, cache map[string]M, name string, create func() M) M {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := cache[name]; ok {
		return m
	}

	m := create()
	if err := c.registry.Register(m); err != nil {
		var (
			are      prometheus.AlreadyRegisteredError
			existing M
			ok       bool
		)
		if errors.As(err, &are) {
			existing, ok = are.ExistingCollector.(M)
		}
		if ok {
			m = existing
		} else {
			c.logger.Warn("metric not registered, updates are not exported",
				zap.String("metric", name), zap.Error(err))
		}
	}
	cache[name] = m
	return m
}
