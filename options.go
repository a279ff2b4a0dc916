package chopzip

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/plan"
	"github.com/chopzip/chopzip/internal/progress"
	"github.com/chopzip/chopzip/internal/scheduler"
	"github.com/chopzip/chopzip/internal/stats"
)

// Option configures an Engine.
type Option interface {
	apply(*options)
}

type options struct {
	bounds       plan.Bounds
	chunkTimeout time.Duration
	retries      int
	backoff      time.Duration
	materialize  bool
	observer     Observer
	progress     progress.Func
	timer        Timer
	stats        stats.Collector
	logger       *zap.Logger
}

func defaultOptions() options {
	return options{
		bounds:       plan.DefaultBounds(),
		chunkTimeout: scheduler.DefaultTimeout,
		retries:      scheduler.DefaultRetries,
		backoff:      scheduler.DefaultBackoff,
		progress:     progress.Nop,
		stats:        stats.NewNoop(),
		logger:       zap.NewNop(),
	}
}

type optionFunc func(*options)

var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// Observer is notified when a worker starts and finishes an attempt on a
// chunk. Calls may arrive concurrently.
type Observer interface {
	WorkerStarted(index, attempt int)
	WorkerFinished(index, attempt int, elapsed time.Duration, err error)
}

// Timer records job milestones and chunk durations.
type Timer interface {
	Mark(name string)
	Chunk(d time.Duration)
}

// WithChunkBounds sets the bounds applied to chunk sizes derived from the
// core count. Defaults are 1 MiB and 1 GiB.
func WithChunkBounds(minSize, maxSize int64) Option {
	return optionFunc(func(o *options) {
		o.bounds = plan.Bounds{Min: minSize, Max: maxSize}
	})
}

// WithChunkTimeout bounds a single attempt on a chunk. Zero disables the
// timeout. Default is 30 minutes.
func WithChunkTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.chunkTimeout = d
	})
}

// WithRetries sets how many times a failed chunk is retried before the job
// fails. Default is 2.
func WithRetries(n int) Option {
	return optionFunc(func(o *options) {
		o.retries = n
	})
}

// WithRetryBackoff sets the linear backoff unit between attempts.
func WithRetryBackoff(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.backoff = d
	})
}

// WithMaterialize makes compression write every chunk of the input to its
// own file in the chunk directory before compressing it, instead of
// reading byte ranges of the input.
func WithMaterialize(on bool) Option {
	return optionFunc(func(o *options) {
		o.materialize = on
	})
}

// WithObserver sets an observer for worker activity.
func WithObserver(obs Observer) Option {
	return optionFunc(func(o *options) {
		o.observer = obs
	})
}

// WithProgress prints progress for every job to w, throttled to one chunk
// line per interval.
func WithProgress(w io.Writer, interval time.Duration) Option {
	return optionFunc(func(o *options) {
		o.progress = progress.Printer(w, interval)
	})
}

// WithTimer records milestones and chunk durations of every job.
func WithTimer(t Timer) Option {
	return optionFunc(func(o *options) {
		o.timer = t
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
