// Package chopzip compresses and decompresses large files in parallel.
//
// A file is split into chunks, the chunks are processed by a bounded pool
// of workers, and the results are joined in original order into a single
// artifact. For codecs whose streams concatenate (xz, gzip, zstd, lzip) the
// artifact is an ordinary compressed file; for the others (lz4, lzma) it is
// a tar container with one member per chunk and a manifest.
//
// Example usage:
//
//	engine, err := chopzip.New(chopzip.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	res, err := engine.Run(ctx, chopzip.Job{
//	    Input: "/var/log/big.log",
//	    Cores: runtime.NumCPU(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("wrote", res.Path)
package chopzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/registry"
	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/progress"
	"github.com/chopzip/chopzip/internal/scheduler"
	"github.com/chopzip/chopzip/internal/stats"
)

// DefaultMethod is the method used for compression when none is given.
const DefaultMethod = registry.DefaultMethod

// Methods returns the names of all supported methods.
func Methods() []string {
	return registry.Methods()
}

// Engine runs compression and decompression jobs.
// An Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	opts   options
	logger *zap.Logger
	closed atomic.Bool
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := cfg.bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.retries < 0 {
		return nil, errs.Configuration("retries must not be negative, got %d", cfg.retries)
	}
	if cfg.chunkTimeout < 0 {
		return nil, errs.Configuration("chunk timeout must not be negative, got %s", cfg.chunkTimeout)
	}
	if cfg.stats == nil {
		cfg.stats = stats.NewNoop()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.progress == nil {
		cfg.progress = progress.Nop
	}

	cfg.logger.Debug("engine initialized",
		zap.Int64("minChunk", cfg.bounds.Min),
		zap.Int64("maxChunk", cfg.bounds.Max),
		zap.Int("retries", cfg.retries),
		zap.Duration("chunkTimeout", cfg.chunkTimeout),
		zap.Bool("materialize", cfg.materialize),
	)

	return &Engine{opts: cfg, logger: cfg.logger}, nil
}

// Run processes one job. On success the artifact is complete and synced,
// and the temporary chunks and, unless KeepInput is set, the input are
// gone. On failure no artifact is published and the input is untouched.
func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	r := &run{
		engine: e,
		job:    job,
		logger: e.logger.With(
			zap.String("job", uuid.NewString()),
			zap.String("path", job.Input),
			zap.Stringer("mode", job.Mode),
		),
		start: time.Now(),
	}
	if r.job.Level == 0 {
		r.job.Level = codec.DefaultLevel
	}

	e.opts.stats.IncCounter(stats.MetricJobs, 1)

	var (
		res *Result
		err error
	)
	switch job.Mode {
	case Compress:
		res, err = r.compress(ctx)
	case Decompress:
		res, err = r.decompress(ctx)
	default:
		err = errs.Configuration("unknown mode %v", job.Mode)
	}

	if err != nil {
		e.opts.stats.IncCounter(stats.MetricJobFails, 1)
		e.opts.progress(progress.Event{Phase: progress.PhaseError, Path: job.Input, Method: r.method, Err: err})
		r.logger.Debug("job failed", zap.Error(err))
		return nil, err
	}

	res.Elapsed = time.Since(r.start)
	e.opts.stats.IncCounter(stats.MetricBytesIn, res.BytesIn)
	e.opts.stats.IncCounter(stats.MetricBytesOut, res.BytesOut)
	e.opts.progress(progress.Event{
		Phase:     progress.PhaseDone,
		Path:      job.Input,
		Method:    res.Method,
		BytesIn:   res.BytesIn,
		BytesOut:  res.BytesOut,
		StartTime: r.start,
	})
	r.mark("Ended")
	r.logger.Info("job finished",
		zap.String("output", res.Path),
		zap.String("method", res.Method),
		zap.Int("chunks", res.Chunks),
		zap.Int64("bytesIn", res.BytesIn),
		zap.Int64("bytesOut", res.BytesOut),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Close marks the engine closed. Jobs already running are not affected.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}

// run holds the state of one job.
type run struct {
	engine *Engine
	job    Job
	logger *zap.Logger
	start  time.Time
	method string
}

// newCodec validates the job's level and codec arguments against spec.
func (r *run) newCodec(spec registry.Spec) (codec.Codec, error) {
	params, err := codec.ParseParams(r.job.CodecArgs)
	if err != nil {
		return nil, errs.Configuration("%w", err)
	}
	return spec.New(codec.Options{Level: r.job.Level, Params: params})
}

func (r *run) checkCores() error {
	if r.job.Cores <= 0 {
		return errs.Configuration("cores must be positive, got %d", r.job.Cores)
	}
	return nil
}

func (r *run) schedulerConfig() scheduler.Config {
	o := r.engine.opts
	return scheduler.Config{
		Workers:  r.job.Cores,
		Timeout:  o.chunkTimeout,
		Retries:  o.retries,
		Backoff:  o.backoff,
		Observer: &runObserver{run: r},
		Stats:    o.stats,
		Logger:   r.logger,
	}
}

func (r *run) mark(name string) {
	if t := r.engine.opts.timer; t != nil {
		t.Mark(name)
	}
}

func (r *run) chunkDone(done, total int) {
	r.engine.opts.stats.IncCounter(stats.MetricChunks, 1)
	r.engine.opts.progress(progress.Event{
		Phase:       progress.PhaseChunk,
		Path:        r.job.Input,
		Method:      r.method,
		ChunksDone:  done,
		ChunksTotal: total,
	})
}

// runObserver forwards worker activity to the timer, the logger and the
// user's observer.
type runObserver struct {
	run *run
}

var _ scheduler.Observer = (*runObserver)(nil)

func (o *runObserver) WorkerStarted(index, attempt int) {
	if obs := o.run.engine.opts.observer; obs != nil {
		obs.WorkerStarted(index, attempt)
	}
}

func (o *runObserver) WorkerFinished(index, attempt int, elapsed time.Duration, err error) {
	if err == nil {
		if t := o.run.engine.opts.timer; t != nil {
			t.Chunk(elapsed)
		}
	}
	o.run.logger.Debug("chunk finished",
		zap.Int("chunk", index),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	if obs := o.run.engine.opts.observer; obs != nil {
		obs.WorkerFinished(index, attempt, elapsed, err)
	}
}

// statInput returns the size of a regular input file.
func statInput(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errs.Input("%w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, errs.Input("%q is not a regular file", path)
	}
	return info.Size(), nil
}

// checkOutput fails when path exists and force is not set.
func checkOutput(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return errs.Input("output %q already exists", path)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return errs.Input("checking output %q: %w", path, err)
	}
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// copyFile appends the file at path to w.
func copyFile(w func(io.Reader) error, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening chunk result: %w", err)
	}
	defer f.Close()
	return w(f)
}
