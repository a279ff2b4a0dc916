// Package scheduler runs one operation per chunk on a bounded pool of
// workers and hands results back strictly in chunk order.
//
// A single coordinator goroutine owns all bookkeeping: the next index to
// dispatch, the results that finished ahead of their turn, and the next
// index to flush. Workers never touch that state; each reports exactly one
// result over a shared channel and exits.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/stats"
)

const (
	// DefaultTimeout bounds a single attempt of a chunk operation.
	DefaultTimeout = 30 * time.Minute

	// DefaultRetries is the number of extra attempts after a failure.
	DefaultRetries = 2

	// DefaultBackoff is the base delay between attempts. Attempt n waits
	// n times this long.
	DefaultBackoff = 500 * time.Millisecond
)

// Work performs the operation for chunk index. It must honor ctx.
type Work[T any] func(ctx context.Context, index int) (T, error)

// Flush consumes the result of chunk index. It is called from the
// coordinator goroutine only, once per index, in increasing index order.
type Flush[T any] func(index int, value T) error

// Observer is notified about worker activity. Calls may arrive from
// several goroutines concurrently.
type Observer interface {
	// WorkerStarted is called before an attempt runs.
	WorkerStarted(index, attempt int)
	// WorkerFinished is called after an attempt returns.
	WorkerFinished(index, attempt int, elapsed time.Duration, err error)
}

// Config controls a Run.
type Config struct {
	// Workers is the ceiling on concurrently running operations.
	Workers int
	// Timeout bounds each attempt. Zero disables the timeout.
	Timeout time.Duration
	// Retries is the number of additional attempts after a failed one.
	Retries int
	// Backoff is the linear backoff unit between attempts.
	Backoff  time.Duration
	Observer Observer
	Stats    stats.Collector
	Logger   *zap.Logger
}

// DefaultConfig returns a Config with the package defaults and one worker.
func DefaultConfig() Config {
	return Config{
		Workers: 1,
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		Backoff: DefaultBackoff,
	}
}

type result[T any] struct {
	index int
	value T
	err   error
}

// Run executes work for every index in [0, n) with at most cfg.Workers
// running at once and passes each result to flush in index order.
//
// The first chunk failure, flush error or cancellation of ctx stops
// dispatching, cancels the running workers and waits for them before Run
// returns. Results not yet flushed at that point are dropped.
func Run[T any](ctx context.Context, cfg Config, n int, work Work[T], flush Flush[T]) error {
	if cfg.Workers <= 0 {
		return errs.Configuration("worker count must be positive, got %d", cfg.Workers)
	}
	if n < 0 {
		return errs.Configuration("negative chunk count %d", n)
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Capacity equals the worker bound, so a worker never blocks on send.
	results := make(chan result[T], cfg.Workers)
	completed := make(map[int]T)

	var (
		dispatched int
		active     int
		nextWrite  int
		failure    error
	)

	setActive := func(v int) {
		active = v
		cfg.Stats.SetGauge(stats.MetricActiveWorkers, int64(active))
	}

	for nextWrite < n {
		for active < cfg.Workers && dispatched < n {
			index := dispatched
			dispatched++
			setActive(active + 1)
			go func() {
				v, err := attempt(workCtx, cfg, index, work)
				results <- result[T]{index: index, value: v, err: err}
			}()
		}

		select {
		case r := <-results:
			setActive(active - 1)
			if r.err != nil {
				failure = r.err
				break
			}
			completed[r.index] = r.value
			failure = drain(completed, &nextWrite, flush)
		case <-ctx.Done():
			failure = ctx.Err()
		}
		if failure != nil {
			break
		}
	}

	if failure == nil {
		return nil
	}

	cancel()
	for active > 0 {
		<-results
		setActive(active - 1)
	}
	cfg.Logger.Debug("scheduler stopped",
		zap.Int("dispatched", dispatched),
		zap.Int("flushed", nextWrite),
		zap.Error(failure),
	)
	return failure
}

// drain flushes every result that is next in line.
func drain[T any](completed map[int]T, nextWrite *int, flush Flush[T]) error {
	for {
		v, ok := completed[*nextWrite]
		if !ok {
			return nil
		}
		delete(completed, *nextWrite)
		if err := flush(*nextWrite, v); err != nil {
			return errs.Classify(errs.ErrAssembly, fmt.Errorf("flushing chunk %d: %w", *nextWrite, err))
		}
		*nextWrite++
	}
}

// attempt runs work for one index with the configured timeout and retry
// policy. Cancellation of ctx is returned as is and never retried.
func attempt[T any](ctx context.Context, cfg Config, index int, work Work[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for try := 1; try <= cfg.Retries+1; try++ {
		if try > 1 {
			cfg.Stats.IncCounter(stats.MetricChunkRetries, 1)
			cfg.Logger.Warn("retrying chunk",
				zap.Int("chunk", index),
				zap.Int("attempt", try),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, time.Duration(try-1)*cfg.Backoff); err != nil {
				return zero, err
			}
		}

		v, err := once(ctx, cfg, index, try, work)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		cfg.Stats.IncCounter(stats.MetricChunkFailures, 1)
		lastErr = err
		if errors.Is(err, errs.ErrConfiguration) {
			return zero, &errs.ChunkError{Index: index, Attempts: try, Err: err}
		}
		if try == cfg.Retries+1 {
			return zero, &errs.ChunkError{Index: index, Attempts: try, Err: err}
		}
	}
	return zero, lastErr
}

func once[T any](ctx context.Context, cfg Config, index, try int, work Work[T]) (T, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if cfg.Observer != nil {
		cfg.Observer.WorkerStarted(index, try)
	}

	start := time.Now()
	v, err := work(ctx, index)
	elapsed := time.Since(start)

	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", cfg.Timeout, err)
	}
	if err == nil {
		cfg.Stats.ObserveHistogram(stats.MetricChunkDuration, elapsed.Seconds())
	}
	if cfg.Observer != nil {
		cfg.Observer.WorkerFinished(index, try, elapsed, err)
	}
	return v, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
