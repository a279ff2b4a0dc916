// Package errs defines the error taxonomy shared by every stage of a job.
//
// Errors returned by the engine, other than cancellation, wrap one of the
// sentinels below, so callers classify failures with errors.Is.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for well-defined failure classes.
var (
	// ErrConfiguration indicates an unknown or invalid method, level, core
	// count or codec option. Detected before any side effect.
	ErrConfiguration = errors.New("chopzip: configuration error")

	// ErrInput indicates a missing input file, an unresolvable extension or
	// an output that already exists. Detected before any side effect.
	ErrInput = errors.New("chopzip: input error")

	// ErrCapacity indicates the chunk directory could not be created.
	ErrCapacity = errors.New("chopzip: capacity error")

	// ErrCodec indicates a single chunk's compress or decompress operation failed.
	ErrCodec = errors.New("chopzip: codec error")

	// ErrAssembly indicates the chunk set cannot be joined into a complete artifact.
	ErrAssembly = errors.New("chopzip: assembly error")
)

// Configuration wraps a formatted message in ErrConfiguration.
func Configuration(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// Input wraps a formatted message in ErrInput.
func Input(format string, args ...any) error {
	return wrap(ErrInput, format, args...)
}

// Capacity wraps a formatted message in ErrCapacity.
func Capacity(format string, args ...any) error {
	return wrap(ErrCapacity, format, args...)
}

// Codec wraps a formatted message in ErrCodec.
func Codec(format string, args ...any) error {
	return wrap(ErrCodec, format, args...)
}

// Assembly wraps a formatted message in ErrAssembly.
func Assembly(format string, args ...any) error {
	return wrap(ErrAssembly, format, args...)
}

// Classify returns err unchanged when it already belongs to a class and
// wraps it in kind otherwise. Context errors pass through.
func Classify(kind, err error) error {
	switch {
	case err == nil:
		return nil
	case Classified(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Classified reports whether err wraps one of the sentinels.
func Classified(err error) bool {
	for _, kind := range []error{ErrConfiguration, ErrInput, ErrCapacity, ErrCodec, ErrAssembly} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", kind, fmt.Errorf(format, args...))
}

// ChunkError reports the failure of one chunk after all attempts.
// It matches ErrCodec under errors.Is.
type ChunkError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

// Unwrap exposes both the codec class and the underlying cause.
func (e *ChunkError) Unwrap() []error {
	return []error{ErrCodec, e.Err}
}
