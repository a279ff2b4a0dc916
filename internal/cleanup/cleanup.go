// Package cleanup removes a job's temporary files once its artifact has
// been published.
package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Plan lists what a successful job leaves behind.
type Plan struct {
	// Temporary are chunk files written during the job.
	Temporary []string
	// Input is the original file, removed unless KeepInput is set.
	Input     string
	KeepInput bool
	// Dirs are directories the job created, deepest first. Each is
	// removed only if it is empty.
	Dirs []string
}

// Run executes p. Missing files are ignored, so running a plan twice is
// harmless. Failures to remove temporary files or the input are returned;
// failure to remove the chunk directory is only logged.
func Run(p Plan, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, path := range p.Temporary {
		if err := remove(path); err != nil {
			errs = append(errs, err)
		}
	}

	if p.Input != "" && !p.KeepInput {
		if err := remove(p.Input); err != nil {
			errs = append(errs, err)
		}
	}

	for _, dir := range p.Dirs {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			// A parent of a directory that stays is not empty either.
			logger.Warn("chunk directory not removed", zap.String("dir", dir), zap.Error(err))
			break
		}
	}
	return errors.Join(errs...)
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %q: %w", path, err)
	}
	return nil
}
