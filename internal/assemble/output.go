// Package assemble writes final artifacts: ordered concatenation for
// concatenable codecs and tar containers with a CBOR manifest for the
// rest. Artifacts are staged next to their destination and only renamed
// into place once complete and synced.
package assemble

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chopzip/chopzip/internal/errs"
)

// PartialSuffix is appended to the destination while an artifact is
// being written.
const PartialSuffix = ".partial"

// Output is a staged artifact file.
type Output struct {
	final string
	file  *os.File
	done  bool
}

// Create stages a new artifact that will be published at final. It fails
// with errs.ErrInput when final already exists and force is false.
func Create(final string, force bool) (*Output, error) {
	if !force {
		if _, err := os.Lstat(final); err == nil {
			return nil, errs.Input("output %q already exists", final)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Input("checking output %q: %w", final, err)
		}
	}

	f, err := os.OpenFile(final+PartialSuffix, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.Capacity("creating %q: %w", final+PartialSuffix, err)
	}
	return &Output{final: final, file: f}, nil
}

// Write appends p to the staged file.
func (o *Output) Write(p []byte) (int, error) {
	return o.file.Write(p)
}

// Path returns the destination path.
func (o *Output) Path() string {
	return o.final
}

// Commit syncs the staged file, renames it to its destination and syncs
// the destination directory so the rename survives a crash. Failures are
// errs.ErrCapacity.
func (o *Output) Commit() error {
	if o.done {
		return errs.Assembly("output %q already finished", o.final)
	}
	o.done = true

	if err := o.file.Sync(); err != nil {
		o.file.Close()
		os.Remove(o.file.Name())
		return errs.Capacity("syncing %q: %w", o.file.Name(), err)
	}
	if err := o.file.Close(); err != nil {
		os.Remove(o.file.Name())
		return errs.Capacity("closing %q: %w", o.file.Name(), err)
	}
	if err := os.Rename(o.file.Name(), o.final); err != nil {
		os.Remove(o.file.Name())
		return errs.Capacity("publishing %q: %w", o.final, err)
	}
	if err := syncDir(filepath.Dir(o.final)); err != nil {
		return errs.Capacity("syncing directory of %q: %w", o.final, err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Abort discards the staged file. It is a no-op after Commit.
func (o *Output) Abort() {
	if o.done {
		return
	}
	o.done = true
	o.file.Close()
	os.Remove(o.file.Name())
}
