// Package split materializes planned chunks as addressable units.
package split

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/plan"
)

// Unit is one addressable chunk of the input.
type Unit struct {
	Chunk plan.Chunk
	// Name is the deterministic chunk name, "<base>.chunk.<NNN>".
	Name string
	// Path is the materialized chunk file, or empty when the unit is a
	// byte range of the source.
	Path string

	source string
}

// Open returns a reader over the unit's bytes.
func (u Unit) Open() (io.ReadCloser, error) {
	if u.Path != "" {
		return os.Open(u.Path)
	}
	f, err := os.Open(u.source)
	if err != nil {
		return nil, err
	}
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, u.Chunk.Offset, u.Chunk.Length),
		file:          f,
	}, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	file *os.File
}

func (s *sectionReadCloser) Close() error {
	return s.file.Close()
}

// Options configures Split.
type Options struct {
	// Materialize writes every chunk to its own file in the workspace
	// instead of reading byte ranges of the source.
	Materialize bool
	// Workers bounds concurrent chunk file writes.
	Workers int
}

// Split returns one unit per chunk, in chunk order. With Materialize set
// the chunk files are written concurrently; on error any files already
// written are left in place and their paths are returned with the error,
// which is errs.ErrCapacity unless ctx was cancelled.
func Split(ctx context.Context, source string, chunks []plan.Chunk, ws *Workspace, opts Options) ([]Unit, error) {
	base := filepath.Base(source)
	units := make([]Unit, len(chunks))
	for i, c := range chunks {
		units[i] = Unit{
			Chunk:  c,
			Name:   ChunkName(base, c.Index, len(chunks)),
			source: source,
		}
	}
	if !opts.Materialize {
		return units, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i := range units {
		u := &units[i]
		g.Go(func() error {
			path := ws.Path(u.Name)
			if err := writeChunk(ctx, source, u.Chunk, path); err != nil {
				return fmt.Errorf("materializing %s: %w", u.Chunk, err)
			}
			u.Path = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return units, errs.Classify(errs.ErrCapacity, err)
	}
	return units, nil
}

// MaterializedPaths returns the chunk files written by Split.
func MaterializedPaths(units []Unit) []string {
	var paths []string
	for _, u := range units {
		if u.Path != "" {
			paths = append(paths, u.Path)
		}
	}
	return paths
}

func writeChunk(ctx context.Context, source string, c plan.Chunk, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, io.NewSectionReader(in, c.Offset, c.Length)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
