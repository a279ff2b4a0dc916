package chopzip

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/progress"
	"github.com/chopzip/chopzip/internal/scheduler"
)

// Member describes one chunk stored in a container artifact.
type Member struct {
	Index      int
	Name       string
	Length     int64
	Compressed int64
	Digest     string
}

// Info describes a compressed artifact.
type Info struct {
	Path      string
	Method    string
	Container bool
	// Size is the size of the artifact.
	Size int64
	// OriginalSize is the uncompressed size recorded in a container
	// manifest, or -1 for concatenated streams.
	OriginalSize int64
	Members      []Member
}

// Inspect reports the method and layout of the artifact at path. Method
// may be empty to infer it from the extension. Containers are fully
// validated against their manifest.
func Inspect(path, method string) (*Info, error) {
	m, err := resolve(path, method)
	if err != nil {
		return nil, err
	}
	size, err := statInput(path)
	if err != nil {
		return nil, err
	}
	src, err := openSource(path, m)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := &Info{
		Path:         path,
		Method:       m.Spec.Name,
		Container:    m.Container,
		Size:         size,
		OriginalSize: -1,
	}
	if src.container != nil {
		info.OriginalSize = src.container.Manifest.Size
		for _, e := range src.container.Entries {
			info.Members = append(info.Members, Member{
				Index:      e.Index,
				Name:       e.Member,
				Length:     e.Length,
				Compressed: e.Compressed,
				Digest:     e.Digest.String(),
			})
		}
	}
	return info, nil
}

// Verify decompresses the artifact at path without writing anything and
// checks container members against their manifest digests. It returns
// the inspected artifact and the number of decompressed bytes.
func (e *Engine) Verify(ctx context.Context, path, method string, cores int) (*Info, int64, error) {
	if e.closed.Load() {
		return nil, 0, ErrClosed
	}
	if cores <= 0 {
		return nil, 0, errs.Configuration("cores must be positive, got %d", cores)
	}

	info, err := Inspect(path, method)
	if err != nil {
		return nil, 0, err
	}
	m, err := resolve(path, info.Method)
	if err != nil {
		return nil, 0, err
	}
	c, err := m.Spec.New(codec.DefaultOptions())
	if err != nil {
		return nil, 0, err
	}
	src, err := openSource(path, m)
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	r := &run{
		engine: e,
		job:    Job{Input: path, Cores: cores},
		logger: e.logger.With(zap.String("path", path), zap.String("method", m.Spec.Name)),
		method: m.Spec.Name,
	}

	var total int64
	work := func(ctx context.Context, i int) (int64, error) {
		cw := progress.NewCountingWriter(io.Discard)
		err := src.decode(ctx, c, i, cw)
		return cw.Count(), err
	}
	flush := func(i int, n int64) error {
		total += n
		return nil
	}
	if err := scheduler.Run(ctx, r.schedulerConfig(), src.count(), work, flush); err != nil {
		return info, total, err
	}
	return info, total, nil
}
