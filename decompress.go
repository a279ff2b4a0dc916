package chopzip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chopzip/chopzip/internal/assemble"
	"github.com/chopzip/chopzip/internal/cleanup"
	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/registry"
	"github.com/chopzip/chopzip/internal/errs"
	"github.com/chopzip/chopzip/internal/progress"
	"github.com/chopzip/chopzip/internal/scheduler"
	"github.com/chopzip/chopzip/internal/split"
)

// resolve determines the codec spec and artifact form of path. An explicit
// method must match one of its extensions so the output name can be
// derived.
func resolve(path, method string) (registry.Match, error) {
	if method == "" {
		return registry.Infer(path)
	}
	spec, err := registry.Lookup(method)
	if err != nil {
		return registry.Match{}, err
	}
	m, ok := spec.Match(path)
	if !ok {
		return registry.Match{}, errs.Input("%q does not end in a %s extension", path, spec.Name)
	}
	return m, nil
}

// source yields the compressed streams of an artifact: the members of a
// container, or the whole file as a single stream.
type source struct {
	path      string
	container *assemble.Container
}

func openSource(path string, m registry.Match) (*source, error) {
	if !m.Container {
		return &source{path: path}, nil
	}
	c, err := assemble.OpenContainer(path)
	if err != nil {
		return nil, err
	}
	if c.Manifest.Method != m.Spec.Name {
		c.Close()
		return nil, errs.Assembly("container holds %s members, expected %s", c.Manifest.Method, m.Spec.Name)
	}
	return &source{path: path, container: c}, nil
}

func (s *source) count() int {
	if s.container != nil {
		return s.container.Manifest.Count
	}
	return 1
}

// decode decompresses stream i into w, verifying container members
// against the manifest.
func (s *source) decode(ctx context.Context, c codec.Codec, i int, w io.Writer) error {
	var (
		in       io.Reader
		verifier *assemble.Verifier
	)
	if s.container != nil {
		in = s.container.Open(i)
		verifier = assemble.NewVerifier(w, s.container.Entries[i].ChunkInfo)
		w = verifier
	} else {
		f, err := os.Open(s.path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rd, err := c.Reader(in)
	if err != nil {
		return fmt.Errorf("decompressing chunk %d: %w", i, err)
	}
	defer rd.Close()

	if _, err := io.Copy(w, ctxReader{ctx: ctx, r: rd}); err != nil {
		return fmt.Errorf("decompressing chunk %d: %w", i, err)
	}
	if verifier != nil {
		return verifier.Check()
	}
	return nil
}

func (s *source) Close() error {
	if s.container != nil {
		return s.container.Close()
	}
	return nil
}

func (r *run) decompress(ctx context.Context) (*Result, error) {
	job := r.job
	r.method = job.Method

	m, err := resolve(job.Input, job.Method)
	if err != nil {
		return nil, err
	}
	r.method = m.Spec.Name
	c, err := r.newCodec(m.Spec)
	if err != nil {
		return nil, err
	}
	if err := r.checkCores(); err != nil {
		return nil, err
	}
	size, err := statInput(job.Input)
	if err != nil {
		return nil, err
	}
	final := m.Stem(job.Input)
	if final == "" || os.IsPathSeparator(final[len(final)-1]) {
		return nil, errs.Input("cannot derive an output name from %q", job.Input)
	}
	if err := checkOutput(final, job.Force); err != nil {
		return nil, err
	}

	// Containers are validated before anything is written.
	src, err := openSource(job.Input, m)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	n := src.count()

	chunkDir := job.ChunkDir
	if chunkDir == "" {
		chunkDir = filepath.Dir(job.Input)
	}
	ws, err := split.Prepare(chunkDir)
	if err != nil {
		return nil, err
	}

	r.logger = r.logger.With(zap.String("method", m.Spec.Name))
	r.logger.Debug("decompressing",
		zap.Int64("size", size),
		zap.Int("chunks", n),
		zap.Bool("container", m.Container),
	)
	r.engine.opts.progress(progress.Event{
		Phase:       progress.PhasePlan,
		Path:        job.Input,
		Method:      m.Spec.Name,
		ChunksTotal: n,
		BytesIn:     size,
	})

	out, err := assemble.Create(final, job.Force)
	if err != nil {
		return nil, err
	}
	defer out.Abort()
	counter := progress.NewCountingWriter(out)
	concat := assemble.NewConcatWriter(counter)

	var temps []string
	base := filepath.Base(final)
	work := func(ctx context.Context, i int) (string, error) {
		path := ws.Path(split.ChunkName(base, i, n))
		f, err := os.Create(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		if err := src.decode(ctx, c, i, f); err != nil {
			return "", err
		}
		return path, f.Close()
	}
	flush := func(i int, path string) error {
		temps = append(temps, path)
		if err := copyFile(func(f io.Reader) error { return concat.Append(i, f) }, path); err != nil {
			return err
		}
		r.chunkDone(i+1, n)
		return nil
	}

	if err := scheduler.Run(ctx, r.schedulerConfig(), n, work, flush); err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	r.mark("Decompressed " + filepath.Base(job.Input))

	r.cleanup(cleanup.Plan{
		Temporary: temps,
		Input:     job.Input,
		KeepInput: job.KeepInput,
		Dirs:      ws.CreatedDirs(),
	})

	return &Result{
		Path:      final,
		Method:    m.Spec.Name,
		Container: m.Container,
		Chunks:    n,
		BytesIn:   size,
		BytesOut:  counter.Count(),
	}, nil
}
