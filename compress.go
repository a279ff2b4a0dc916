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
	"github.com/chopzip/chopzip/internal/plan"
	"github.com/chopzip/chopzip/internal/progress"
	"github.com/chopzip/chopzip/internal/scheduler"
	"github.com/chopzip/chopzip/internal/split"
)

// compressed is the result of compressing one chunk.
type compressed struct {
	path       string
	length     int64
	compressed int64
	digest     assemble.Digest
}

func (r *run) compress(ctx context.Context) (*Result, error) {
	job := r.job
	method := job.Method
	if method == "" {
		method = DefaultMethod
	}
	r.method = method

	// Everything up to the chunk directory is validation without side
	// effects.
	spec, err := registry.Lookup(method)
	if err != nil {
		return nil, err
	}
	c, err := r.newCodec(spec)
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
	final := job.Input + "." + spec.ArtifactExtension()
	if err := checkOutput(final, job.Force); err != nil {
		return nil, err
	}
	chunks, err := plan.Plan(plan.Request{
		Size:      size,
		Cores:     job.Cores,
		ChunkSize: job.ChunkSize,
		Bounds:    r.engine.opts.bounds,
	})
	if err != nil {
		return nil, err
	}

	chunkDir := job.ChunkDir
	if chunkDir == "" {
		chunkDir = filepath.Dir(job.Input)
	}
	ws, err := split.Prepare(chunkDir)
	if err != nil {
		return nil, err
	}

	r.logger = r.logger.With(zap.String("method", spec.Name))
	r.logger.Debug("compressing",
		zap.Int64("size", size),
		zap.Int("chunks", len(chunks)),
		zap.Int("cores", job.Cores),
		zap.Bool("container", !spec.Concatenable),
	)
	r.engine.opts.progress(progress.Event{
		Phase:       progress.PhasePlan,
		Path:        job.Input,
		Method:      spec.Name,
		ChunksTotal: len(chunks),
		BytesIn:     size,
	})

	units, err := split.Split(ctx, job.Input, chunks, ws, split.Options{
		Materialize: r.engine.opts.materialize,
		Workers:     job.Cores,
	})
	temps := split.MaterializedPaths(units)
	if err != nil {
		return nil, err
	}
	r.mark("Chopped " + filepath.Base(job.Input))

	out, err := assemble.Create(final, job.Force)
	if err != nil {
		return nil, err
	}
	defer out.Abort()
	counter := progress.NewCountingWriter(out)

	var (
		concat    *assemble.ConcatWriter
		container *assemble.ContainerWriter
	)
	if spec.Concatenable {
		concat = assemble.NewConcatWriter(counter)
	} else {
		container = assemble.NewContainerWriter(counter, spec.Name)
	}

	work := func(ctx context.Context, i int) (compressed, error) {
		u := units[i]
		return compressUnit(ctx, c, u, ws.Path(u.Name+"."+spec.Extension))
	}
	flush := func(i int, res compressed) error {
		temps = append(temps, res.path)
		err := copyFile(func(f io.Reader) error {
			if container != nil {
				return container.Add(i, assemble.Member{
					Name:       filepath.Base(res.path),
					Length:     res.length,
					Digest:     res.digest,
					Compressed: res.compressed,
				}, f)
			}
			return concat.Append(i, f)
		}, res.path)
		if err != nil {
			return err
		}
		r.chunkDone(i+1, len(units))
		return nil
	}

	if err := scheduler.Run(ctx, r.schedulerConfig(), len(units), work, flush); err != nil {
		return nil, err
	}
	r.mark("Compressed chunks of " + filepath.Base(job.Input))

	if container != nil {
		if err := container.Close(); err != nil {
			return nil, errs.Classify(errs.ErrAssembly, fmt.Errorf("finishing container: %w", err))
		}
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	r.mark("Joined chunks of " + filepath.Base(job.Input))

	r.cleanup(cleanup.Plan{
		Temporary: temps,
		Input:     job.Input,
		KeepInput: job.KeepInput,
		Dirs:      ws.CreatedDirs(),
	})

	return &Result{
		Path:      final,
		Method:    spec.Name,
		Container: !spec.Concatenable,
		Chunks:    len(units),
		BytesIn:   size,
		BytesOut:  counter.Count(),
	}, nil
}

// compressUnit compresses one chunk into dst.
func compressUnit(ctx context.Context, c codec.Codec, u split.Unit, dst string) (compressed, error) {
	src, err := u.Open()
	if err != nil {
		return compressed{}, err
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return compressed{}, err
	}
	defer f.Close()

	w, err := c.Writer(f)
	if err != nil {
		return compressed{}, err
	}
	hasher := assemble.NewHasher()
	n, err := io.Copy(w, io.TeeReader(ctxReader{ctx: ctx, r: src}, hasher))
	if err != nil {
		w.Close()
		return compressed{}, fmt.Errorf("compressing %s: %w", u.Chunk, err)
	}
	if err := w.Close(); err != nil {
		return compressed{}, fmt.Errorf("compressing %s: %w", u.Chunk, err)
	}
	if n != u.Chunk.Length {
		return compressed{}, fmt.Errorf("compressing %s: read %d bytes", u.Chunk, n)
	}

	info, err := f.Stat()
	if err != nil {
		return compressed{}, err
	}
	return compressed{
		path:       dst,
		length:     n,
		compressed: info.Size(),
		digest:     hasher.Sum(),
	}, nil
}

func (r *run) cleanup(p cleanup.Plan) {
	if err := cleanup.Run(p, r.logger); err != nil {
		r.logger.Warn("cleanup incomplete", zap.Error(err))
	}
}
