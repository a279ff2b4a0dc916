// Package zstdcodec provides a zstd compression codec.
package zstdcodec

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/chopzip/chopzip/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression.
type Codec struct {
	encoderOptions []zstd.EOption
}

// New returns a new zstd codec. The "window" option sets the encoder
// window size (power of two, e.g. "8MiB").
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate("window"); err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}

	eopts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		// Parallelism comes from chunking; one goroutine per encoder.
		zstd.WithEncoderConcurrency(1),
		// Empty chunks still produce a decodable frame.
		zstd.WithZeroFrames(true),
	}
	if v, ok := opts.Param("window"); ok {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return nil, fmt.Errorf("zstd: window %q: %w", v, err)
		}
		eopts = append(eopts, zstd.WithWindowSize(int(size)))
	}

	// Surface option errors at construction rather than per chunk.
	probe, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	probe.Close()

	return &Codec{encoderOptions: eopts}, nil
}

// Reader wraps r to decompress zstd data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// Writer wraps w to compress data with zstd.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, c.encoderOptions...)
}

// Extension returns "zst".
func (c *Codec) Extension() string {
	return "zst"
}
