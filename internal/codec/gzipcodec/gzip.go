// Package gzipcodec provides a gzip compression codec.
//
// Gzip members may be concatenated; the reader decodes every member in turn.
package gzipcodec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/chopzip/chopzip/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements gzip compression.
type Codec struct {
	level int
}

// New returns a new gzip codec. Gzip takes no extra options.
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return &Codec{level: opts.Level}, nil
}

// Reader wraps r to decompress gzip data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Writer wraps w to compress data with gzip.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, c.level)
}

// Extension returns "gz".
func (c *Codec) Extension() string {
	return "gz"
}
