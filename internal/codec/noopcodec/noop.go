// Package noopcodec provides a no-op codec (no compression).
package noopcodec

import (
	"fmt"
	"io"

	"github.com/chopzip/chopzip/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec. The level is validated but ignored.
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("none: %w", err)
	}
	return &Codec{}, nil
}

// Reader returns r wrapped as a ReadCloser (no decompression).
// Closing it never closes r.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w wrapped as a WriteCloser (no compression).
// Closing it never closes w.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return &nopWriteCloser{w}, nil
}

// Extension returns "raw".
func (c *Codec) Extension() string {
	return "raw"
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
