// Package lzmacodec provides a legacy .lzma (LZMA alone) codec.
//
// LZMA alone streams end with an end-of-stream marker and cannot be
// concatenated, so chunks are bundled in a container instead.
package lzmacodec

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/codec/xzcodec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements LZMA alone compression.
type Codec struct {
	config lzma.WriterConfig
}

// New returns a new lzma codec. Levels and the "dict" option behave as for xz.
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate("dict"); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}

	dictCap, err := xzcodec.DictCap(opts)
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}

	cfg := lzma.WriterConfig{DictCap: dictCap, EOSMarker: true}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	return &Codec{config: cfg}, nil
}

// Reader wraps r to decompress lzma data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(lr), nil
}

// Writer wraps w to compress data with lzma.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return c.config.NewWriter(w)
}

// Extension returns "lzma".
func (c *Codec) Extension() string {
	return "lzma"
}
