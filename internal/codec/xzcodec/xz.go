// Package xzcodec provides an xz compression codec.
//
// Independently compressed xz streams may be concatenated into one valid
// file; the reader decodes all of them.
package xzcodec

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/ulikunitz/xz"

	"github.com/chopzip/chopzip/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements xz compression.
type Codec struct {
	config xz.WriterConfig
}

// New returns a new xz codec. The level selects the dictionary size the
// same way the xz presets do; the "dict" option overrides it.
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate("dict"); err != nil {
		return nil, fmt.Errorf("xz: %w", err)
	}

	dictCap, err := DictCap(opts)
	if err != nil {
		return nil, fmt.Errorf("xz: %w", err)
	}

	cfg := xz.WriterConfig{DictCap: dictCap, CheckSum: xz.CRC64}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("xz: %w", err)
	}
	return &Codec{config: cfg}, nil
}

// Reader wraps r to decompress xz data.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

// Writer wraps w to compress data with xz.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return c.config.NewWriter(w)
}

// Extension returns "xz".
func (c *Codec) Extension() string {
	return "xz"
}

// presetDict mirrors the dictionary sizes of xz -1 .. -9.
var presetDict = [...]int{
	1: 1 << 20,
	2: 2 << 20,
	3: 4 << 20,
	4: 4 << 20,
	5: 8 << 20,
	6: 8 << 20,
	7: 16 << 20,
	8: 32 << 20,
	9: 64 << 20,
}

// DictCap returns the dictionary capacity for opts. It is shared with the
// lzma codec, which uses the same presets.
func DictCap(opts codec.Options) (int, error) {
	if v, ok := opts.Param("dict"); ok {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return 0, fmt.Errorf("dict %q: %w", v, err)
		}
		return int(size), nil
	}
	return presetDict[opts.Level], nil
}
