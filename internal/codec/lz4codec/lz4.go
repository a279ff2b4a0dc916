// Package lz4codec provides an LZ4 frame codec.
package lz4codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/chopzip/chopzip/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements LZ4 frame compression.
type Codec struct {
	options []lz4.Option
}

var levels = [...]lz4.CompressionLevel{
	1: lz4.Level1,
	2: lz4.Level2,
	3: lz4.Level3,
	4: lz4.Level4,
	5: lz4.Level5,
	6: lz4.Level6,
	7: lz4.Level7,
	8: lz4.Level8,
	9: lz4.Level9,
}

var blockSizes = map[string]lz4.BlockSize{
	"64kb":  lz4.Block64Kb,
	"256kb": lz4.Block256Kb,
	"1mb":   lz4.Block1Mb,
	"4mb":   lz4.Block4Mb,
}

// New returns a new lz4 codec. Options: "block" (64KB, 256KB, 1MB, 4MB)
// and "checksum" (content checksum, default true).
func New(opts codec.Options) (*Codec, error) {
	if err := opts.Validate("block", "checksum"); err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}

	options := []lz4.Option{
		lz4.CompressionLevelOption(levels[opts.Level]),
		lz4.ConcurrencyOption(1),
	}
	if v, ok := opts.Param("block"); ok {
		size, ok := blockSizes[strings.ToLower(v)]
		if !ok {
			return nil, fmt.Errorf("lz4: unsupported block size %q", v)
		}
		options = append(options, lz4.BlockSizeOption(size))
	}
	checksum := true
	if v, ok := opts.Param("checksum"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("lz4: checksum %q: %w", v, err)
		}
		checksum = b
	}
	options = append(options, lz4.ChecksumOption(checksum))

	return &Codec{options: options}, nil
}

// Reader wraps r to decompress lz4 frames.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// Writer wraps w to compress data into an lz4 frame.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(c.options...); err != nil {
		return nil, err
	}
	return zw, nil
}

// Extension returns "lz4".
func (c *Codec) Extension() string {
	return "lz4"
}
