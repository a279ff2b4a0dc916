// Package plan computes how an input is partitioned into chunks.
package plan

import (
	"fmt"

	"github.com/chopzip/chopzip/internal/errs"
)

// Default chunk size bounds.
const (
	DefaultMinChunkSize int64 = 1 << 20 // 1 MiB
	DefaultMaxChunkSize int64 = 1 << 30 // 1 GiB
)

// Bounds clamps the core-derived chunk size.
type Bounds struct {
	Min int64
	Max int64
}

// DefaultBounds returns the default chunk size bounds.
func DefaultBounds() Bounds {
	return Bounds{Min: DefaultMinChunkSize, Max: DefaultMaxChunkSize}
}

// Validate checks that the bounds are positive and ordered.
func (b Bounds) Validate() error {
	if b.Min <= 0 || b.Max <= 0 {
		return errs.Configuration("chunk size bounds must be positive (min %d, max %d)", b.Min, b.Max)
	}
	if b.Min > b.Max {
		return errs.Configuration("min chunk size %d exceeds max chunk size %d", b.Min, b.Max)
	}
	return nil
}

// Chunk is one slice of the input: [Offset, Offset+Length).
type Chunk struct {
	Index  int
	Offset int64
	Length int64
}

// End returns the offset one past the last byte of the chunk.
func (c Chunk) End() int64 {
	return c.Offset + c.Length
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d, %d)", c.Index, c.Offset, c.End())
}

// Request holds the planner inputs.
type Request struct {
	// Size is the input size in bytes.
	Size int64
	// Cores is the requested worker count.
	Cores int
	// ChunkSize, when positive, is used verbatim instead of the
	// core-derived size; bounds do not apply to it.
	ChunkSize int64
	Bounds    Bounds
}

// ChunkSize returns the chunk size the planner will use for req.
func ChunkSize(req Request) (int64, error) {
	if req.Cores <= 0 {
		return 0, errs.Configuration("core count must be positive, got %d", req.Cores)
	}
	if req.Size < 0 {
		return 0, errs.Input("negative input size %d", req.Size)
	}
	if req.ChunkSize < 0 {
		return 0, errs.Configuration("chunk size must be positive, got %d", req.ChunkSize)
	}
	if req.ChunkSize > 0 {
		return req.ChunkSize, nil
	}
	if err := req.Bounds.Validate(); err != nil {
		return 0, err
	}

	size := ceilDiv(req.Size, int64(req.Cores))
	return min(max(size, req.Bounds.Min), req.Bounds.Max), nil
}

// Plan partitions [0, req.Size) into ordered, gapless chunks. It always
// returns at least one chunk; a zero-byte input yields one empty chunk.
func Plan(req Request) ([]Chunk, error) {
	size, err := ChunkSize(req)
	if err != nil {
		return nil, err
	}

	if req.Size == 0 {
		return []Chunk{{Index: 0}}, nil
	}

	n := ceilDiv(req.Size, size)
	chunks := make([]Chunk, 0, n)
	for i := int64(0); i < n; i++ {
		offset := i * size
		chunks = append(chunks, Chunk{
			Index:  int(i),
			Offset: offset,
			Length: min(size, req.Size-offset),
		})
	}
	return chunks, nil
}

// Verify checks that chunks tile [0, size) in index order without gaps
// or overlap.
func Verify(chunks []Chunk, size int64) error {
	if len(chunks) == 0 {
		return errs.Assembly("empty chunk plan")
	}
	var next int64
	for i, c := range chunks {
		if c.Index != i {
			return errs.Assembly("chunk at position %d has index %d", i, c.Index)
		}
		if c.Offset != next {
			return errs.Assembly("%s does not start at %d", c, next)
		}
		if c.Length < 0 {
			return errs.Assembly("%s has negative length", c)
		}
		next = c.End()
	}
	if next != size {
		return errs.Assembly("chunks cover %d bytes, input has %d", next, size)
	}
	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
