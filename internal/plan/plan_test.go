package plan

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chopzip/chopzip/internal/errs"
)

const mib = 1 << 20

func TestPlan_ConcreteScenario(t *testing.T) {
	chunks, err := Plan(Request{Size: 30 * mib, Cores: 4, Bounds: DefaultBounds()})
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.InDelta(t, 7.5*mib, float64(c.Length), 1)
	}
	require.NoError(t, Verify(chunks, 30*mib))
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		wantChunks int
		wantSize   int64
	}{
		{
			name:       "zero bytes",
			req:        Request{Size: 0, Cores: 4, Bounds: DefaultBounds()},
			wantChunks: 1,
			wantSize:   DefaultMinChunkSize,
		},
		{
			name:       "tiny input clamps to min",
			req:        Request{Size: 100, Cores: 8, Bounds: DefaultBounds()},
			wantChunks: 1,
			wantSize:   DefaultMinChunkSize,
		},
		{
			name:       "clamps to max",
			req:        Request{Size: 100, Cores: 1, Bounds: Bounds{Min: 1, Max: 30}},
			wantChunks: 4,
			wantSize:   30,
		},
		{
			name:       "uneven split",
			req:        Request{Size: 10, Cores: 3, Bounds: Bounds{Min: 1, Max: 100}},
			wantChunks: 3,
			wantSize:   4,
		},
		{
			name:       "more cores than bytes",
			req:        Request{Size: 3, Cores: 8, Bounds: Bounds{Min: 1, Max: 100}},
			wantChunks: 3,
			wantSize:   1,
		},
		{
			name:       "explicit chunk size bypasses bounds",
			req:        Request{Size: 1000, Cores: 2, ChunkSize: 64, Bounds: DefaultBounds()},
			wantChunks: 16,
			wantSize:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := ChunkSize(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, size)

			chunks, err := Plan(tt.req)
			require.NoError(t, err)
			assert.Len(t, chunks, tt.wantChunks)
			require.NoError(t, Verify(chunks, tt.req.Size))
		})
	}
}

func TestPlan_PartitionCompleteness(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		req := Request{
			Size:   rng.Int64N(1 << 24),
			Cores:  1 + rng.IntN(16),
			Bounds: Bounds{Min: 1 + rng.Int64N(4096), Max: 1 << 22},
		}
		if rng.IntN(4) == 0 {
			req.ChunkSize = 1 + rng.Int64N(1<<20)
		}

		chunks, err := Plan(req)
		require.NoError(t, err)

		var sum int64
		for i, c := range chunks {
			sum += c.Length
			if i+1 < len(chunks) {
				assert.Equal(t, c.End(), chunks[i+1].Offset)
			}
		}
		assert.Equal(t, req.Size, sum)

		size, _ := ChunkSize(req)
		if req.Size > 0 {
			assert.Equal(t, int((req.Size+size-1)/size), len(chunks))
		}
	}
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"zero cores", Request{Size: 10, Cores: 0, Bounds: DefaultBounds()}, errs.ErrConfiguration},
		{"negative cores", Request{Size: 10, Cores: -2, Bounds: DefaultBounds()}, errs.ErrConfiguration},
		{"zero cores with chunk size", Request{Size: 10, Cores: 0, ChunkSize: 5}, errs.ErrConfiguration},
		{"negative chunk size", Request{Size: 10, Cores: 1, ChunkSize: -1}, errs.ErrConfiguration},
		{"inverted bounds", Request{Size: 10, Cores: 1, Bounds: Bounds{Min: 10, Max: 5}}, errs.ErrConfiguration},
		{"missing bounds", Request{Size: 10, Cores: 1}, errs.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_DetectsGapsAndOverlap(t *testing.T) {
	good := []Chunk{{0, 0, 5}, {1, 5, 5}}
	require.NoError(t, Verify(good, 10))

	assert.ErrorIs(t, Verify([]Chunk{{0, 0, 5}, {1, 6, 4}}, 10), errs.ErrAssembly)
	assert.ErrorIs(t, Verify([]Chunk{{0, 0, 6}, {1, 5, 5}}, 10), errs.ErrAssembly)
	assert.ErrorIs(t, Verify([]Chunk{{0, 0, 5}, {2, 5, 5}}, 10), errs.ErrAssembly)
	assert.ErrorIs(t, Verify([]Chunk{{0, 0, 5}}, 10), errs.ErrAssembly)
	assert.ErrorIs(t, Verify(nil, 0), errs.ErrAssembly)
}
