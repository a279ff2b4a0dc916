package assemble

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chopzip/chopzip/internal/errs"
)

func digestOf(data []byte) Digest {
	h := NewHasher()
	h.Write(data)
	return h.Sum()
}

func TestOutput_Commit(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.xz")

	out, err := Create(final, false)
	require.NoError(t, err)
	assert.FileExists(t, final+PartialSuffix)
	assert.NoFileExists(t, final)

	_, err = out.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, out.Commit())
	out.Abort()

	assert.NoFileExists(t, final+PartialSuffix)
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	assert.ErrorIs(t, out.Commit(), errs.ErrAssembly)
}

func TestOutput_CommitFailureIsCapacity(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.xz")
	require.NoError(t, os.Mkdir(final, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(final, "keep"), []byte("x"), 0o644))

	out, err := Create(final, true)
	require.NoError(t, err)
	_, err = out.Write([]byte("payload"))
	require.NoError(t, err)

	err = out.Commit()
	assert.ErrorIs(t, err, errs.ErrCapacity)
	assert.NoFileExists(t, final+PartialSuffix)
	assert.DirExists(t, final)
}

func TestOutput_Abort(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.xz")

	out, err := Create(final, false)
	require.NoError(t, err)
	out.Abort()

	assert.NoFileExists(t, final+PartialSuffix)
	assert.NoFileExists(t, final)
}

func TestOutput_Exists(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.xz")
	require.NoError(t, os.WriteFile(final, []byte("old"), 0o644))

	_, err := Create(final, false)
	assert.ErrorIs(t, err, errs.ErrInput)

	out, err := Create(final, true)
	require.NoError(t, err)
	_, err = out.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, out.Commit())

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestConcatWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewConcatWriter(&buf)

	require.NoError(t, w.Append(0, strings.NewReader("ab")))
	require.NoError(t, w.Append(1, strings.NewReader("cd")))

	err := w.Append(3, strings.NewReader("zz"))
	assert.ErrorIs(t, err, errs.ErrAssembly)
	err = w.Append(1, strings.NewReader("zz"))
	assert.ErrorIs(t, err, errs.ErrAssembly)

	require.NoError(t, w.Append(2, strings.NewReader("e")))
	assert.Equal(t, "abcde", buf.String())
	assert.Equal(t, 3, w.Count())
	assert.Equal(t, int64(5), w.Written())
}

// writeContainer builds a container whose members hold the given payloads
// verbatim, as if compressed by the identity codec.
func writeContainer(t *testing.T, path string, payloads []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := NewContainerWriter(f, "none")
	for i, p := range payloads {
		m := Member{
			Name:       "in.chunk.00" + string(rune('0'+i)) + ".raw",
			Length:     int64(len(p)),
			Digest:     digestOf([]byte(p)),
			Compressed: int64(len(p)),
		}
		require.NoError(t, w.Add(i, m, strings.NewReader(p)))
	}
	require.NoError(t, w.Close())
}

func TestContainer_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.lz4.tar")
	payloads := []string{"alpha", "", "gamma-gamma"}
	writeContainer(t, path, payloads)

	c, err := OpenContainer(path)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, ManifestVersion, c.Manifest.Version)
	assert.Equal(t, "none", c.Manifest.Method)
	assert.Equal(t, 3, c.Manifest.Count)
	assert.Equal(t, int64(16), c.Manifest.Size)
	require.Len(t, c.Entries, 3)

	for i, p := range payloads {
		assert.Equal(t, i, c.Entries[i].Index)
		data, err := io.ReadAll(c.Open(i))
		require.NoError(t, err)
		assert.Equal(t, p, string(data))

		v := NewVerifier(nil, c.Entries[i].ChunkInfo)
		_, err = v.Write(data)
		require.NoError(t, err)
		assert.NoError(t, v.Check())
	}
}

func TestContainer_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.lz4.tar")
	writeContainer(t, path, nil)

	c, err := OpenContainer(path)
	require.NoError(t, err)
	defer c.Close()
	assert.Zero(t, c.Manifest.Count)
	assert.Empty(t, c.Entries)
}

func TestContainerWriter_Order(t *testing.T) {
	w := NewContainerWriter(io.Discard, "lz4")
	err := w.Add(1, Member{Name: "a"}, strings.NewReader(""))
	assert.ErrorIs(t, err, errs.ErrAssembly)

	err = w.Add(0, Member{Name: ManifestName}, strings.NewReader(""))
	assert.ErrorIs(t, err, errs.ErrAssembly)

	require.NoError(t, w.Close())
	err = w.Add(0, Member{Name: "a"}, strings.NewReader(""))
	assert.ErrorIs(t, err, errs.ErrAssembly)
}

type rawMember struct {
	name string
	data []byte
}

func writeRawTar(t *testing.T, path string, members []rawMember) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     m.name,
			Size:     int64(len(m.data)),
			Mode:     0o644,
		}))
		_, err := tw.Write(m.data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func manifestBytes(t *testing.T, m *Manifest) []byte {
	t.Helper()
	data, err := MarshalManifest(m)
	require.NoError(t, err)
	return data
}

func TestOpenContainer_Invalid(t *testing.T) {
	good := func() *Manifest {
		return &Manifest{
			Version: ManifestVersion,
			Method:  "lz4",
			Size:    3,
			Count:   2,
			Chunks: []ChunkInfo{
				{Index: 0, Member: "a", Length: 1, Compressed: 1},
				{Index: 1, Member: "b", Length: 2, Compressed: 2},
			},
		}
	}
	members := func(m *Manifest) []rawMember {
		return []rawMember{
			{name: "a", data: []byte("x")},
			{name: "b", data: []byte("yy")},
			{name: ManifestName, data: manifestBytes(t, m)},
		}
	}

	tests := []struct {
		name    string
		members func() []rawMember
	}{
		{
			name: "missing manifest",
			members: func() []rawMember {
				return members(good())[:2]
			},
		},
		{
			name: "declared count larger than members",
			members: func() []rawMember {
				m := good()
				m.Count = 3
				m.Chunks = append(m.Chunks, ChunkInfo{Index: 2, Member: "c"})
				return members(m)
			},
		},
		{
			name: "count disagrees with list",
			members: func() []rawMember {
				m := good()
				m.Count = 1
				return members(m)
			},
		},
		{
			name: "missing member",
			members: func() []rawMember {
				all := members(good())
				return []rawMember{all[0], all[2]}
			},
		},
		{
			name: "index gap",
			members: func() []rawMember {
				m := good()
				m.Chunks[1].Index = 2
				return members(m)
			},
		},
		{
			name: "member name mismatch",
			members: func() []rawMember {
				m := good()
				m.Chunks[0].Member = "z"
				return members(m)
			},
		},
		{
			name: "compressed size mismatch",
			members: func() []rawMember {
				m := good()
				m.Chunks[1].Compressed = 5
				return members(m)
			},
		},
		{
			name: "size mismatch",
			members: func() []rawMember {
				m := good()
				m.Size = 10
				return members(m)
			},
		},
		{
			name: "unsupported version",
			members: func() []rawMember {
				m := good()
				m.Version = 99
				return members(m)
			},
		},
		{
			name: "member after manifest",
			members: func() []rawMember {
				return append(members(good()), rawMember{name: "c", data: []byte("z")})
			},
		},
		{
			name: "garbage manifest",
			members: func() []rawMember {
				all := members(good())
				all[2].data = []byte{0xff, 0x00}
				return all
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.lz4.tar")
			writeRawTar(t, path, tt.members())

			_, err := OpenContainer(path)
			assert.ErrorIs(t, err, errs.ErrAssembly)
		})
	}
}

func TestOpenContainer_Missing(t *testing.T) {
	_, err := OpenContainer(filepath.Join(t.TempDir(), "nope.lz4.tar"))
	assert.ErrorIs(t, err, errs.ErrInput)
}

func TestVerifier_Mismatch(t *testing.T) {
	info := ChunkInfo{Index: 4, Length: 3, Digest: digestOf([]byte("abc"))}

	short := NewVerifier(nil, info)
	short.Write([]byte("ab"))
	assert.ErrorIs(t, short.Check(), errs.ErrCodec)

	wrong := NewVerifier(nil, info)
	wrong.Write([]byte("abd"))
	assert.ErrorIs(t, wrong.Check(), errs.ErrCodec)

	var buf bytes.Buffer
	ok := NewVerifier(&buf, info)
	ok.Write([]byte("abc"))
	assert.NoError(t, ok.Check())
	assert.Equal(t, "abc", buf.String())
}

func TestManifest_Deterministic(t *testing.T) {
	m := &Manifest{Version: 1, Method: "lz4", Size: 1, Count: 1, Chunks: []ChunkInfo{{Member: "a", Length: 1, Compressed: 1}}}
	a := manifestBytes(t, m)
	b := manifestBytes(t, m)
	assert.Equal(t, a, b)

	got, err := UnmarshalManifest(a)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}
