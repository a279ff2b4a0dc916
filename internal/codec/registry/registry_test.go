package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chopzip/chopzip/internal/codec"
	"github.com/chopzip/chopzip/internal/errs"
)

func TestLookup(t *testing.T) {
	for _, method := range Methods() {
		spec, err := Lookup(method)
		require.NoError(t, err, method)
		assert.Equal(t, method, spec.Name)
		assert.Equal(t, method, spec.Kind.String())

		c, err := spec.New(codec.DefaultOptions())
		require.NoError(t, err, method)
		assert.Equal(t, spec.Extension, c.Extension(), "codec extension must match the registry")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("bzip2")
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestSpec_NewInvalidOptions(t *testing.T) {
	spec, err := Lookup("xz")
	require.NoError(t, err)

	_, err = spec.New(codec.Options{Level: 12})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestSpec_ContainerInvariant(t *testing.T) {
	for _, method := range Methods() {
		spec, _ := Lookup(method)
		if spec.Concatenable {
			assert.Empty(t, spec.ContainerExtension, method)
			assert.Equal(t, spec.Extension, spec.ArtifactExtension(), method)
		} else {
			assert.NotEmpty(t, spec.ContainerExtension, method)
			assert.Equal(t, spec.ContainerExtension, spec.ArtifactExtension(), method)
		}
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		container bool
		stem      string
	}{
		{"report.xz", "xz", false, "report"},
		{"/data/report.xz", "xz", false, "/data/report"},
		{"archive.tar.gz", "gzip", false, "archive.tar"},
		{"x.zst", "zstd", false, "x"},
		{"x.lz4", "lz4", false, "x"},
		{"x.lz4.tar", "lz4", true, "x"},
		{"x.lzma", "lzma", false, "x"},
		{"x.lzma.tar", "lzma", true, "x"},
		{"x.raw", "none", false, "x"},
		{"x.lz", "lzip", false, "x"},
		{"x.tar.lz", "lzip", false, "x.tar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Infer(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.method, m.Spec.Name)
			assert.Equal(t, tt.container, m.Container)
			assert.Equal(t, tt.stem, m.Stem(tt.name))
		})
	}
}

func TestInfer_Unknown(t *testing.T) {
	for _, name := range []string{"report.unknownext", "report", "report.tar", "xz"} {
		_, err := Infer(name)
		assert.ErrorIs(t, err, errs.ErrInput, name)
	}
}

func TestSpec_Match(t *testing.T) {
	lz4, err := Lookup("lz4")
	require.NoError(t, err)

	m, ok := lz4.Match("/data/x.lz4.tar")
	require.True(t, ok)
	assert.True(t, m.Container)
	assert.Equal(t, "/data/x", m.Stem("/data/x.lz4.tar"))

	m, ok = lz4.Match("x.lz4")
	require.True(t, ok)
	assert.False(t, m.Container)

	_, ok = lz4.Match("x.xz")
	assert.False(t, ok)
}
