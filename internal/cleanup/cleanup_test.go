package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	chunks := filepath.Join(root, "chunks")
	require.NoError(t, os.Mkdir(chunks, 0o755))

	p := Plan{
		Temporary: []string{
			touch(t, filepath.Join(chunks, "in.chunk.000")),
			touch(t, filepath.Join(chunks, "in.chunk.001")),
		},
		Input: touch(t, filepath.Join(root, "in")),
		Dirs:  []string{chunks},
	}

	require.NoError(t, Run(p, nil))
	assert.NoFileExists(t, p.Temporary[0])
	assert.NoFileExists(t, p.Temporary[1])
	assert.NoFileExists(t, p.Input)
	assert.NoDirExists(t, chunks)

	// Running again finds nothing to do.
	require.NoError(t, Run(p, nil))
}

func TestRun_KeepInput(t *testing.T) {
	root := t.TempDir()
	input := touch(t, filepath.Join(root, "in"))

	require.NoError(t, Run(Plan{Input: input, KeepInput: true}, nil))
	data, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestRun_DirNotCreated(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "shared")
	require.NoError(t, os.Mkdir(dir, 0o755))

	require.NoError(t, Run(Plan{}, nil))
	assert.DirExists(t, dir)
}

func TestRun_CreatedParents(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "a")
	inner := filepath.Join(outer, "b")
	require.NoError(t, os.MkdirAll(inner, 0o755))

	require.NoError(t, Run(Plan{Dirs: []string{inner, outer}}, nil))
	assert.NoDirExists(t, outer)
	assert.DirExists(t, root)
}

func TestRun_DirNotEmptyIsWarning(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "chunks")
	require.NoError(t, os.Mkdir(dir, 0o755))
	touch(t, filepath.Join(dir, "other"))

	core, logs := observer.New(zapcore.WarnLevel)
	require.NoError(t, Run(Plan{Dirs: []string{dir, root}}, zap.New(core)))

	assert.DirExists(t, dir)
	assert.Equal(t, 1, logs.FilterMessage("chunk directory not removed").Len())
}
