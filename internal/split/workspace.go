package split

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chopzip/chopzip/internal/errs"
)

// Workspace is the directory that holds a job's temporary chunk files.
type Workspace struct {
	dir     string
	created []string
}

// Prepare returns a workspace rooted at dir, creating it and any missing
// parents. The directories this call created are remembered so cleanup
// only removes directories it owns.
func Prepare(dir string) (*Workspace, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, errs.Capacity("chunk directory %q is not a directory", dir)
		}
		return &Workspace{dir: dir}, nil
	case errors.Is(err, fs.ErrNotExist):
		missing := missingDirs(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Capacity("creating chunk directory %q: %w", dir, err)
		}
		return &Workspace{dir: dir, created: missing}, nil
	default:
		return nil, errs.Capacity("checking chunk directory %q: %w", dir, err)
	}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Created reports whether Prepare created the directory.
func (w *Workspace) Created() bool {
	return len(w.created) > 0
}

// CreatedDirs returns the directories Prepare created, deepest first.
func (w *Workspace) CreatedDirs() []string {
	return w.created
}

// missingDirs lists dir and each of its ancestors that do not exist yet,
// deepest first.
func missingDirs(dir string) []string {
	var missing []string
	for p := filepath.Clean(dir); ; {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		missing = append(missing, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return missing
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// ChunkName returns the deterministic name of chunk index out of count
// for an input whose base name is base: "<base>.chunk.<NNN>". The index is
// zero-padded to at least three digits and wide enough for count.
func ChunkName(base string, index, count int) string {
	width := max(3, len(strconv.Itoa(max(count-1, 0))))
	return fmt.Sprintf("%s.chunk.%0*d", base, width, index)
}
