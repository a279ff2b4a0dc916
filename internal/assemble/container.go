package assemble

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chopzip/chopzip/internal/errs"
)

// Member is a compressed chunk to be stored in a container.
type Member struct {
	Name string
	// Length and Digest describe the uncompressed chunk.
	Length int64
	Digest Digest
	// Compressed is the size of the member data.
	Compressed int64
}

// ContainerWriter writes chunk members to a tar stream in increasing
// index order, followed by the manifest.
type ContainerWriter struct {
	tw       *tar.Writer
	manifest Manifest
	modTime  time.Time
	closed   bool
}

// NewContainerWriter returns a writer producing a container for method.
func NewContainerWriter(out io.Writer, method string) *ContainerWriter {
	return &ContainerWriter{
		tw:       tar.NewWriter(out),
		manifest: Manifest{Version: ManifestVersion, Method: method},
		modTime:  time.Now().Truncate(time.Second),
	}
}

// Add stores r, which must yield exactly m.Compressed bytes, as chunk
// index. Index must be exactly one past the previous member.
func (w *ContainerWriter) Add(index int, m Member, r io.Reader) error {
	if w.closed {
		return errs.Assembly("container already closed")
	}
	if next := len(w.manifest.Chunks); index != next {
		return errs.Assembly("chunk %d added out of order, expected %d", index, next)
	}
	if m.Name == "" || m.Name == ManifestName {
		return errs.Assembly("invalid member name %q for chunk %d", m.Name, index)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     m.Name,
		Size:     m.Compressed,
		Mode:     0o644,
		ModTime:  w.modTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", m.Name, err)
	}
	if _, err := io.Copy(w.tw, r); err != nil {
		return fmt.Errorf("writing member %s: %w", m.Name, err)
	}

	w.manifest.Chunks = append(w.manifest.Chunks, ChunkInfo{
		Index:      index,
		Member:     m.Name,
		Length:     m.Length,
		Compressed: m.Compressed,
		Digest:     m.Digest,
	})
	w.manifest.Size += m.Length
	return nil
}

// Close appends the manifest and finishes the tar stream. It does not
// close the underlying writer.
func (w *ContainerWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.manifest.Count = len(w.manifest.Chunks)

	data, err := MarshalManifest(&w.manifest)
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     ManifestName,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  w.modTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing manifest header: %w", err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return w.tw.Close()
}

// Manifest returns the manifest accumulated so far.
func (w *ContainerWriter) Manifest() Manifest {
	return w.manifest
}

// Entry locates a member's data inside a container file.
type Entry struct {
	ChunkInfo
	Offset int64
}

// Container is an opened, validated container artifact. Member data can be
// read concurrently.
type Container struct {
	Manifest *Manifest
	Entries  []Entry

	file *os.File
}

// OpenContainer opens the container at path and validates its structure
// against the manifest before any member is read. Structural problems are
// reported as errs.ErrAssembly.
func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Input("opening container: %w", err)
	}
	c, err := readContainer(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// tarMember is a regular file found while scanning the tar stream.
type tarMember struct {
	name   string
	offset int64
	size   int64
}

func readContainer(f *os.File) (*Container, error) {
	tr := tar.NewReader(f)

	var (
		members  []tarMember
		manifest *Manifest
	)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Assembly("reading container: %w", err)
		}
		if manifest != nil {
			return nil, errs.Assembly("member %q follows the manifest", hdr.Name)
		}
		if hdr.Typeflag != tar.TypeReg {
			return nil, errs.Assembly("member %q is not a regular file", hdr.Name)
		}

		if hdr.Name == ManifestName {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return nil, errs.Assembly("reading manifest: %w", err)
			}
			manifest, err = UnmarshalManifest(buf.Bytes())
			if err != nil {
				return nil, errs.Assembly("%w", err)
			}
			continue
		}

		// The tar reader does not read ahead, so the file position is
		// the start of the member data.
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("locating member %q: %w", hdr.Name, err)
		}
		members = append(members, tarMember{name: hdr.Name, offset: offset, size: hdr.Size})
	}

	if manifest == nil {
		return nil, errs.Assembly("container has no %s", ManifestName)
	}
	if err := validate(manifest, members); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(members))
	for i, m := range members {
		entries[i] = Entry{ChunkInfo: manifest.Chunks[i], Offset: m.offset}
	}
	return &Container{Manifest: manifest, Entries: entries, file: f}, nil
}

// validate checks that the manifest describes exactly the members found,
// in order, with a gapless index sequence.
func validate(m *Manifest, members []tarMember) error {
	if m.Version != ManifestVersion {
		return errs.Assembly("unsupported manifest version %d", m.Version)
	}
	if m.Count != len(m.Chunks) {
		return errs.Assembly("manifest declares %d chunks but lists %d", m.Count, len(m.Chunks))
	}
	if m.Count != len(members) {
		return errs.Assembly("manifest declares %d chunks but container holds %d", m.Count, len(members))
	}

	var total int64
	for i, c := range m.Chunks {
		if c.Index != i {
			return errs.Assembly("manifest entry %d has index %d", i, c.Index)
		}
		if c.Length < 0 {
			return errs.Assembly("chunk %d has negative length", i)
		}
		if c.Member != members[i].name {
			return errs.Assembly("chunk %d is member %q, manifest says %q", i, members[i].name, c.Member)
		}
		if c.Compressed != members[i].size {
			return errs.Assembly("chunk %d is %d bytes, manifest says %d", i, members[i].size, c.Compressed)
		}
		total += c.Length
	}
	if total != m.Size {
		return errs.Assembly("chunk lengths sum to %d, manifest size is %d", total, m.Size)
	}
	return nil
}

// Open returns a reader over the compressed data of chunk index.
func (c *Container) Open(index int) io.Reader {
	e := c.Entries[index]
	return io.NewSectionReader(c.file, e.Offset, e.Compressed)
}

// Close releases the container file.
func (c *Container) Close() error {
	return c.file.Close()
}
