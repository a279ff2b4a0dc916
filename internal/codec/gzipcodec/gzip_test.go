package gzipcodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/chopzip/chopzip/internal/codec"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(codec.DefaultOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func compress(t *testing.T, c *Codec, data []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	writer, err := c.Writer(&compressed)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return compressed.Bytes()
}

func decompress(t *testing.T, c *Codec, data []byte) []byte {
	t.Helper()
	reader, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return out
}

func TestCodec_Extension(t *testing.T) {
	c := newCodec(t)
	if got := c.Extension(); got != "gz" {
		t.Errorf("Extension() = %q, want %q", got, "gz")
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newCodec(t)
	original := []byte("Hello, World! This is test data for gzip compression.")

	if got := decompress(t, c, compress(t, c, original)); !bytes.Equal(got, original) {
		t.Errorf("Round-trip failed: got %q, want %q", got, original)
	}
}

func TestCodec_RoundTrip_EmptyData(t *testing.T) {
	c := newCodec(t)

	if got := decompress(t, c, compress(t, c, nil)); len(got) != 0 {
		t.Errorf("Round-trip failed for empty data: got %q", got)
	}
}

func TestCodec_ConcatenatedMembers(t *testing.T) {
	c := newCodec(t)
	first := bytes.Repeat([]byte("first "), 1000)
	second := bytes.Repeat([]byte("second "), 1000)

	joined := append(compress(t, c, first), compress(t, c, second)...)

	want := append(append([]byte{}, first...), second...)
	if got := decompress(t, c, joined); !bytes.Equal(got, want) {
		t.Errorf("concatenated members decoded to %d bytes, want %d", len(got), len(want))
	}
}

func TestNew_RejectsOptions(t *testing.T) {
	if _, err := New(codec.Options{Level: 0}); err == nil {
		t.Error("New() expected error for level 0")
	}
	if _, err := New(codec.Options{Level: 3, Params: map[string]string{"x": "1"}}); err == nil {
		t.Error("New() expected error for unknown option")
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	c := newCodec(t)

	_, err := c.Reader(bytes.NewReader([]byte("not gzip data")))
	if err == nil {
		t.Error("Reader() expected error for invalid gzip data, got nil")
	}
}
