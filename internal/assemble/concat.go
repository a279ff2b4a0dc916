package assemble

import (
	"io"

	"github.com/chopzip/chopzip/internal/errs"
)

// ConcatWriter appends chunk payloads to an artifact strictly in
// increasing index order.
type ConcatWriter struct {
	out     io.Writer
	next    int
	written int64
}

// NewConcatWriter returns a ConcatWriter appending to out.
func NewConcatWriter(out io.Writer) *ConcatWriter {
	return &ConcatWriter{out: out}
}

// Append copies r to the artifact as chunk index. Index must be exactly
// one past the previous append.
func (w *ConcatWriter) Append(index int, r io.Reader) error {
	if index != w.next {
		return errs.Assembly("chunk %d appended out of order, expected %d", index, w.next)
	}
	n, err := io.Copy(w.out, r)
	w.written += n
	if err != nil {
		return err
	}
	w.next++
	return nil
}

// Count returns the number of chunks appended.
func (w *ConcatWriter) Count() int {
	return w.next
}

// Written returns the number of bytes appended.
func (w *ConcatWriter) Written() int64 {
	return w.written
}
