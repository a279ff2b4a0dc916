// Package progress reports job progress to a callback and provides a
// throttled printer for interactive use.
package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// Phase identifies the stage a job is in.
type Phase string

const (
	PhasePlan  Phase = "plan"
	PhaseChunk Phase = "chunk"
	PhaseDone  Phase = "done"
	PhaseError Phase = "error"
)

// Event is a progress update for one file.
type Event struct {
	Phase       Phase
	Path        string
	Method      string
	ChunksDone  int
	ChunksTotal int
	BytesIn     int64
	BytesOut    int64
	StartTime   time.Time
	Err         error
}

// Func receives progress events. It may be called from several goroutines.
type Func func(Event)

// Nop discards events.
func Nop(Event) {}

// DefaultInterval is the minimum gap between two chunk lines of a Printer.
const DefaultInterval = 250 * time.Millisecond

// Printer returns a Func that writes human-readable progress to w. Chunk
// events are throttled to one per interval; plan, done and error events
// are always written.
func Printer(w io.Writer, interval time.Duration) Func {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var mu sync.Mutex

	return func(e Event) {
		if e.Phase == PhaseChunk && e.ChunksDone < e.ChunksTotal && !limiter.Allow() {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		switch e.Phase {
		case PhasePlan:
			fmt.Fprintf(w, "[%s] %s, %d chunks (%s)\n",
				e.Method, e.Path, e.ChunksTotal, humanize.IBytes(uint64(max(e.BytesIn, 0))))
		case PhaseChunk:
			fmt.Fprintf(w, "[%s] %s: %d / %d chunks\n", e.Method, e.Path, e.ChunksDone, e.ChunksTotal)
		case PhaseDone:
			fmt.Fprintf(w, "[%s] %s: %s -> %s in %s\n", e.Method, e.Path,
				humanize.IBytes(uint64(max(e.BytesIn, 0))),
				humanize.IBytes(uint64(max(e.BytesOut, 0))),
				FormatDuration(time.Since(e.StartTime)))
		case PhaseError:
			fmt.Fprintf(w, "[%s] %s: %v\n", e.Method, e.Path, e.Err)
		}
	}
}

// FormatDuration formats d for humans.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// CountingWriter counts bytes passed to an underlying writer.
type CountingWriter struct {
	w io.Writer
	n atomic.Int64
}

// NewCountingWriter wraps w.
func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes written so far.
func (c *CountingWriter) Count() int64 {
	return c.n.Load()
}
