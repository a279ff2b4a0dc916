package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := Printer(&buf, time.Hour)

	p(Event{Phase: PhasePlan, Method: "xz", Path: "big.log", ChunksTotal: 4, BytesIn: 4 << 20})
	p(Event{Phase: PhaseChunk, Method: "xz", Path: "big.log", ChunksDone: 1, ChunksTotal: 4})
	// Throttled.
	p(Event{Phase: PhaseChunk, Method: "xz", Path: "big.log", ChunksDone: 2, ChunksTotal: 4})
	// The last chunk is never throttled.
	p(Event{Phase: PhaseChunk, Method: "xz", Path: "big.log", ChunksDone: 4, ChunksTotal: 4})
	p(Event{Phase: PhaseDone, Method: "xz", Path: "big.log", BytesIn: 4 << 20, BytesOut: 1 << 10, StartTime: time.Now()})
	p(Event{Phase: PhaseError, Method: "xz", Path: "big.log", Err: errors.New("boom")})

	out := buf.String()
	for _, want := range []string{
		"[xz] big.log, 4 chunks (4.0 MiB)\n",
		"[xz] big.log: 1 / 4 chunks\n",
		"[xz] big.log: 4 / 4 chunks\n",
		"[xz] big.log: 4.0 MiB -> 1.0 KiB in ",
		"[xz] big.log: boom\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "2 / 4") {
		t.Errorf("throttled event was printed:\n%s", out)
	}
}

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCountingWriter(&buf)
	w.Write([]byte("hello"))
	w.Write([]byte(" world"))

	if got := w.Count(); got != 11 {
		t.Errorf("Count() = %d, want 11", got)
	}
	if buf.String() != "hello world" {
		t.Errorf("buffer = %q", buf.String())
	}
}
