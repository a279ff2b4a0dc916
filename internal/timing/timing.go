// Package timing records job milestones and chunk durations for the
// --timing summary.
package timing

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Milestone is a named point in time.
type Milestone struct {
	Name string
	At   time.Time
}

// Timer collects milestones and chunk durations. It is safe for
// concurrent use.
type Timer struct {
	now   func() time.Time
	start time.Time

	mu         sync.Mutex
	milestones []Milestone
	chunks     []float64
}

// New starts a timer.
func New() *Timer {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Timer {
	return &Timer{now: now, start: now()}
}

// Mark records a milestone. Repeated names get an "x" appended until
// unique.
func (t *Timer) Mark(name string) {
	if name == "" {
		name = "unk"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for slices.ContainsFunc(t.milestones, func(m Milestone) bool { return m.Name == name }) {
		name += "x"
	}
	t.milestones = append(t.milestones, Milestone{Name: name, At: t.now()})
}

// Chunk records the duration of one chunk operation.
func (t *Timer) Chunk(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = append(t.chunks, d.Seconds())
}

// Milestones returns the milestones recorded so far.
func (t *Timer) Milestones() []Milestone {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.milestones)
}

// ChunkStats returns the count, mean and standard deviation in seconds
// of the recorded chunk durations.
func (t *Timer) ChunkStats() (n int, mean, stddev float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n = len(t.chunks)
	switch n {
	case 0:
		return 0, 0, 0
	case 1:
		return 1, t.chunks[0], 0
	}
	mean, stddev = stat.MeanStdDev(t.chunks, nil)
	return n, mean, stddev
}

// WriteSummary writes a table of milestones with the time since start and
// since the previous milestone, followed by chunk statistics.
func (t *Timer) WriteSummary(w io.Writer) error {
	milestones := t.Milestones()

	width := 9
	for _, m := range milestones {
		width = max(width, len(m.Name)+1)
	}

	if _, err := fmt.Fprintf(w, "\n%8s %*s %8s\n", "Time", width, "Milestone", "Elapsed"); err != nil {
		return err
	}
	prev := t.start
	for _, m := range milestones {
		if _, err := fmt.Fprintf(w, "%9.2f %*s %9.2f\n",
			m.At.Sub(t.start).Seconds(), width, m.Name, m.At.Sub(prev).Seconds()); err != nil {
			return err
		}
		prev = m.At
	}

	if n, mean, stddev := t.ChunkStats(); n > 0 {
		if _, err := fmt.Fprintf(w, "\n%d chunks: mean %.2fs, stddev %.2fs\n", n, mean, stddev); err != nil {
			return err
		}
	}
	return nil
}
