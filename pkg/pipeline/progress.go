package pipeline

import "sync/atomic"

// Progress is shared between the conversion goroutine and its observers.
// All methods are safe for concurrent use; no pixel data crosses it.
type Progress struct {
	total     atomic.Int64
	processed atomic.Int64
	produced  atomic.Int64
	finished  atomic.Bool
}

// Snapshot is a consistent-enough view of Progress for display.
type Snapshot struct {
	Total     int  // selected source pages
	Processed int  // source pages loaded so far
	Produced  int  // output pages written
	Finished  bool // the run has ended, successfully or not
}

// Fraction returns processed/total in [0, 1].
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	f := float64(s.Processed) / float64(s.Total)
	return min(f, 1)
}

// Snapshot reads the current counters.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Total:     int(p.total.Load()),
		Processed: int(p.processed.Load()),
		Produced:  int(p.produced.Load()),
		Finished:  p.finished.Load(),
	}
}

func (p *Progress) start(total int) {
	p.total.Store(int64(total))
	p.processed.Store(0)
	p.produced.Store(0)
	p.finished.Store(false)
}

// page records one written output page and the source pages consumed so far.
// Counters only move forward.
func (p *Progress) page(processed int) {
	p.produced.Add(1)
	for {
		cur := p.processed.Load()
		if int64(processed) <= cur || p.processed.CompareAndSwap(cur, int64(processed)) {
			return
		}
	}
}

func (p *Progress) finish(success bool) {
	if success {
		p.processed.Store(p.total.Load())
	}
	p.finished.Store(true)
}
