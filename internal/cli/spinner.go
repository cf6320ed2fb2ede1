package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/reflow/pkg/pipeline"
)

const spinnerTick = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner redraws a one-line conversion status on stderr, reading the
// counters of a running conversion on every frame.
type Spinner struct {
	label    string
	progress *pipeline.Progress
	out      io.Writer

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	started bool
	widest  int
}

// newSpinner creates a spinner for progress. It stops on its own when ctx
// is canceled.
func newSpinner(ctx context.Context, label string, progress *pipeline.Progress) *Spinner {
	sctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		label:    label,
		progress: progress,
		out:      os.Stderr,
		ctx:      sctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
}

// spinnerLine formats the status shown next to the spinner frame.
func spinnerLine(label string, s pipeline.Snapshot) string {
	if s.Total == 0 {
		return label
	}
	return fmt.Sprintf("%s (%d/%d source pages, %d written)", label, s.Processed, s.Total, s.Produced)
}

// Start draws frames until Stop is called or the context ends.
func (s *Spinner) Start() {
	s.started = true
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(spinnerTick)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	var snap pipeline.Snapshot
	if s.progress != nil {
		snap = s.progress.Snapshot()
	}
	line := spinnerLine(s.label, snap)
	s.widest = max(s.widest, len(line)+2)
	fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(line))
}

func (s *Spinner) clear() {
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.widest))
}

// Stop ends the animation and clears the line. It may be called more than
// once, and before Start.
func (s *Spinner) Stop() {
	s.once.Do(s.cancel)
	if s.started {
		<-s.stopped
	}
}
