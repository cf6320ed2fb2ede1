package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/reflow/pkg/pipeline"
)

// progressTick is how often the view polls the conversion.
const progressTick = 100 * time.Millisecond

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ProgressModel - Live conversion progress
// =============================================================================

type tickMsg time.Time

// ProgressModel is the bubbletea model that follows a running conversion.
// It only reads counters; the conversion runs on its own goroutine.
type ProgressModel struct {
	Input    string
	Snapshot pipeline.Snapshot
	Canceled bool
	Width    int

	progress *pipeline.Progress
	done     <-chan struct{}
	cancel   func()
	start    time.Time
}

// NewProgressModel creates a view over progress. done is closed when the
// conversion goroutine returns; cancel stops the conversion.
func NewProgressModel(input string, progress *pipeline.Progress, done <-chan struct{}, cancel func()) ProgressModel {
	return ProgressModel{
		Input:    input,
		Width:    40,
		progress: progress,
		done:     done,
		cancel:   cancel,
		start:    time.Now(),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(progressTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Canceled {
				m.Canceled = true
				m.cancel()
			}
		}
	case tea.WindowSizeMsg:
		m.Width = max(10, min(60, msg.Width-30))
	case tickMsg:
		m.Snapshot = m.progress.Snapshot()
		if m.finished() {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m ProgressModel) finished() bool {
	if m.Snapshot.Finished {
		return true
	}
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Converting " + m.Input))
	b.WriteString("\n\n")

	s := m.Snapshot
	filled := int(s.Fraction() * float64(m.Width))
	b.WriteString("  ")
	b.WriteString(barFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(barEmptyStyle.Render(strings.Repeat("░", m.Width-filled)))
	b.WriteString(fmt.Sprintf(" %3.0f%%\n", s.Fraction()*100))

	b.WriteString("  ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", s.Processed, s.Total)))
	b.WriteString(StyleDim.Render(" source pages · "))
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d", s.Produced)))
	b.WriteString(StyleDim.Render(" written · "))
	b.WriteString(StyleDim.Render(time.Since(m.start).Round(time.Second).String()))
	b.WriteString("\n\n")

	if m.Canceled {
		b.WriteString(StyleWarning.Render("  stopping after the current page..."))
	} else {
		b.WriteString(StyleDim.Render("  q cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// runProgressView shows the progress view until the conversion ends.
func runProgressView(input string, progress *pipeline.Progress, done <-chan struct{}, cancel func()) error {
	p := tea.NewProgram(NewProgressModel(input, progress, done, cancel), tea.WithOutput(os.Stderr))
	_, err := p.Run()
	return err
}
