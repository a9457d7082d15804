package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thunderclaude/orchestrator/internal/events"
	"github.com/thunderclaude/orchestrator/internal/orchestrator"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// ProgressPaneModel summarizes task settlement counts and total cost.
type ProgressPaneModel struct {
	total     int
	completed int
	partial   int
	running   int
	failed    int
	costUSD   float64
	width     int
	height    int
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	if ev, ok := msg.(events.StateEvent); ok {
		if snap, ok := ev.Snapshot.(*orchestrator.Snapshot); ok {
			m.applySnapshot(snap)
		}
	}
	return m, nil
}

func (m *ProgressPaneModel) applySnapshot(snap *orchestrator.Snapshot) {
	if snap.Plan == nil {
		return
	}
	m.total = len(snap.Plan.Tasks)
	m.running = len(snap.Active)
	m.completed, m.partial, m.failed = 0, 0, 0
	m.costUSD = 0
	for _, res := range snap.Results {
		m.costUSD += res.CostUSD
		switch res.Status {
		case worker.StatusSuccess:
			m.completed++
		case worker.StatusPartial:
			m.partial++
		default:
			m.failed++
		}
	}
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	pending := m.total - m.completed - m.partial - m.failed - m.running
	if pending < 0 {
		pending = 0
	}

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	if m.partial > 0 {
		b.WriteString(fmt.Sprintf("Partial:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.partial))))
	}
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", pending))))

	b.WriteString("\n")

	if m.total > 0 {
		settled := m.completed + m.partial
		barWidth := min(m.width-6, 40)
		settledWidth := (settled * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - settledWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, settledWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, settled, m.total))
	}

	if m.costUSD > 0 {
		b.WriteString(fmt.Sprintf("\nCost: $%.4f\n", m.costUSD))
	}

	return StylePaneBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
