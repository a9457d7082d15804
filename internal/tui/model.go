// Package tui renders live orchestration progress: phase, wave counts, a
// task list with streaming output, and the plan approval prompt.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thunderclaude/orchestrator/internal/events"
	"github.com/thunderclaude/orchestrator/internal/orchestrator"
)

// RunControl is the slice of the runner the TUI drives.
type RunControl interface {
	Approve() error
	Reject() error
	Cancel()
}

// Model is the root Bubble Tea model for the progress view.
type Model struct {
	taskPane TaskPaneModel
	progress ProgressPaneModel
	spinner  spinner.Model
	eventSub <-chan events.Event
	control  RunControl
	snapshot *orchestrator.Snapshot
	width    int
	height   int
	quitting bool
}

// New creates the progress view, subscribed to every bus topic.
func New(bus *events.Bus, control RunControl) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusRunning
	return Model{
		taskPane: NewTaskPaneModel(),
		progress: NewProgressPaneModel(),
		spinner:  sp,
		eventSub: bus.SubscribeAll(256),
		control:  control,
	}
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.eventSub))
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.control.Cancel()
			m.quitting = true
			return m, tea.Quit

		case KeyApprove:
			if m.reviewing() {
				_ = m.control.Approve()
			}

		case KeyReject:
			if m.reviewing() {
				_ = m.control.Reject()
			}

		default:
			var cmd tea.Cmd
			m.taskPane, cmd = m.taskPane.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case events.StateEvent:
		if snap, ok := msg.Snapshot.(*orchestrator.Snapshot); ok {
			m.snapshot = snap
			var cmd tea.Cmd
			m.taskPane, cmd = m.taskPane.Update(msg)
			cmds = append(cmds, cmd)
			m.progress, _ = m.progress.Update(msg)
			if snap.Phase.Terminal() {
				// The caller prints the final content after the program
				// exits; nothing left to watch here.
				m.quitting = true
				return m, tea.Quit
			}
		}
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.StreamEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.headerView()

	if m.reviewing() {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.reviewView(), HelpReviewView())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.progress.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, HelpView())
}

// headerView renders the spinner, phase, and wave counter.
func (m Model) headerView() string {
	if m.snapshot == nil {
		return StyleTitle.Render(m.spinner.View() + " starting")
	}
	label := string(m.snapshot.Phase)
	if m.snapshot.Phase == orchestrator.PhaseExecuting && m.snapshot.Waves > 0 {
		label = fmt.Sprintf("%s (wave %d/%d)", label, m.snapshot.Wave, m.snapshot.Waves)
	}
	return StyleTitle.Render(m.spinner.View() + " " + label)
}

// reviewView renders the pending plan for approval.
func (m Model) reviewView() string {
	rev := m.snapshot.Review
	var body string
	if rev.Reasoning != "" {
		body = rev.Reasoning + "\n\n"
	}
	for _, t := range rev.Tasks {
		marker := " "
		if t.Critical() {
			marker = StyleStatusFailed.Render("!")
		}
		body += fmt.Sprintf("%s %s  %s (%s)\n", marker, t.ID, t.Description, t.AssignedModel)
	}
	return StylePaneBorder.
		Width(m.width - 2).
		Render(StyleTitle.Render("Proposed plan") + "\n\n" + body)
}

func (m Model) reviewing() bool {
	return m.snapshot != nil && m.snapshot.Phase == orchestrator.PhaseReviewing
}

// computeLayout calculates pane dimensions and updates the child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 2 // header and help bar
	leftWidth := (m.width * 70) / 100
	m.taskPane.SetSize(leftWidth, availableHeight)
	m.progress.SetSize(m.width-leftWidth, availableHeight)
}
