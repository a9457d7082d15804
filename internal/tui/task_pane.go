package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/thunderclaude/orchestrator/internal/events"
	"github.com/thunderclaude/orchestrator/internal/orchestrator"
	"github.com/thunderclaude/orchestrator/internal/worker"
)

// TaskState is the display state of a single plan task.
type TaskState struct {
	ID          string
	Description string
	Model       string
	Status      string // "pending", "running", "completed", "partial", "failed"
	Text        string // streamed output, replaced wholesale per batch
	Duration    time.Duration
}

// TaskPaneModel shows the task list next to the selected task's streaming
// output.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	taskOrder   []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	updateTag   int // for debouncing stream refreshes
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.StateEvent:
		if snap, ok := msg.Snapshot.(*orchestrator.Snapshot); ok {
			m.applySnapshot(snap)
		}

	case events.StreamEvent:
		if task, exists := m.tasks[msg.TaskID]; exists {
			task.Text = msg.Text
			if m.selectedTaskID() == msg.TaskID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case tickMsg:
		// Only refresh if this tick matches the current tag.
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// applySnapshot reconciles the pane with the run's current state.
func (m *TaskPaneModel) applySnapshot(snap *orchestrator.Snapshot) {
	if snap.Plan == nil {
		return
	}
	for _, t := range snap.Plan.Tasks {
		state, exists := m.tasks[t.ID]
		if !exists {
			state = &TaskState{ID: t.ID, Description: t.Description, Model: t.AssignedModel, Status: "pending"}
			m.tasks[t.ID] = state
			m.taskOrder = append(m.taskOrder, t.ID)
		}

		if resolved, running := snap.Active[t.ID]; running {
			state.Status = "running"
			state.Model = resolved
			continue
		}
		res, settled := snap.Results[t.ID]
		if !settled {
			continue
		}
		state.Model = res.Model
		state.Duration = res.Duration
		switch res.Status {
		case worker.StatusSuccess:
			state.Status = "completed"
			state.Text = res.Content
		case worker.StatusPartial:
			state.Status = "partial"
			state.Text = res.Content
		default:
			state.Status = "failed"
			state.Text = res.Error
		}
	}
	m.updateViewportContent()
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return StylePaneBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting for plan..."))
	} else {
		for i, id := range m.taskOrder {
			task := m.tasks[id]
			name := task.Description
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", StatusIcon(task.Status), name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "partial":
		return StyleStatusRunning.Render("◐")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedTaskID returns the id of the currently selected task.
func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected task's output.
func (m *TaskPaneModel) updateViewportContent() {
	id := m.selectedTaskID()
	if id == "" {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	task, exists := m.tasks[id]
	if !exists || task.Text == "" {
		m.viewport.SetContent("No output yet.")
		return
	}
	m.viewport.SetContent(task.Text)
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}
