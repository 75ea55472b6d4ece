package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/tavla/internal/domain"
)

var (
	accent = lipgloss.Color("62")
	muted  = lipgloss.Color("241")
	dim    = lipgloss.Color("239")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	subtitleStyle  = lipgloss.NewStyle().Foreground(muted)
	statusStyle    = lipgloss.NewStyle().Foreground(dim)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true)
	editingStyle   = lipgloss.NewStyle().Foreground(accent).Italic(true)
	formStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// View renders the active screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render returns the screen text: body, form, status, then the help line.
func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}

	var body string
	var keys help.KeyMap
	if m.screen == screenTasks && m.tasks != nil {
		body = m.renderTasks()
		keys = tasksKeys{m.keys}
	} else {
		body = m.renderBoards()
		keys = boardsKeys{m.keys}
	}
	if form := m.renderForm(); form != "" {
		body += "\n\n" + form
	}
	if strings.TrimSpace(m.status) != "" {
		body += "\n\n" + statusStyle.Render(m.status)
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(keys))
	if m.height > 0 {
		body = fitLines(body, max(0, m.height-lipgloss.Height(helpLine)))
	}

	return body + "\n" + helpLine
}

// renderBoards renders the board list with per-board completion counts.
func (m Model) renderBoards() string {
	boards := m.session.Boards().Boards()
	lines := []string{
		titleStyle.Render(m.title),
		subtitleStyle.Render(fmt.Sprintf("%s · %d boards", m.session.User().Username, len(boards))),
		"",
	}
	if len(boards) == 0 {
		lines = append(lines, "No boards yet. Press n to create one.")
		return strings.Join(lines, "\n")
	}
	nameWidth := max(12, m.width-16)
	selected := clamp(m.selectedBoard, 0, len(boards)-1)
	for i, b := range boards {
		line := fmt.Sprintf("%-*s %d/%d", nameWidth, truncate(b.Name, nameWidth), b.CompletedCount(), len(b.Tasks))
		if i == selected {
			lines = append(lines, selectedStyle.Render("› "+line))
			continue
		}
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n")
}

// renderTasks renders the open board: header, description, and tasks.
func (m Model) renderTasks() string {
	tasks := m.tasks.Tasks()
	lines := []string{
		titleStyle.Render(m.board.Name),
		subtitleStyle.Render(fmt.Sprintf("%d/%d completed", domain.CompletedCount(tasks), len(tasks))),
	}
	if desc := m.md.render(m.board.Description, m.width-4); desc != "" {
		lines = append(lines, desc)
	}
	lines = append(lines, "")
	if len(tasks) == 0 {
		lines = append(lines, "No tasks yet. Press n to add one.")
		return strings.Join(lines, "\n")
	}
	selected := clamp(m.selectedTask, 0, len(tasks)-1)
	for i, t := range tasks {
		lines = append(lines, renderTaskLine(t, i == selected, max(12, m.width-8)))
	}
	return strings.Join(lines, "\n")
}

func renderTaskLine(t domain.Task, selected bool, width int) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	name := truncate(t.Name, width)
	switch {
	case t.Edit:
		name = editingStyle.Render(name + " (editing)")
	case t.Completed:
		name = completedStyle.Render(name)
	}
	if selected {
		return selectedStyle.Render("› "+box) + " " + name
	}
	return "  " + box + " " + name
}

// renderForm renders the open input overlay.
func (m Model) renderForm() string {
	switch m.mode {
	case modeNewBoard:
		heading := titleStyle.Render("New board")
		if m.pending {
			heading += " " + statusStyle.Render("saving...")
		}
		return formStyle.Render(strings.Join([]string{
			heading,
			m.nameInput.View(),
			m.descInput.View(),
			subtitleStyle.Render("tab switch field · enter save · esc cancel"),
		}, "\n"))
	case modeNewTask:
		return formStyle.Render(titleStyle.Render("New task") + "\n" + m.nameInput.View())
	case modeRenameTask:
		return formStyle.Render(titleStyle.Render("Rename task") + "\n" + m.nameInput.View())
	default:
		return ""
	}
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
