package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmedMsg reports the answer of a ConfirmationDialog.
type confirmedMsg struct {
	ok bool
}

// ConfirmationDialog represents a yes/no confirmation dialog
type ConfirmationDialog struct {
	Title       string
	Message     string
	YesSelected bool
}

// NewConfirmationDialog creates a dialog with "No" preselected.
func NewConfirmationDialog(title, message string) ConfirmationDialog {
	return ConfirmationDialog{Title: title, Message: message}
}

// Update moves the selection or, on enter, y or n, answers the dialog.
func (d *ConfirmationDialog) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "left", "h":
		d.YesSelected = true
	case "right", "l":
		d.YesSelected = false
	case "y":
		return answer(true)
	case "n", "esc":
		return answer(false)
	case "enter":
		return answer(d.YesSelected)
	}
	return nil
}

func answer(ok bool) tea.Cmd {
	return func() tea.Msg { return confirmedMsg{ok: ok} }
}

// View renders the confirmation dialog
func (d ConfirmationDialog) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(d.Title))
	b.WriteString("\n\n")
	b.WriteString(d.Message)
	b.WriteString("\n\n")

	yesButton := inactiveButtonStyle.Render("Yes")
	noButton := inactiveButtonStyle.Render("No")
	if d.YesSelected {
		yesButton = activeButtonStyle.Render("Yes")
	} else {
		noButton = activeButtonStyle.Render("No")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, yesButton, "  ", noButton))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(FormatKey("←/→", "navigate") + " • " + FormatKey("enter", "confirm") + " • " + FormatKey("esc", "cancel")))

	return boxStyle.Render(b.String())
}

// MigrationItem represents a migration in the list
type MigrationItem struct {
	Version   string
	Name      string
	Status    string
	AppliedAt string
}

func (i MigrationItem) FilterValue() string { return i.Name }
func (i MigrationItem) Title() string {
	return fmt.Sprintf("%s %s - %s", FormatStatus(i.Status), i.Version, i.Name)
}
func (i MigrationItem) Description() string {
	if i.AppliedAt != "" {
		return mutedStyle.Render("Applied: " + i.AppliedAt)
	}
	return mutedStyle.Render("Not applied")
}

// itemDelegate renders two-line list items with a selection marker.
type itemDelegate struct{}

type titledItem interface {
	list.Item
	Title() string
	Description() string
}

func (d itemDelegate) Height() int                             { return 2 }
func (d itemDelegate) Spacing() int                            { return 1 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(titledItem)
	if !ok {
		return
	}

	var s string
	if index == m.Index() {
		s = selectedItemStyle.Render("▸ " + i.Title() + "\n  " + i.Description())
	} else {
		s = unselectedItemStyle.Render("  " + i.Title() + "\n  " + i.Description())
	}
	_, _ = fmt.Fprint(w, s)
}

// ProgressView represents a progress indicator
type ProgressView struct {
	Current int
	Total   int
	Message string
}

// View renders the progress view
func (p ProgressView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Migration Progress"))
	b.WriteString("\n\n")
	if p.Message != "" {
		b.WriteString(infoStyle.Render(p.Message))
		b.WriteString("\n\n")
	}
	b.WriteString(FormatProgressBar(p.Current, p.Total, 40))

	return boxStyle.Render(b.String())
}

// LogView keeps the last MaxLen log lines.
type LogView struct {
	Logs   []string
	MaxLen int
}

// NewLogView creates a new log view
func NewLogView(maxLen int) LogView {
	return LogView{Logs: make([]string, 0, maxLen), MaxLen: maxLen}
}

// AddLog adds a log entry
func (l *LogView) AddLog(entry string) {
	l.Logs = append(l.Logs, entry)
	if len(l.Logs) > l.MaxLen {
		l.Logs = l.Logs[1:]
	}
}

// View renders the log view
func (l LogView) View() string {
	if len(l.Logs) == 0 {
		return mutedStyle.Render("No logs")
	}

	var b strings.Builder
	for _, entry := range l.Logs {
		b.WriteString(mutedStyle.Render("• "))
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return boxStyle.Render(b.String())
}
