// Package tui holds the interactive terminal screens of setlistdb.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/setlistdb/pkg/migration"
)

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeList MigrateMode = iota
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// Runner is the part of migration.Executor the UI drives.
type Runner interface {
	Status(ctx context.Context, migrations []migration.Migration) ([]migration.MigrationRecord, error)
	Apply(ctx context.Context, m migration.Migration) (bool, error)
	Rollback(ctx context.Context, m migration.Migration) error
}

// MigrateModel lists migrations and applies or rolls back the selection.
// Selecting a pending migration in "up" mode applies every pending
// migration before it as well; in "down" mode every applied migration
// after the selection is rolled back first.
type MigrateModel struct {
	ctx          context.Context
	mode         MigrateMode
	action       string // "up" or "down"
	list         list.Model
	confirmation ConfirmationDialog
	progress     ProgressView
	logs         LogView
	err          error
	width        int
	height       int
	runner       Runner
	migrations   []migration.Migration
	status       []migration.MigrationRecord
	queue        []migration.Migration
}

// NewMigrateModel creates the UI for action over migrations.
func NewMigrateModel(ctx context.Context, action string, runner Runner, migrations []migration.Migration) MigrateModel {
	l := list.New([]list.Item{}, itemDelegate{}, 0, 0)
	l.Title = "Database Migrations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return MigrateModel{
		ctx:        ctx,
		mode:       ModeList,
		action:     action,
		list:       l,
		logs:       NewLogView(10),
		runner:     runner,
		migrations: migrations,
	}
}

type statusLoadedMsg struct {
	status []migration.MigrationRecord
}

type migrationExecutedMsg struct {
	version string
	skipped bool
	err     error
}

type errorMsg struct {
	err error
}

// Init loads the migration status.
func (m MigrateModel) Init() tea.Cmd {
	return loadStatusCmd(m.ctx, m.runner, m.migrations)
}

func loadStatusCmd(ctx context.Context, runner Runner, migrations []migration.Migration) tea.Cmd {
	return func() tea.Msg {
		status, err := runner.Status(ctx, migrations)
		if err != nil {
			return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
		}
		return statusLoadedMsg{status: status}
	}
}

func executeMigrationCmd(ctx context.Context, runner Runner, mig migration.Migration, action string) tea.Cmd {
	return func() tea.Msg {
		if action == "up" {
			applied, err := runner.Apply(ctx, mig)
			return migrationExecutedMsg{version: mig.Version, skipped: err == nil && !applied, err: err}
		}
		return migrationExecutedMsg{version: mig.Version, err: runner.Rollback(ctx, mig)}
	}
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case statusLoadedMsg:
		m.status = msg.status
		items := make([]list.Item, len(msg.status))
		for i, s := range msg.status {
			item := MigrationItem{Version: s.Version, Name: s.Name, Status: string(s.Status)}
			if s.AppliedAt != nil {
				item.AppliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			items[i] = item
		}
		return m, m.list.SetItems(items)

	case confirmedMsg:
		if !msg.ok {
			m.mode = ModeList
			m.queue = nil
			return m, nil
		}
		m.mode = ModeExecuting
		m.progress = ProgressView{Total: len(m.queue)}
		return m, m.next()

	case migrationExecutedMsg:
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			m.logs.AddLog(dangerStyle.Render("Failed: " + msg.version + " - " + msg.err.Error()))
			return m, nil
		}
		if msg.skipped {
			m.logs.AddLog(warningStyle.Render("Already applied: " + msg.version))
		} else {
			m.logs.AddLog(successStyle.Render("✓ Completed: " + msg.version))
		}
		m.progress.Current++
		if len(m.queue) == 0 {
			m.mode = ModeComplete
			return m, nil
		}
		return m, m.next()

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter", " ":
				m.queue = m.plan(m.list.Index())
				if len(m.queue) == 0 {
					return m, nil
				}
				m.confirmation = NewConfirmationDialog(
					fmt.Sprintf("Confirm Migration %s", strings.ToUpper(m.action)),
					m.describeQueue(),
				)
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, m.confirmation.Update(msg)

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
			return m, nil

		case ModeExecuting:
			return m, nil
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// next pops the queue and runs the migration.
func (m *MigrateModel) next() tea.Cmd {
	mig := m.queue[0]
	m.queue = m.queue[1:]
	m.progress.Message = fmt.Sprintf("Executing: %s - %s", mig.Version, mig.Name)
	return executeMigrationCmd(m.ctx, m.runner, mig, m.action)
}

// plan returns the migrations to run for the selected index, or nil when
// the selection cannot be run in the current action.
func (m MigrateModel) plan(selected int) []migration.Migration {
	if selected < 0 || selected >= len(m.status) || selected >= len(m.migrations) {
		return nil
	}
	var queue []migration.Migration
	if m.action == "up" {
		if m.status[selected].Status == migration.StatusApplied {
			return nil
		}
		for i := 0; i <= selected; i++ {
			if m.status[i].Status != migration.StatusApplied {
				queue = append(queue, m.migrations[i])
			}
		}
		return queue
	}
	if m.status[selected].Status != migration.StatusApplied {
		return nil
	}
	for i := len(m.status) - 1; i >= selected; i-- {
		if m.status[i].Status == migration.StatusApplied {
			queue = append(queue, m.migrations[i])
		}
	}
	return queue
}

func (m MigrateModel) describeQueue() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Are you sure you want to %s %d migration(s):\n", m.action, len(m.queue))
	for _, mig := range m.queue {
		fmt.Fprintf(&b, "\n  %s - %s", mig.Version, mig.Name)
	}
	return b.String()
}

// View renders the UI
func (m MigrateModel) View() string {
	switch m.mode {
	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", "execute") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return m.place(m.confirmation.View())

	case ModeExecuting:
		return m.place(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "", m.logs.View()))

	case ModeComplete:
		msg := titleStyle.Render("Migration Complete!") + "\n\n" +
			successStyle.Render(fmt.Sprintf("Executed %d migration(s)", m.progress.Current)) + "\n\n" +
			m.logs.View() + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.place(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Migration Failed") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.place(boxStyle.Render(msg))
	}
	return "Unknown mode"
}

func (m MigrateModel) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// Err returns the error that ended the session, if any.
func (m MigrateModel) Err() error {
	return m.err
}

// RunMigrateUI starts the interactive migration UI.
func RunMigrateUI(ctx context.Context, action string, runner Runner, migrations []migration.Migration) error {
	final, err := tea.NewProgram(NewMigrateModel(ctx, action, runner, migrations), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(MigrateModel); ok {
		return fm.Err()
	}
	return nil
}
