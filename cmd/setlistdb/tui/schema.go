package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// TableItem is one model in the schema browser.
type TableItem struct {
	Table *schema.TableMetadata
}

func (i TableItem) FilterValue() string { return i.Table.ModelName }
func (i TableItem) Title() string {
	return i.Table.ModelName + " " + mutedStyle.Render("("+i.Table.Name+")")
}
func (i TableItem) Description() string {
	return mutedStyle.Render(fmt.Sprintf("%d fields • %d relations",
		len(i.Table.Columns), len(i.Table.Relationships)))
}

// SchemaModel browses registered models: a list of models and a scrollable
// detail view of the selected one.
type SchemaModel struct {
	list     list.Model
	viewport viewport.Model
	detail   bool
	width    int
	height   int
}

// NewSchemaModel creates the browser over tables.
func NewSchemaModel(tables []*schema.TableMetadata) SchemaModel {
	items := make([]list.Item, len(tables))
	for i, t := range tables {
		items[i] = TableItem{Table: t}
	}
	l := list.New(items, itemDelegate{}, 0, 0)
	l.Title = "Models"
	l.SetShowStatusBar(false)
	l.Styles.Title = titleStyle

	return SchemaModel{list: l, viewport: viewport.New(0, 0)}
}

// Init implements tea.Model.
func (m SchemaModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m SchemaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-4)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.detail {
			switch msg.String() {
			case "esc", "backspace", "q":
				m.detail = false
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "enter":
				if item, ok := m.list.SelectedItem().(TableItem); ok {
					m.viewport.SetContent(RenderTable(item.Table))
					m.viewport.GotoTop()
					m.detail = true
				}
				return m, nil
			}
		}
	}

	if m.detail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the UI
func (m SchemaModel) View() string {
	if m.detail {
		help := helpStyle.Render(FormatKey("↑/↓", "scroll") + " • " + FormatKey("esc", "back"))
		return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), help)
	}
	help := helpStyle.Render(FormatKey("↑/↓", "navigate") + " • " + FormatKey("enter", "details") + " • " + FormatKey("q", "quit"))
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)
}

// RenderTable describes one model: fields, keys, indexes, constraints and
// relations.
func RenderTable(t *schema.TableMetadata) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(t.ModelName) + " " + mutedStyle.Render(t.Name) + "\n")

	b.WriteString(accentStyle.Render("Fields") + "\n")
	width := 0
	for _, c := range t.Columns {
		width = max(width, len(c.Field))
	}
	for _, c := range t.Columns {
		var attrs []string
		if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) == 1 && t.PrimaryKey.Columns[0] == c.Name {
			attrs = append(attrs, "id")
		}
		if c.Unique {
			attrs = append(attrs, "unique")
		}
		if c.Nullable {
			attrs = append(attrs, "optional")
		}
		if c.Default != nil {
			attrs = append(attrs, "default "+*c.Default)
		}
		if c.ClientDefault != "" {
			attrs = append(attrs, "default "+c.ClientDefault+"()")
		}
		if c.UpdatedAt {
			attrs = append(attrs, "updatedAt")
		}
		if len(c.EnumValues) > 0 {
			attrs = append(attrs, "one of "+strings.Join(c.EnumValues, "|"))
		}
		fmt.Fprintf(&b, "  %-*s  %s", width, c.Field, infoStyle.Render(c.SQLType))
		if len(attrs) > 0 {
			b.WriteString("  " + mutedStyle.Render(strings.Join(attrs, ", ")))
		}
		b.WriteString("\n")
	}

	if len(t.ForeignKeys) > 0 {
		b.WriteString("\n" + accentStyle.Render("Foreign keys") + "\n")
		for _, fk := range t.ForeignKeys {
			onDelete := fk.OnDelete
			if onDelete == "" {
				onDelete = schema.NoAction
			}
			fmt.Fprintf(&b, "  %s → %s(%s) on delete %s\n",
				strings.Join(fk.Columns, ", "), fk.ReferencedTable,
				strings.Join(fk.ReferencedColumns, ", "), strings.ToLower(string(onDelete)))
		}
	}

	if len(t.Constraints) > 0 {
		b.WriteString("\n" + accentStyle.Render("Constraints") + "\n")
		for _, c := range t.Constraints {
			if c.Type == schema.CheckConstraint {
				fmt.Fprintf(&b, "  %s CHECK (%s)\n", c.Name, c.Expression)
				continue
			}
			fmt.Fprintf(&b, "  %s UNIQUE (%s)\n", c.Name, strings.Join(c.Columns, ", "))
		}
	}

	if len(t.Indexes) > 0 {
		b.WriteString("\n" + accentStyle.Render("Indexes") + "\n")
		for _, idx := range t.Indexes {
			fmt.Fprintf(&b, "  %s %s (%s)\n", idx.Name, idx.Type, strings.Join(idx.Columns, ", "))
		}
	}

	if len(t.Relationships) > 0 {
		b.WriteString("\n" + accentStyle.Render("Relations") + "\n")
		for _, r := range t.Relationships {
			fmt.Fprintf(&b, "  %s  %s %s via %s\n", r.Name, r.Type, r.TargetModel, r.ForeignKey)
		}
	}

	return b.String()
}

// RunSchemaUI starts the interactive schema browser.
func RunSchemaUI(tables []*schema.TableMetadata) error {
	_, err := tea.NewProgram(NewSchemaModel(tables), tea.WithAltScreen()).Run()
	return err
}
