// Package editor is the Query Lab input: a SQL textarea that completes table
// and column names from the loaded catalog and previews how the demo engine
// will answer.
package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user runs the editor content.
type ExecuteQueryMsg struct {
	Query string
}

// menuWindow is how many completion candidates are shown at once.
const menuWindow = 6

// Model is the Query Lab editor.
type Model struct {
	input   textarea.Model
	width   int
	height  int
	focused bool

	engine string
	tables []app.TableNode

	menu     *menu
	template int
	history  recall
}

// recall walks previously executed queries, oldest first.
type recall struct {
	entries []string
	pos     int // len(entries) when not browsing
	draft   string
}

// New creates an empty editor.
func New() Model {
	in := textarea.New()
	in.Placeholder = "SHOW TABLES, DESCRIBE sales, SELECT * FROM sales ..."
	in.ShowLineNumbers = false
	in.CharLimit = 0
	in.Prompt = "┃ "
	in.FocusedStyle.CursorLine = lipgloss.NewStyle()
	in.FocusedStyle.Base = lipgloss.NewStyle()
	in.BlurredStyle.Base = lipgloss.NewStyle()
	in.FocusedStyle.Placeholder = theme.StyleMuted
	in.BlurredStyle.Placeholder = theme.StyleMuted
	in.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	in.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)
	return Model{input: in}
}

func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.input.SetWidth(max(w-2, 1))
	// title and completion lines
	m.input.SetHeight(max(h-2, 1))
}

func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.input.Focus()
		return
	}
	m.input.Blur()
	m.menu = nil
}

func (m Model) Focused() bool { return m.focused }

func (m Model) Value() string { return m.input.Value() }

// SetQuery replaces the editor content.
func (m *Model) SetQuery(q string) {
	m.input.SetValue(q)
	m.menu = nil
}

// SetEngine names the engine answering queries. The dispatch preview is only
// shown for the mock engine.
func (m *Model) SetEngine(name string) { m.engine = name }

// SetCatalog replaces the tables and columns offered for completion.
func (m *Model) SetCatalog(cat *app.Catalog) {
	m.tables = nil
	if cat == nil {
		return
	}
	m.tables = append(m.tables, cat.Tables...)
}

// SetColumns records columns for one table, loaded after the catalog.
func (m *Model) SetColumns(table string, cols []engine.ColumnInfo) {
	for i := range m.tables {
		if m.tables[i].Name == table {
			m.tables[i].Columns = cols
			return
		}
	}
}

// SetHistory replaces the recallable queries, oldest first.
func (m *Model) SetHistory(queries []string) {
	m.history = recall{entries: queries, pos: len(queries)}
}

// CompletionActive reports whether Tab is cycling completion candidates.
func (m Model) CompletionActive() bool { return m.menu != nil }

func (m Model) Init() tea.Cmd { return textarea.Blink }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+e", "f5":
		q := strings.TrimSpace(m.input.Value())
		if q == "" {
			return m, nil
		}
		m.menu = nil
		return m, func() tea.Msg { return ExecuteQueryMsg{Query: q} }
	case "ctrl+k":
		m.input.Reset()
		m.menu = nil
		return m, nil
	case "ctrl+t":
		m.cycleTemplate()
		return m, nil
	case "ctrl+up":
		m.step(-1)
		return m, nil
	case "ctrl+down":
		m.step(1)
		return m, nil
	case "tab":
		if m.Complete() {
			return m, nil
		}
	case "esc":
		if m.menu != nil {
			m.menu = nil
			return m, nil
		}
	}

	m.menu = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycleTemplate replaces the content with the next statement form the demo
// engine recognises, aimed at the table the query already names.
func (m *Model) cycleTemplate() {
	table := m.focusTable()
	forms := []string{"SHOW TABLES"}
	if table != "" {
		forms = append(forms,
			"DESCRIBE "+table,
			fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, engine.MockSelectLimit),
		)
	}
	m.template %= len(forms)
	m.input.SetValue(forms[m.template])
	m.template++
	m.menu = nil
}

// focusTable is the first catalog table the query mentions, else the first
// loaded table.
func (m Model) focusTable() string {
	if refs := m.referencedTables(m.input.Value()); len(refs) > 0 {
		return refs[0].Name
	}
	if len(m.tables) > 0 {
		return m.tables[0].Name
	}
	return ""
}

func (m *Model) step(delta int) {
	h := &m.history
	if len(h.entries) == 0 {
		return
	}
	next := h.pos + delta
	if next < 0 || next > len(h.entries) {
		return
	}
	if h.pos == len(h.entries) {
		h.draft = m.input.Value()
	}
	h.pos = next
	if next == len(h.entries) {
		m.input.SetValue(h.draft)
	} else {
		m.input.SetValue(h.entries[next])
	}
	m.menu = nil
}

// Preview describes how the mock engine will answer the current text, or ""
// for other engines.
func (m Model) Preview() string {
	if m.engine != "mock" {
		return ""
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return ""
	}

	d := engine.ReadDispatch(text)
	switch {
	case d.ShowTables:
		return fmt.Sprintf("lists %d table(s)", len(m.tables))
	case d.Describe && m.table(d.Target) != nil:
		t := m.table(d.Target)
		if t.Columns == nil {
			return "describes " + t.Name
		}
		return fmt.Sprintf("describes %s (%d columns)", t.Name, len(t.Columns))
	}

	prefix := ""
	if d.Describe && d.Target != "" {
		prefix = fmt.Sprintf("unknown table %s; ", d.Target)
	}
	if !d.Select || len(m.tables) == 0 {
		return prefix + "returns no rows"
	}
	first := m.tables[0].Name
	out := fmt.Sprintf("%sreturns up to %d rows of %s", prefix, engine.MockSelectLimit, first)
	for _, ref := range m.referencedTables(text) {
		if ref.Name != first {
			out += ", not " + ref.Name
			break
		}
	}
	return out
}

// table looks a name up the way the mock does: exact match.
func (m Model) table(name string) *app.TableNode {
	for i := range m.tables {
		if m.tables[i].Name == name {
			return &m.tables[i]
		}
	}
	return nil
}

func (m Model) View() string {
	title := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Render("Query Lab")
	if p := m.Preview(); p != "" {
		title += theme.StyleMuted.Render("mock → " + p)
	}

	out := title + "\n" + m.input.View()
	if line := m.menu.view(); line != "" {
		out += "\n" + lipgloss.NewStyle().Padding(0, 1).Render(line)
	}
	return out
}
