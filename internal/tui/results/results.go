package results

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

const maxColWidth = 40

// Model is the query results grid.
type Model struct {
	title         string
	result        *engine.QueryResult
	columns       []string
	lastQuery     string
	err           error
	width         int
	height        int
	focused       bool
	loading       bool
	cursorY       int
	cursorX       int
	scrollY       int
	colWidths     []int
	statusMessage string
	exportDir     string
}

// New creates a results grid with the given pane title.
func New(title string) Model {
	return Model{title: title, exportDir: "."}
}

// SetExportDir sets where exported files are written.
func (m *Model) SetExportDir(dir string) {
	m.exportDir = dir
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetResult sets the query result to display.
func (m *Model) SetResult(query string, r *engine.QueryResult) {
	m.result = r
	m.lastQuery = query
	m.err = nil
	m.cursorX, m.cursorY, m.scrollY = 0, 0, 0
	m.loading = false
	m.statusMessage = ""
	m.columns = nil
	if r != nil {
		m.columns = r.Columns
		if len(m.columns) == 0 {
			m.columns = engine.ResultColumns(r.Data)
		}
	}
	m.calculateColumnWidths()
}

// SetError sets an error to display.
func (m *Model) SetError(err error) {
	m.err = err
	m.result = nil
	m.columns = nil
	m.cursorX, m.cursorY, m.scrollY = 0, 0, 0
	m.loading = false
}

// Result returns the displayed result, or nil.
func (m Model) Result() *engine.QueryResult {
	return m.result
}

// Columns returns the displayed column order.
func (m Model) Columns() []string {
	return m.columns
}

// StatusMessage returns the last action feedback.
func (m Model) StatusMessage() string {
	return m.statusMessage
}

func (m *Model) calculateColumnWidths() {
	if len(m.columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(m.columns))
	for i, col := range m.columns {
		m.colWidths[i] = lipgloss.Width(col)
	}
	for _, row := range m.result.Data {
		for i, col := range m.columns {
			if w := lipgloss.Width(row.String(col)); w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = min(max(m.colWidths[i], 1), maxColWidth)
	}
}

func (m Model) rowCount() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Data)
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	visible := m.visibleRows()
	switch key.String() {
	case "up", "k":
		if m.cursorY > 0 {
			m.cursorY--
		}
	case "down", "j":
		if m.cursorY < m.rowCount()-1 {
			m.cursorY++
		}
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
	case "right", "l":
		if m.cursorX < len(m.columns)-1 {
			m.cursorX++
		}
	case "pgup":
		m.cursorY = max(0, m.cursorY-visible)
	case "pgdown":
		m.cursorY = max(0, min(m.rowCount()-1, m.cursorY+visible))
	case "home", "g":
		m.cursorY = 0
	case "end", "G":
		m.cursorY = max(0, m.rowCount()-1)
	case "y":
		m.doCopyCell()
	case "Y":
		m.doCopyRowJSON()
	case "c":
		m.doCopyRowCSV()
	case "f":
		return m, m.doFilterByValue()
	case "e":
		return m, m.exportCmd("csv")
	case "E":
		return m, m.exportCmd("json")
	case "v":
		return m, m.visualizeCmd()
	}

	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if m.cursorY >= m.scrollY+visible {
		m.scrollY = m.cursorY - visible + 1
	}
	return m, nil
}

func (m Model) visibleRows() int {
	return max(1, m.height-4)
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StylePaneTitle.Render(m.title)

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Executing query...")
	}
	if m.err != nil {
		return title + "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
	}
	if m.result == nil {
		return title + "\n" + theme.StyleMuted.Render("  Execute a query to see results")
	}

	stats := fmt.Sprintf("%d row(s) | %.1f ms", m.result.RowCount, m.result.ExecutionTime)
	if m.statusMessage != "" {
		stats += " | " + m.statusMessage
	}
	header := title + "  " + theme.StyleMuted.Render(stats)

	if len(m.columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Query returned no rows")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderCells(m.columns, -1))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	visible := m.visibleRows()
	for i := m.scrollY; i < len(m.result.Data) && i < m.scrollY+visible; i++ {
		row := m.result.Data[i]
		cells := make([]string, len(m.columns))
		for j, col := range m.columns {
			cells[j] = row.String(col)
		}
		b.WriteString("\n")
		b.WriteString(m.renderCells(cells, i))
	}
	return b.String()
}

// renderCells renders one grid line; rowIdx -1 marks the header.
func (m Model) renderCells(cells []string, rowIdx int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		width := 10
		if i < len(m.colWidths) {
			width = m.colWidths[i]
		}
		display := fit(cell, width)

		switch {
		case rowIdx < 0:
			parts[i] = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary).Render(display)
		case m.focused && rowIdx == m.cursorY && i == m.cursorX:
			parts[i] = lipgloss.NewStyle().Reverse(true).Render(display)
		case rowIdx == m.cursorY:
			parts[i] = lipgloss.NewStyle().Foreground(theme.ColorHighlight).Render(display)
		default:
			parts[i] = display
		}
	}
	return "  " + strings.Join(parts, " │ ")
}

// fit truncates with an ellipsis or pads s to exactly width display cells.
func fit(s string, width int) string {
	width = max(width, 1)
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", max(w, 1))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}
