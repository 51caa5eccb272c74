package results

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/export"
)

func (m Model) selectedRow() (engine.Row, bool) {
	if m.result == nil || m.cursorY < 0 || m.cursorY >= len(m.result.Data) {
		return nil, false
	}
	return m.result.Data[m.cursorY], true
}

func (m Model) getColumnName() string {
	if m.cursorX < 0 || m.cursorX >= len(m.columns) {
		return ""
	}
	return m.columns[m.cursorX]
}

// --- Copy ---

func (m *Model) doCopyCell() {
	row, ok := m.selectedRow()
	col := m.getColumnName()
	if !ok || col == "" {
		m.statusMessage = "Nothing to copy"
		return
	}
	val := row.String(col)
	if err := clipboard.WriteAll(val); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied: " + truncateStatus(val, 40)
}

func (m *Model) doCopyRowJSON() {
	row, ok := m.selectedRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	s, err := export.RowJSON(m.columns, row)
	if err == nil {
		err = clipboard.WriteAll(s)
	}
	if err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied row as JSON"
}

func (m *Model) doCopyRowCSV() {
	row, ok := m.selectedRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	s, err := export.RowCSV(m.columns, row)
	if err == nil {
		err = clipboard.WriteAll(s)
	}
	if err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied row as CSV"
}

// --- Filter ---

func (m *Model) doFilterByValue() tea.Cmd {
	row, ok := m.selectedRow()
	col := m.getColumnName()
	table := extractTableName(m.lastQuery)
	if !ok || col == "" || table == "" {
		m.statusMessage = "Cannot filter: no cell selected"
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, filterCondition(col, row[col]))
	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

func filterCondition(col string, v any) string {
	switch val := v.(type) {
	case nil:
		return col + " IS NULL"
	case string:
		return fmt.Sprintf("%s = '%s'", col, strings.ReplaceAll(val, "'", "''"))
	default:
		return fmt.Sprintf("%s = %v", col, val)
	}
}

// --- Export ---

func (m Model) exportCmd(format string) tea.Cmd {
	result := m.result
	dir := m.exportDir
	if result == nil {
		return nil
	}
	return func() tea.Msg {
		path, err := export.WriteResultFile(dir, result, export.Format(format))
		if err != nil {
			err = &app.ErrExport{Format: format, Cause: err}
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(result.Data), path)}
	}
}

func (m Model) visualizeCmd() tea.Cmd {
	if m.result == nil || len(m.result.Data) == 0 {
		return nil
	}
	msg := VisualizeMsg{Result: m.result, Columns: m.columns}
	return func() tea.Msg {
		return msg
	}
}

// --- Helpers ---

func extractTableName(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		if strings.EqualFold(tok, "FROM") && i+1 < len(tokens) {
			if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
				return name
			}
		}
	}
	return ""
}

func truncateStatus(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
