package home

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/routing"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// Model is the landing page: engine status, metrics and loaded tables.
type Model struct {
	assets  config.Assets
	sel     app.Selection
	metrics engine.MetricsSnapshot
	tables  []string
	ready   bool
	width   int
	height  int
}

// New creates the home page.
func New(assets config.Assets) Model {
	return Model{assets: assets}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetSelection records which engine is running.
func (m *Model) SetSelection(sel app.Selection) {
	m.sel = sel
	m.ready = true
}

// SetMetrics replaces the metrics snapshot.
func (m *Model) SetMetrics(s engine.MetricsSnapshot) {
	m.metrics = s
}

// SetTables replaces the table list.
func (m *Model) SetTables(tables []string) {
	m.tables = tables
}

// View renders the page.
func (m Model) View() string {
	heading := theme.StyleTitle.Render("DataPrism Demo Analytics")
	sub := theme.StyleMuted.Render("Browser-style analytics in the terminal")

	section := func(s string) string {
		return lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(s)
	}

	engineLines := []string{section("Engine")}
	switch {
	case !m.ready:
		engineLines = append(engineLines, "  initializing...")
	case m.sel.Fallback:
		engineLines = append(engineLines,
			"  "+theme.StyleWarning.Render(m.sel.Driver+" (fallback)"),
			"  "+theme.StyleMuted.Render(m.sel.Reason))
	default:
		engineLines = append(engineLines, "  "+theme.StyleSuccess.Render(m.sel.Driver))
		if m.sel.Manifest != nil {
			engineLines = append(engineLines, "  cdn bundle "+m.sel.Manifest.Version)
		}
	}
	engineLines = append(engineLines, "  "+theme.StyleMuted.Render(m.assets.CoreBundle))

	metricLines := []string{
		section("Metrics"),
		fmt.Sprintf("  queries executed   %d", m.metrics.QueriesExecuted),
		fmt.Sprintf("  avg query time     %.1f ms", m.metrics.AverageQueryTime),
		fmt.Sprintf("  cache hit rate     %.0f%%", m.metrics.CacheHitRate*100),
		fmt.Sprintf("  memory usage       %s", FormatBytes(m.metrics.MemoryUsage)),
		fmt.Sprintf("  tables loaded      %d", m.metrics.TablesLoaded),
	}

	tableLines := []string{section("Tables")}
	if len(m.tables) == 0 {
		tableLines = append(tableLines, theme.StyleMuted.Render("  none"))
	}
	for _, t := range m.tables {
		tableLines = append(tableLines, "  "+t)
	}

	pageLines := []string{section("Pages")}
	for i, r := range routing.Routes {
		pageLines = append(pageLines, fmt.Sprintf("  F%d  %-14s %s", i+1, r.Title(), theme.StyleMuted.Render(string(r))))
	}

	left := strings.Join(append(append(engineLines, ""), metricLines...), "\n")
	right := strings.Join(append(append(tableLines, ""), pageLines...), "\n")
	colW := max(30, m.width/2-2)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(colW).Render(left),
		lipgloss.NewStyle().Width(colW).Render(right),
	)

	return lipgloss.JoinVertical(lipgloss.Left, heading, sub, "", body)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
