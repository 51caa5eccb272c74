package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/routing"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// View renders the entire application.
func (m Model) View() string {
	switch {
	case m.mode == ModeLoading:
		return m.viewLoading()
	case m.mode == ModeFailed:
		return m.viewFailed()
	case m.showHelp:
		return m.viewHelp()
	default:
		return m.viewMain()
	}
}

func (m Model) viewLoading() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleTitle.Render("DataPrism Demo Analytics"),
		"",
		m.spinner.View()+" Initializing analytics engine...",
		theme.StyleMuted.Render("  "+m.cfg.CDN.ManifestURL()),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) viewFailed() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleTitle.Render("DataPrism Demo Analytics"),
		"",
		theme.StyleError.Render("Engine failed to start"),
		theme.StyleError.Render(fmt.Sprintf("  %v", m.err)),
		"",
		theme.StyleMuted.Render("q: Quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) viewTabs() string {
	tabs := make([]string, len(routing.Routes))
	for i, r := range routing.Routes {
		label := fmt.Sprintf("F%d %s", i+1, r.Title())
		if r == m.page {
			tabs[i] = theme.StyleActiveTab.Render(label)
		} else {
			tabs[i] = theme.StyleTab.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewMain() string {
	avail := max(m.height-4, 3) // tabs, status bar, borders

	border := func(active bool) lipgloss.Style {
		if active {
			return theme.StyleActiveBorder
		}
		return theme.StyleBorder
	}

	var content string
	switch m.page {
	case routing.DataExplorer:
		sideWidth := min(max(m.width/4, 22), 35)
		rightWidth := m.width - sideWidth - 1
		left := border(m.activePane == PanePrimary).
			Width(sideWidth - 2).
			Height(avail).
			Render(m.explorer.View())
		right := border(m.activePane == PaneSecondary).
			Width(rightWidth - 2).
			Height(avail).
			Render(m.preview.View())
		content = lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	case routing.QueryLab:
		editorHeight := max(avail*40/100, 5)
		top := border(m.activePane == PanePrimary).
			Width(m.width - 2).
			Height(editorHeight).
			Render(m.editor.View())
		bottom := border(m.activePane == PaneSecondary).
			Width(m.width - 2).
			Height(max(avail-editorHeight-2, 1)).
			Render(m.results.View())
		content = lipgloss.JoinVertical(lipgloss.Left, top, bottom)

	case routing.Visualization:
		content = theme.StyleActiveBorder.
			Width(m.width - 2).
			Height(avail).
			Render(m.chart.View())

	default:
		content = theme.StyleBorder.
			Width(m.width - 2).
			Height(avail).
			Render(m.home.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewTabs(),
		content,
		m.statusbar.View(),
	)
}

type helpEntry struct {
	key  string
	desc string
}

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{"Global", []helpEntry{
		{"F1-F4", "Home / Data Explorer / Query Lab / Visualization"},
		{"Ctrl+←/→", "Previous / next page"},
		{"Tab", "Switch pane"},
		{"r", "Refresh tables and metrics"},
		{"?", "Toggle this help"},
		{"q / Ctrl+C", "Quit"},
	}},
	{"Data Explorer", []helpEntry{
		{"↑/k ↓/j", "Navigate"},
		{"Enter/→/l", "Expand table"},
		{"←/h", "Collapse"},
		{"s", "Preview rows"},
		{"d", "Describe table"},
	}},
	{"Query Lab", []helpEntry{
		{"Ctrl+E / F5", "Execute query"},
		{"Ctrl+K", "Clear editor"},
		{"Tab", "Complete table / column / keyword"},
		{"Ctrl+T", "SHOW TABLES / DESCRIBE / SELECT"},
		{"Ctrl+↑/↓", "Query history"},
		{"y / Y / c", "Copy cell / row JSON / row CSV"},
		{"f", "Filter by cell value"},
		{"e / E", "Export CSV / JSON"},
		{"v", "Visualize result"},
	}},
	{"Visualization", []helpEntry{
		{"t / a", "Chart type / aggregation"},
		{"x / y / g", "X axis / Y axis / group by"},
		{"P C J Y", "Export PNG / CSV / JSON / YAML"},
	}},
}

func (m Model) viewHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle := lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true)

	lines := []string{theme.StyleTitle.Render("DataPrism - Keyboard Shortcuts")}
	for _, s := range helpSections {
		lines = append(lines, "", sectionStyle.Render(s.title))
		for _, e := range s.entries {
			lines = append(lines, keyStyle.Render("  "+padRight(e.key, 14))+theme.StyleMuted.Render(e.desc))
		}
	}
	lines = append(lines, "", theme.StyleMuted.Render("Press any key to close"))

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}

func padRight(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s + " "
}
