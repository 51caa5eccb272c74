// Package chartview is the visualization page: a chart builder over the last
// query result, rendered with block characters.
package chartview

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/chart"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/export"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// ExportedMsg reports the outcome of a chart export.
type ExportedMsg struct {
	Path string
	Err  error
}

// Model is the visualization component.
type Model struct {
	rows      []engine.Row
	columns   []string
	xIdx      int
	yIdx      int
	groupIdx  int // -1 when not grouping
	chartType chart.Type
	agg       chart.Aggregation
	built     *chart.Chart
	err       error
	width     int
	height    int
	focused   bool
	exportDir string
}

// New creates a visualization model with the preferred chart type.
func New(preferred string) Model {
	t := chart.Type(preferred)
	if !t.Valid() {
		t = chart.Bar
	}
	return Model{chartType: t, agg: chart.Sum, groupIdx: -1, exportDir: "."}
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

// SetData replaces the chart source and picks default axes.
func (m *Model) SetData(rows []engine.Row, columns []string) {
	if len(columns) == 0 {
		columns = engine.ResultColumns(rows)
	}
	m.rows = rows
	m.columns = columns
	m.groupIdx = -1

	x, y := chart.SuggestAxes(rows, columns)
	m.xIdx, m.yIdx = indexOf(columns, x), indexOf(columns, y)
	m.rebuild()
}

// HasData reports whether a result has been loaded.
func (m Model) HasData() bool {
	return len(m.rows) > 0
}

// Config returns the chart config for the current selections.
func (m Model) Config() chart.Config {
	cfg := chart.Config{
		Type:        m.chartType,
		Data:        m.rows,
		Aggregation: m.agg,
	}
	if m.xIdx >= 0 && m.xIdx < len(m.columns) {
		cfg.XAxis = m.columns[m.xIdx]
	}
	if m.yIdx >= 0 && m.yIdx < len(m.columns) {
		cfg.YAxis = m.columns[m.yIdx]
	}
	if m.groupIdx >= 0 && m.groupIdx < len(m.columns) {
		cfg.GroupBy = m.columns[m.groupIdx]
	}
	return cfg
}

func (m *Model) rebuild() {
	m.built, m.err = nil, nil
	if len(m.rows) == 0 {
		return
	}
	m.built, m.err = chart.Build(m.Config())
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses while the page is focused.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused || len(m.columns) == 0 {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	n := len(m.columns)
	switch key.String() {
	case "t":
		m.chartType = m.chartType.Next()
	case "a":
		m.agg = m.agg.Next()
	case "x":
		m.xIdx = (m.xIdx + 1) % n
	case "y":
		m.yIdx = (m.yIdx + 1) % n
	case "g":
		// cycles through every column, then back to no grouping
		m.groupIdx++
		if m.groupIdx >= n {
			m.groupIdx = -1
		}
	case "P":
		return m, m.exportCmd(export.FormatPNG)
	case "C":
		return m, m.exportCmd(export.FormatCSV)
	case "J":
		return m, m.exportCmd(export.FormatJSON)
	case "Y":
		return m, m.exportCmd(export.FormatYAML)
	default:
		return m, nil
	}
	m.rebuild()
	return m, nil
}

func (m Model) exportCmd(f export.Format) tea.Cmd {
	cfg := m.Config()
	dir := m.exportDir
	w, h := export.DefaultWidth, export.DefaultHeight
	return func() tea.Msg {
		data, err := export.Chart(context.Background(), cfg, f, w, h)
		if err != nil {
			return ExportedMsg{Err: &app.ErrExport{Format: string(f), Cause: err}}
		}
		path := filepath.Join(dir, export.Filename("dataprism_chart", f, time.Now()))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return ExportedMsg{Err: &app.ErrExport{Format: string(f), Cause: err}}
		}
		return ExportedMsg{Path: path}
	}
}

// View renders the visualization page.
func (m Model) View() string {
	title := theme.StylePaneTitle.Render("Visualization")
	if len(m.rows) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  Run a query in the Query Lab and press v to chart it")
	}

	cfg := m.Config()
	group := "none"
	if cfg.GroupBy != "" {
		group = cfg.GroupBy
	}
	controls := theme.StyleMuted.Render(fmt.Sprintf(
		"  [t] type: %s  [x] x: %s  [y] y: %s  [a] agg: %s  [g] group: %s",
		cfg.Type, cfg.XAxis, cfg.YAxis, cfg.Aggregation, group))
	exports := theme.StyleMuted.Render("  export: [P] png  [C] csv  [J] json  [Y] yaml")

	var body string
	switch {
	case m.err != nil:
		body = theme.StyleError.Render("  " + m.err.Error())
	case m.built == nil || len(m.built.Labels) == 0:
		body = theme.StyleMuted.Render("  Nothing to plot")
	default:
		plotHeight := max(3, m.height-6)
		switch m.built.Type {
		case chart.Pie:
			body = renderPie(m.built, m.width-4)
		case chart.Line:
			body = renderLine(m.built, m.width-4, plotHeight)
		default:
			body = renderBars(m.built, m.width-4)
		}
	}

	header := title + "  " + theme.StyleTitle.Render(titleOf(m.built))
	return lipgloss.JoinVertical(lipgloss.Left, header, controls, exports, "", body)
}

func titleOf(c *chart.Chart) string {
	if c == nil {
		return ""
	}
	return c.Title
}

func renderBars(c *chart.Chart, width int) string {
	labelW := 0
	for _, l := range c.Labels {
		labelW = max(labelW, lipgloss.Width(l))
	}
	labelW = min(labelW, 16)
	barMax := max(1, width-labelW-14)
	maxV := c.MaxValue()

	var lines []string
	for i, l := range c.Labels {
		for si, s := range c.Series {
			label := ""
			if si == 0 {
				label = l
			}
			n := 0
			if maxV > 0 && s.Values[i] > 0 {
				n = max(1, int(math.Round(s.Values[i]/maxV*float64(barMax))))
			}
			bar := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(strings.Repeat("█", n))
			lines = append(lines, fmt.Sprintf("  %-*s %s %s", labelW, clip(label, labelW), bar, formatValue(s.Values[i])))
		}
	}
	lines = append(lines, legend(c))
	return strings.Join(lines, "\n")
}

func renderLine(c *chart.Chart, width, height int) string {
	cols := len(c.Labels)
	step := max(1, min(8, (width-10)/max(1, cols)))
	maxV := c.MaxValue()
	if maxV <= 0 {
		maxV = 1
	}

	grid := make([][]string, height)
	for r := range grid {
		grid[r] = make([]string, cols*step)
		for k := range grid[r] {
			grid[r][k] = " "
		}
	}
	for _, s := range c.Series {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render("●")
		for i, v := range s.Values {
			r := height - 1 - int(math.Round(v/maxV*float64(height-1)))
			r = min(max(r, 0), height-1)
			grid[r][i*step] = dot
		}
	}

	var lines []string
	for r, cells := range grid {
		axis := "        │"
		if r == 0 {
			axis = fmt.Sprintf("%8s┤", formatValue(maxV))
		}
		lines = append(lines, axis+strings.Join(cells, ""))
	}
	lines = append(lines, "        └"+strings.Repeat("─", cols*step))

	var labels strings.Builder
	labels.WriteString("         ")
	for _, l := range c.Labels {
		labels.WriteString(fmt.Sprintf("%-*s", step, clip(l, step-1)))
	}
	lines = append(lines, theme.StyleMuted.Render(labels.String()), legend(c))
	return strings.Join(lines, "\n")
}

func renderPie(c *chart.Chart, width int) string {
	totals := c.Totals()
	sum := 0.0
	for _, v := range totals {
		sum += math.Max(v, 0)
	}
	if sum == 0 {
		return theme.StyleMuted.Render("  All values are zero")
	}

	barMax := max(1, width-36)
	var lines []string
	for i, l := range c.Labels {
		share := math.Max(totals[i], 0) / sum
		n := int(math.Round(share * float64(barMax)))
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(chart.Color(i))).Render(strings.Repeat("■", n))
		lines = append(lines, fmt.Sprintf("  %-16s %5.1f%% %s", clip(l, 16), share*100, bar))
	}
	return strings.Join(lines, "\n")
}

func legend(c *chart.Chart) string {
	if len(c.Series) < 2 {
		return ""
	}
	parts := make([]string, len(c.Series))
	for i, s := range c.Series {
		parts[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render("■ " + s.Name)
	}
	return "  " + strings.Join(parts, "  ")
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e12 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}
