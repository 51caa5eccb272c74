package statusbar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// Model is the status bar component.
type Model struct {
	width    int
	ready    bool
	engine   string
	fallback bool
	page     string
	message  string
}

// New creates a new status bar model.
func New() Model {
	return Model{page: "Home"}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetEngine updates the engine indicator. fallback marks a mock engine that
// replaced an unavailable real one.
func (m *Model) SetEngine(name string, fallback bool) {
	m.ready = true
	m.engine = name
	m.fallback = fallback
}

// SetPage updates the displayed page title.
func (m *Model) SetPage(title string) {
	m.page = title
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages (status bar has no interactive behavior).
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var indicator string
	switch {
	case !m.ready:
		indicator = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("●") + " starting"
	case m.fallback:
		indicator = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("●") + " " + m.engine + " (fallback)"
	default:
		indicator = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●") + " " + m.engine
	}
	left := indicator + "  " + theme.StyleMuted.Render(m.page)

	right := "F1-F4: Pages │ Tab: Pane │ ?: Help │ Ctrl+C: Quit"
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
