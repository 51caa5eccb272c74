package theme

import "github.com/charmbracelet/lipgloss"

// Color palette, terminal-friendly.
var (
	ColorPrimary   = lipgloss.Color("63")  // Indigo
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Amber
	ColorError     = lipgloss.Color("196") // Red
	ColorBorder    = lipgloss.Color("238") // Dark gray
	ColorMuted     = lipgloss.Color("245") // Light gray
	ColorHighlight = lipgloss.Color("229") // Yellow
)

// Shared styles used across TUI components.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleActiveBorder = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StylePaneTitle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleSelected = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)

	StyleTab = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 2)

	StyleActiveTab = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(ColorPrimary).
			Bold(true).
			Padding(0, 2)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)
