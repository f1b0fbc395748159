package harmonizer

import "github.com/charmbracelet/lipgloss"

// Color palette for CLI output on dark terminal backgrounds.
const (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorError   = lipgloss.Color("#EF4444")
	colorSuccess = lipgloss.Color("#10B981")
)

var (
	// TitleStyle is for primary headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	// SubtitleStyle is for secondary text and descriptions.
	SubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)

	// ErrorStyle is for failure indicators.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)

	// SuccessStyle is for success indicators.
	SuccessStyle = lipgloss.NewStyle().Foreground(colorSuccess)
)
