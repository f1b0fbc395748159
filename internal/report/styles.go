package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/eysenfalk/factorio-harmonizer/internal/conflict"
)

// Color palette for dark terminal backgrounds. Severity styling lives
// here so the detection core stays free of presentation concerns.
const (
	colorCritical = lipgloss.Color("#EF4444")
	colorHigh     = lipgloss.Color("#F59E0B")
	colorMedium   = lipgloss.Color("#3B82F6")
	colorLow      = lipgloss.Color("#6B7280")
	colorInfo     = lipgloss.Color("#9CA3AF")
	colorTitle    = lipgloss.Color("#7C3AED")
	colorGood     = lipgloss.Color("#10B981")
)

var (
	// TitleStyle renders report headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)

	// SectionStyle renders group headings.
	SectionStyle = lipgloss.NewStyle().Bold(true)

	// MutedStyle renders secondary detail lines.
	MutedStyle = lipgloss.NewStyle().Foreground(colorLow)

	// GoodStyle renders the no-issues outcome.
	GoodStyle = lipgloss.NewStyle().Foreground(colorGood)

	severityStyles = map[conflict.Severity]lipgloss.Style{
		conflict.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(colorCritical),
		conflict.SeverityHigh:     lipgloss.NewStyle().Foreground(colorHigh),
		conflict.SeverityMedium:   lipgloss.NewStyle().Foreground(colorMedium),
		conflict.SeverityLow:      lipgloss.NewStyle().Foreground(colorLow),
		conflict.SeverityInfo:     lipgloss.NewStyle().Foreground(colorInfo),
	}
)

// SeverityStyle returns the style for a severity grade. Unknown
// grades render unstyled.
func SeverityStyle(s conflict.Severity) lipgloss.Style {
	if style, ok := severityStyles[s]; ok {
		return style
	}
	return lipgloss.NewStyle()
}
