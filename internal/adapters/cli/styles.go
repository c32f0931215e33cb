package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorError   = lipgloss.Color("#f7768e")
	colorMuted   = lipgloss.Color("#565f89")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	okStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle = lipgloss.NewStyle().Width(14)
)

func confidenceStyle(confidence string) lipgloss.Style {
	switch confidence {
	case "HIGH":
		return okStyle
	case "MEDIUM", "LOW":
		return warnStyle
	default:
		return errStyle
	}
}

func determinationStyle(determination string) lipgloss.Style {
	switch determination {
	case "ELIGIBLE":
		return okStyle
	case "CONDITIONAL":
		return warnStyle
	default:
		return errStyle
	}
}
