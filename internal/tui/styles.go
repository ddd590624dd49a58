package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Semantic palette; AdaptiveColor picks per terminal background.
var (
	colorRunning = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	colorPending = lipgloss.AdaptiveColor{Light: "136", Dark: "214"}
	colorStopped = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorUnknown = lipgloss.AdaptiveColor{Light: "245", Dark: "243"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	colorBgDark  = lipgloss.AdaptiveColor{Light: "254", Dark: "236"}
)

var (
	// TitleStyle renders the top title bar.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "255", Dark: "255"}).
			Background(colorAccent).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorStopped).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorRunning)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBgDark).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().Foreground(colorRunning)
	pendingStyle = lipgloss.NewStyle().Foreground(colorPending)
	stoppedStyle = lipgloss.NewStyle().Foreground(colorStopped)
	unknownStyle = lipgloss.NewStyle().Foreground(colorUnknown)
)

// RenderTitle wraps text with TitleStyle.
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderError formats a failed action as one inline line.
func RenderError(action string, err error) string {
	if err == nil {
		return ""
	}
	msg := firstLine(err.Error())
	if action == "" {
		return ErrorStyle.Render("Error: " + msg)
	}
	return ErrorStyle.Render(fmt.Sprintf("%s failed: %s", action, msg))
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return runningStyle
	case "starting", "stopping":
		return pendingStyle
	case "stopped":
		return stoppedStyle
	default:
		return unknownStyle
	}
}

func stateIndicator(state string) string {
	switch state {
	case "running":
		return runningStyle.Render("●")
	case "starting", "stopping":
		return pendingStyle.Render("◐")
	case "stopped":
		return stoppedStyle.Render("○")
	default:
		return unknownStyle.Render("?")
	}
}
