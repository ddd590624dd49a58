package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func renderView(m Model) string {
	var b strings.Builder

	b.WriteString(RenderTitle(" OpenClaw Desktop "))
	b.WriteString("\n\n")

	switch m.view {
	case viewChecking:
		b.WriteString(m.spinner.View() + " Checking for OpenClaw...")
		b.WriteString("\n")
	case viewSetup:
		b.WriteString(renderSetup(m))
	case viewDashboard:
		b.WriteString(renderDashboard(m))
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(RenderError(m.errAction, m.err))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(SuccessStyle.Render(m.notice))
		b.WriteString("\n")
	}

	if m.view == viewDashboard {
		b.WriteString("\n")
		b.WriteString(renderStatusBar(m))
		b.WriteString("\n")
	}

	b.WriteString(renderHelp(m))
	return b.String()
}

func renderSetup(m Model) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("OpenClaw is not installed"))
	b.WriteString("\n\n")
	b.WriteString("The gateway runs the openclaw command line tool.\n")
	b.WriteString("Press i to install it with the configured package manager.\n")
	if m.installing {
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Installing OpenClaw, this can take a few minutes...")
		b.WriteString("\n")
	}
	return b.String()
}

func renderDashboard(m Model) string {
	var b strings.Builder

	b.WriteString(renderGateway(m))
	b.WriteString("\n")

	if m.acting != "" {
		b.WriteString(m.spinner.View() + " " + actionProgress(m.acting))
		b.WriteString("\n")
	}
	if m.doctoring {
		b.WriteString(m.spinner.View() + " Running openclaw doctor...")
		b.WriteString("\n")
	}

	if m.doctorOut != "" {
		b.WriteString("\n")
		b.WriteString(HeaderStyle.Render("Doctor"))
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(m.doctorOut))
		b.WriteString("\n")
	}

	if m.logsOpen {
		b.WriteString("\n")
		b.WriteString(HeaderStyle.Render("Gateway logs"))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  last %d lines", m.opts.LogLines)))
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(m.logs.View()))
		b.WriteString("\n")
	}
	return b.String()
}

func renderGateway(m Model) string {
	if !m.hasStatus {
		return MutedStyle.Render("  Gateway status pending...")
	}
	st := m.status
	state := st.State
	if state == "" {
		state = "stopped"
		if st.Running {
			state = "running"
		}
	}
	rows := []string{
		fmt.Sprintf("%s Gateway %s", stateIndicator(state), stateStyle(state).Render(state)),
		fmt.Sprintf("  Port       %d", st.Port),
		fmt.Sprintf("  Dashboard  %s", st.DashboardURL),
	}
	if m.pollErr != nil {
		rows = append(rows, MutedStyle.Render("  Status may be stale: "+firstLine(m.pollErr.Error())))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func actionProgress(action string) string {
	switch action {
	case actionStart:
		return "Starting gateway..."
	case actionStop:
		return "Stopping gateway..."
	case actionRestart:
		return "Restarting gateway..."
	case actionClearLogs:
		return "Clearing logs..."
	}
	return action + "..."
}

func renderStatusBar(m Model) string {
	left := " [Gateway] "
	if m.hasStatus && m.status.Running {
		left += "up"
	} else {
		left += "down"
	}
	right := "never updated"
	if !m.lastUpdate.IsZero() {
		right = "updated " + m.lastUpdate.Format(time.TimeOnly)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func renderHelp(m Model) string {
	if m.view == viewSetup {
		return m.help.View(setupKeys{km: m.keys})
	}
	if m.view != viewDashboard {
		return ""
	}
	h := m.help
	h.ShowAll = m.showHelp
	return h.View(dashboardKeys{km: m.keys, logsOpen: m.logsOpen})
}
