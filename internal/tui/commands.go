package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ai-dev-2024/openclaw-desktop/internal/logtail"
	"github.com/ai-dev-2024/openclaw-desktop/pkg/client"
)

// Messages

type installedMsg struct {
	installed bool
	err       error
}

type installDoneMsg struct {
	err error
}

type autoStartMsg struct {
	started bool
	err     error
}

type statusMsg struct {
	status client.GatewayStatus
	err    error
}

type actionDoneMsg struct {
	action string
	err    error
}

type logsMsg struct {
	gen     int
	content string
	err     error
}

// logTickMsg and logChangedMsg carry the panel generation that scheduled them.
type logTickMsg struct{ gen int }

type logChangedMsg struct{ gen int }

type doctorMsg struct {
	output string
	err    error
}

type dashboardOpenedMsg struct {
	url string
	err error
}

type tickMsg time.Time

// Action labels, used for the inline error line and notices.
const (
	actionInstall   = "Install"
	actionStart     = "Start"
	actionStop      = "Stop"
	actionRestart   = "Restart"
	actionAutoStart = "Auto-start"
	actionClearLogs = "Clear logs"
	actionDoctor    = "Doctor"
	actionDashboard = "Open dashboard"
)

// Commands

func checkInstalled(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ok, err := c.IsOpenClawInstalled(ctx)
		return installedMsg{installed: ok, err: err}
	}
}

func install(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return installDoneMsg{err: c.InstallOpenClaw(ctx)}
	}
}

func autoStart(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		started, err := c.AutoStartGateway(ctx)
		return autoStartMsg{started: started, err: err}
	}
}

func fetchStatus(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		st, err := c.GetGatewayStatus(ctx)
		return statusMsg{status: st, err: err}
	}
}

func gatewayAction(c Client, ctx context.Context, action string) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch action {
		case actionStart:
			err = c.StartGateway(ctx)
		case actionStop:
			err = c.StopGateway(ctx)
		case actionRestart:
			err = c.RestartGateway(ctx)
		case actionClearLogs:
			err = c.ClearGatewayLogs(ctx)
		}
		return actionDoneMsg{action: action, err: err}
	}
}

func fetchLogs(c Client, ctx context.Context, gen, lines int) tea.Cmd {
	return func() tea.Msg {
		out, err := c.GetGatewayLogs(ctx, lines)
		return logsMsg{gen: gen, content: out, err: err}
	}
}

func runDoctor(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		out, err := c.RunOpenClawDoctor(ctx)
		return doctorMsg{output: out, err: err}
	}
}

func openDashboard(c Client, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		url, err := c.GetDashboardURL(ctx)
		if err != nil {
			return dashboardOpenedMsg{err: err}
		}
		return dashboardOpenedMsg{url: url, err: c.OpenDashboardWindow(ctx)}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func logTickCmd(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return logTickMsg{gen: gen}
	})
}

// watchLogs starts a file watcher for the log panel. It returns nil when the
// file cannot be watched; polling still covers the panel then.
func watchLogs(ctx context.Context, path string) <-chan struct{} {
	if path == "" {
		return nil
	}
	ch, err := logtail.Watch(ctx, path)
	if err != nil {
		return nil
	}
	return ch
}

// waitLogChange blocks until the watcher fires. A closed channel ends the chain.
func waitLogChange(ch <-chan struct{}, gen int) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return logChangedMsg{gen: gen}
	}
}
