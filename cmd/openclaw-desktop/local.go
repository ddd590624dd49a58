package main

import (
	"context"

	desktop "github.com/ai-dev-2024/openclaw-desktop"
	"github.com/ai-dev-2024/openclaw-desktop/internal/tui"
	"github.com/ai-dev-2024/openclaw-desktop/pkg/client"
)

// backend is the command surface the CLI and the TUI drive. *client.Client
// implements it against a running serve; localBackend runs in-process.
type backend interface {
	tui.Client
	GetGatewayErrorLogs(ctx context.Context, lines int) (string, error)
	GetGatewayDiagnostics(ctx context.Context) (client.GatewayDiagnostics, error)
	History(ctx context.Context, limit int) ([]client.HistoryEvent, error)
}

var (
	_ backend = (*client.Client)(nil)
	_ backend = localBackend{}
)

// localBackend adapts an App to the client's wire types.
type localBackend struct {
	app *desktop.App
}

func (l localBackend) IsOpenClawInstalled(ctx context.Context) (bool, error) {
	return l.app.IsOpenClawInstalled(ctx), nil
}

func (l localBackend) InstallOpenClaw(ctx context.Context) error { return l.app.InstallOpenClaw(ctx) }

func (l localBackend) GetGatewayStatus(ctx context.Context) (client.GatewayStatus, error) {
	st := l.app.GetGatewayStatus(ctx)
	return client.GatewayStatus{
		Running:      st.Running,
		Port:         st.Port,
		DashboardURL: st.DashboardURL,
		State:        st.State,
	}, nil
}

func (l localBackend) StartGateway(ctx context.Context) error   { return l.app.StartGateway(ctx) }
func (l localBackend) StopGateway(ctx context.Context) error    { return l.app.StopGateway(ctx) }
func (l localBackend) RestartGateway(ctx context.Context) error { return l.app.RestartGateway(ctx) }

func (l localBackend) AutoStartGateway(ctx context.Context) (bool, error) {
	return l.app.AutoStartGateway(ctx), nil
}

func (l localBackend) GetGatewayLogs(_ context.Context, lines int) (string, error) {
	return l.app.GetGatewayLogs(lines), nil
}

func (l localBackend) GetGatewayErrorLogs(_ context.Context, lines int) (string, error) {
	return l.app.GetGatewayErrorLogs(lines), nil
}

func (l localBackend) ClearGatewayLogs(context.Context) error { return l.app.ClearGatewayLogs() }

func (l localBackend) GetGatewayDiagnostics(ctx context.Context) (client.GatewayDiagnostics, error) {
	return client.GatewayDiagnostics(l.app.GetGatewayDiagnostics(ctx)), nil
}

func (l localBackend) RunOpenClawDoctor(ctx context.Context) (string, error) {
	return l.app.RunOpenClawDoctor(ctx)
}

func (l localBackend) GetDashboardURL(context.Context) (string, error) {
	return l.app.GetDashboardURL(), nil
}

func (l localBackend) OpenDashboardWindow(ctx context.Context) error {
	return l.app.OpenDashboardWindow(ctx)
}

func (l localBackend) History(ctx context.Context, limit int) ([]client.HistoryEvent, error) {
	events, err := l.app.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]client.HistoryEvent, 0, len(events))
	for _, e := range events {
		out = append(out, client.HistoryEvent{
			ID:         e.ID,
			Type:       string(e.Type),
			OccurredAt: e.OccurredAt,
			PID:        e.PID,
			RunID:      e.RunID,
			Detail:     e.Detail,
			Error:      e.Error,
		})
	}
	return out, nil
}
