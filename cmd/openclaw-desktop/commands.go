package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/logtail"
)

type command struct {
	b backend
	w io.Writer
}

func (c command) Installed(ctx context.Context) error {
	ok, err := c.b.IsOpenClawInstalled(ctx)
	if err != nil {
		return err
	}
	printJSON(c.w, ok)
	return nil
}

func (c command) Install(ctx context.Context) error {
	if err := c.b.InstallOpenClaw(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.w, "OpenClaw installed")
	return nil
}

func (c command) Status(ctx context.Context) error {
	st, err := c.b.GetGatewayStatus(ctx)
	if err != nil {
		return err
	}
	printJSON(c.w, st)
	return nil
}

// Start prints the status after the gateway was launched (or found running).
func (c command) Start(ctx context.Context) error {
	if err := c.b.StartGateway(ctx); err != nil {
		return err
	}
	return c.Status(ctx)
}

func (c command) Stop(ctx context.Context) error {
	if err := c.b.StopGateway(ctx); err != nil {
		return err
	}
	return c.Status(ctx)
}

func (c command) Restart(ctx context.Context) error {
	if err := c.b.RestartGateway(ctx); err != nil {
		return err
	}
	return c.Status(ctx)
}

func (c command) AutoStart(ctx context.Context) error {
	started, err := c.b.AutoStartGateway(ctx)
	if err != nil {
		return err
	}
	printJSON(c.w, started)
	return nil
}

// Logs prints the log tail. With Follow it reprints the tail each interval
// until ctx ends.
func (c command) Logs(ctx context.Context, f LogsFlags, interval time.Duration) error {
	if f.Clear {
		if err := c.b.ClearGatewayLogs(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.w, "Logs cleared")
		return nil
	}
	tail := c.b.GetGatewayLogs
	if f.Errors {
		tail = c.b.GetGatewayErrorLogs
	}
	lines := f.Lines
	if lines <= 0 {
		lines = logtail.DefaultLines
	}

	out, err := tail(ctx, lines)
	if err != nil {
		return err
	}
	printText(c.w, out)
	if !f.Follow {
		return nil
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	last := out
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		out, err := tail(ctx, lines)
		if err != nil {
			return err
		}
		if out == last {
			continue
		}
		printText(c.w, newLines(last, out))
		last = out
	}
}

func (c command) Diagnostics(ctx context.Context) error {
	d, err := c.b.GetGatewayDiagnostics(ctx)
	if err != nil {
		return err
	}
	printJSON(c.w, d)
	return nil
}

func (c command) Doctor(ctx context.Context) error {
	out, err := c.b.RunOpenClawDoctor(ctx)
	if err != nil {
		return err
	}
	printText(c.w, out)
	return nil
}

func (c command) DashboardURL(ctx context.Context) error {
	url, err := c.b.GetDashboardURL(ctx)
	if err != nil {
		return err
	}
	printText(c.w, url)
	return nil
}

func (c command) OpenDashboard(ctx context.Context) error {
	return c.b.OpenDashboardWindow(ctx)
}

func (c command) History(ctx context.Context, f HistoryFlags) error {
	events, err := c.b.History(ctx, f.Limit)
	if err != nil {
		return err
	}
	printJSON(c.w, events)
	return nil
}

// newLines returns the part of cur that follows the last line of prev. When
// the log was cleared or rotated the whole of cur is new.
func newLines(prev, cur string) string {
	if prev == "" || prev == logtail.Placeholder {
		return cur
	}
	lines := strings.Split(prev, "\n")
	lastLine := lines[len(lines)-1]
	if i := strings.LastIndex(cur, lastLine); i >= 0 && lastLine != "" {
		rest := strings.TrimPrefix(cur[i+len(lastLine):], "\n")
		return rest
	}
	return cur
}
