package diagnostics

import (
	"context"
	"strings"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/metrics"
)

const noOutput = "OpenClaw doctor finished with no output"

// HealthCheckError is a non-zero exit of "openclaw doctor".
type HealthCheckError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *HealthCheckError) Error() string {
	var b strings.Builder
	b.WriteString("OpenClaw doctor failed")
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString("\n\n" + s)
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		b.WriteString("\n\n" + s)
	}
	return b.String()
}

// RunHealthCheck runs "openclaw doctor" and returns its report.
func (c *Collector) RunHealthCheck(ctx context.Context) (string, error) {
	exe, err := c.Install.Resolve()
	if err != nil {
		metrics.IncCommand("doctor", "not_installed")
		return "", err
	}
	timeout := c.DoctorTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.Runner.Run(ctx, exe, "doctor")
	if err != nil {
		metrics.IncCommand("doctor", "error")
		return "", err
	}
	if res.ExitCode != 0 {
		metrics.IncCommand("doctor", "failed")
		return "", &HealthCheckError{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	metrics.IncCommand("doctor", "ok")
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return noOutput, nil
	}
	return out, nil
}
