// Package diagnostics aggregates the gateway troubleshooting report and
// runs "openclaw doctor".
package diagnostics

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/gateway"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
)

// ProfileEnv selects the OpenClaw profile.
const ProfileEnv = "OPENCLAW_PROFILE"

// GatewayDiagnostics is a fresh snapshot; it is never cached.
type GatewayDiagnostics struct {
	OpenClawInstalled bool    `json:"openclaw_installed"`
	GatewayRunning    bool    `json:"gateway_running"`
	GatewayPort       int     `json:"gateway_port"`
	DashboardURL      string  `json:"dashboard_url"`
	OpenClawVersion   *string `json:"openclaw_version"`
	ProfileName       *string `json:"profile_name"`
	LogPath           string  `json:"log_path"`
	ErrorLogPath      string  `json:"error_log_path"`

	GatewayState   string  `json:"gateway_state"`
	GatewayPID     *int    `json:"gateway_pid,omitempty"`
	ExecutablePath *string `json:"executable_path,omitempty"`
}

// Installation is the part of the installation checker diagnostics uses.
type Installation interface {
	IsInstalled() bool
	Resolve() (string, error)
	Version(ctx context.Context) (string, bool)
}

// Gateway is the part of the supervisor diagnostics uses.
type Gateway interface {
	Status(ctx context.Context) gateway.Status
	PID() int
}

// Collector builds diagnostics reports.
type Collector struct {
	Install       Installation
	Gateway       Gateway
	Runner        installer.Runner
	Profile       string // configured profile, used when ProfileEnv is unset
	LogPath       string
	ErrorLogPath  string
	DoctorTimeout time.Duration

	getenv func(string) (string, bool)
}

// Collect queries every source afresh.
func (c *Collector) Collect(ctx context.Context) GatewayDiagnostics {
	st := c.Gateway.Status(ctx)
	d := GatewayDiagnostics{
		OpenClawInstalled: c.Install.IsInstalled(),
		GatewayRunning:    st.Running,
		GatewayPort:       st.Port,
		DashboardURL:      st.DashboardURL,
		LogPath:           c.LogPath,
		ErrorLogPath:      c.ErrorLogPath,
		GatewayState:      st.State,
	}
	if v, ok := c.Install.Version(ctx); ok {
		d.OpenClawVersion = &v
	}
	if p := c.profile(); p != "" {
		d.ProfileName = &p
	}
	if pid := c.Gateway.PID(); pid > 0 {
		d.GatewayPID = &pid
	}
	if exe, err := c.Install.Resolve(); err == nil {
		d.ExecutablePath = &exe
	}
	return d
}

func (c *Collector) profile() string {
	getenv := c.getenv
	if getenv == nil {
		getenv = os.LookupEnv
	}
	if v, ok := getenv(ProfileEnv); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.Profile)
}
