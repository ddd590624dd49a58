package desktop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-dev-2024/openclaw-desktop/internal/config"
	"github.com/ai-dev-2024/openclaw-desktop/internal/detector"
	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
	"github.com/ai-dev-2024/openclaw-desktop/internal/logtail"
)

const fakeGatewayEnv = "OPENCLAW_DESKTOP_FAKE_GATEWAY"

// TestMain lets the test binary stand in for "openclaw gateway".
func TestMain(m *testing.M) {
	if os.Getenv(fakeGatewayEnv) == "1" {
		os.Exit(runFakeGateway(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// runFakeGateway answers the openclaw subcommands the supervisor uses. The
// gateway subcommand listens on --port until SIGTERM or SIGINT.
func runFakeGateway(args []string) int {
	if len(args) == 0 {
		return 2
	}
	switch args[0] {
	case "--version":
		fmt.Println("2026.2.1-test")
		return 0
	case "doctor":
		fmt.Println("doctor: all checks passed")
		return 0
	case "gateway":
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", args[0])
		return 1
	}
	port := ""
	for i, a := range args {
		if a == "--port" && i+1 < len(args) {
			port = args[i+1]
		}
	}
	ln, err := net.Listen("tcp", "127.0.0.1:"+port)
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		return 1
	}
	fmt.Printf("fake gateway listening on %s\n", ln.Addr())
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	<-sig
	_ = ln.Close()
	fmt.Println("fake gateway shutting down")
	return 0
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// testConfig points every path into a temp dir and the executable at a
// nonexistent file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	cfg := config.Default()
	cfg.Gateway.Port = freePort(t)
	cfg.Gateway.Executable = filepath.Join(home, "bin", "openclaw")
	cfg.Gateway.Notify = false
	cfg.Gateway.StopTimeout = 3 * time.Second
	cfg.Gateway.KillGrace = time.Second
	cfg.Gateway.ProbeTimeout = 200 * time.Millisecond
	cfg.Install.Runtime = filepath.Join(home, "bin", "npm")
	cfg.Paths = config.PathsConfig{
		Home:             home,
		Log:              filepath.Join(home, "gateway.log"),
		ErrorLog:         filepath.Join(home, "gateway_error.log"),
		PIDFile:          filepath.Join(home, "desktop", "gateway.pid"),
		ConfigFile:       filepath.Join(home, "openclaw.json"),
		LegacyConfigFile: filepath.Join(home, "legacy", "clawdbot.json"),
	}
	cfg.History.Path = filepath.Join(home, "desktop", "history.db")
	return cfg
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	app, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755)) // #nosec G306
}

// npmRunner installs openclaw by creating the executable.
type npmRunner struct {
	mu       sync.Mutex
	exe      string
	exitCode int
	stderr   string
	calls    [][]string
}

func (r *npmRunner) Run(_ context.Context, name string, args ...string) (installer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{filepath.Base(name)}, args...))
	if len(args) > 0 && args[0] == "install" && r.exitCode == 0 {
		if err := os.MkdirAll(filepath.Dir(r.exe), 0o750); err != nil {
			return installer.Result{}, err
		}
		if err := os.WriteFile(r.exe, []byte("#!/bin/sh\n"), 0o755); err != nil { // #nosec G306
			return installer.Result{}, err
		}
	}
	return installer.Result{ExitCode: r.exitCode, Stderr: r.stderr}, nil
}

type stoppedProber struct{}

func (stoppedProber) Probe(context.Context) (detector.Liveness, error) { return detector.Stopped, nil }

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Port = 0
	_, err := New(cfg, WithLogger(quietLogger()))
	assert.Error(t, err)
}

func TestInstallOpenClaw(t *testing.T) {
	cfg := testConfig(t)
	writeExecutable(t, cfg.Install.Runtime)
	runner := &npmRunner{exe: cfg.Gateway.Executable}
	app := newTestApp(t, cfg, WithRunner(runner), WithProber(stoppedProber{}))
	ctx := context.Background()

	assert.False(t, app.IsOpenClawInstalled(ctx))
	require.NoError(t, app.InstallOpenClaw(ctx))
	assert.True(t, app.IsOpenClawInstalled(ctx))
	assert.Equal(t, []string{"npm", "install", "-g", "openclaw"}, runner.calls[0])

	events, err := app.History(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, history.EventInstall, events[0].Type)
	assert.Empty(t, events[0].Error)
}

func TestInstallOpenClaw_Failures(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg, WithRunner(&npmRunner{}), WithProber(stoppedProber{}))
	err := app.InstallOpenClaw(context.Background())
	assert.ErrorIs(t, err, installer.ErrRuntimeNotFound)

	cfg = testConfig(t)
	writeExecutable(t, cfg.Install.Runtime)
	app = newTestApp(t, cfg, WithRunner(&npmRunner{exitCode: 243, stderr: "EACCES: permission denied"}), WithProber(stoppedProber{}))
	err = app.InstallOpenClaw(context.Background())
	var ie *installer.InstallCommandFailedError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 243, ie.ExitCode)
	assert.Contains(t, err.Error(), "EACCES")
}

func TestStartGateway_NotInstalled(t *testing.T) {
	app := newTestApp(t, testConfig(t), WithProber(stoppedProber{}))
	err := app.StartGateway(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, installer.ErrNotInstalled)
	assert.False(t, app.AutoStartGateway(context.Background()))
}

func TestStopGateway_WhenStopped(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	require.NoError(t, app.StopGateway(context.Background()))
	assert.Equal(t, "stopped", app.GatewayState())
}

func TestGetGatewayStatus_Stopped(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	st := app.GetGatewayStatus(context.Background())
	assert.False(t, st.Running)
	assert.Equal(t, "stopped", st.State)
	assert.Equal(t, cfg.Gateway.Port, st.Port)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d/", cfg.Gateway.Port), st.DashboardURL)
}

func TestGetGatewayLogs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.MaxTailLines = 5
	app := newTestApp(t, cfg)

	assert.Equal(t, logtail.Placeholder, app.GetGatewayLogs(0))

	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(cfg.Paths.Log, []byte(b.String()), 0o600))
	assert.Equal(t, "line 9\nline 10", app.GetGatewayLogs(2))
	assert.Len(t, strings.Split(app.GetGatewayLogs(1000), "\n"), 5, "capped at max_tail_lines")

	require.NoError(t, os.WriteFile(cfg.Paths.ErrorLog, []byte("boom\n"), 0o600))
	assert.Equal(t, "boom", app.GetGatewayErrorLogs(0))

	require.NoError(t, app.ClearGatewayLogs())
	assert.Equal(t, "", app.GetGatewayLogs(10))
}

func TestGetDashboardURL(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	base := fmt.Sprintf("http://127.0.0.1:%d/", cfg.Gateway.Port)
	assert.Equal(t, base, app.GetDashboardURL())

	require.NoError(t, os.WriteFile(cfg.Paths.ConfigFile, []byte(`{"gateway":{"auth":{"token":"s3cr3t"}}}`), 0o600))
	assert.Equal(t, base+"?token=s3cr3t", app.GetDashboardURL())
}

func TestOpenDashboardWindow(t *testing.T) {
	var opened string
	nav := navigatorFunc(func(_ context.Context, url string) error {
		opened = url
		return nil
	})
	app := newTestApp(t, testConfig(t), WithNavigator(nav))
	require.NoError(t, app.OpenDashboardWindow(context.Background()))
	assert.Equal(t, app.GetDashboardURL(), opened)
}

type navigatorFunc func(ctx context.Context, url string) error

func (f navigatorFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

func TestGetGatewayDiagnostics_NotInstalled(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	d := app.GetGatewayDiagnostics(context.Background())
	assert.False(t, d.OpenClawInstalled)
	assert.False(t, d.GatewayRunning)
	assert.Equal(t, cfg.Gateway.Port, d.GatewayPort)
	assert.Equal(t, cfg.Paths.Log, d.LogPath)
	assert.Equal(t, cfg.Paths.ErrorLog, d.ErrorLogPath)
	assert.Nil(t, d.OpenClawVersion)

	_, err := app.RunOpenClawDoctor(context.Background())
	assert.ErrorIs(t, err, installer.ErrNotInstalled)
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	app := newTestApp(t, cfg)
	_, err := app.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestGatewayEnv(t *testing.T) {
	t.Setenv("OPENCLAW_PROFILE", "")
	require.NoError(t, os.Unsetenv("OPENCLAW_PROFILE"))

	assert.Nil(t, gatewayEnv(config.GatewayConfig{}))

	got := gatewayEnv(config.GatewayConfig{Profile: "work", Env: []string{"FOO=bar"}})
	assert.Contains(t, got, "OPENCLAW_PROFILE=work")
	assert.Contains(t, got, "FOO=bar")

	t.Setenv("OPENCLAW_PROFILE", "env")
	assert.Nil(t, gatewayEnv(config.GatewayConfig{Profile: "work"}))
}
