// Package desktop is the command surface of the OpenClaw desktop supervisor.
// An App is built once from configuration and shared by every front end
// (terminal UI, HTTP command API, CLI).
package desktop

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ai-dev-2024/openclaw-desktop/internal/config"
	"github.com/ai-dev-2024/openclaw-desktop/internal/dashboard"
	"github.com/ai-dev-2024/openclaw-desktop/internal/detector"
	"github.com/ai-dev-2024/openclaw-desktop/internal/diagnostics"
	"github.com/ai-dev-2024/openclaw-desktop/internal/env"
	"github.com/ai-dev-2024/openclaw-desktop/internal/gateway"
	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
	"github.com/ai-dev-2024/openclaw-desktop/internal/logtail"
	"github.com/ai-dev-2024/openclaw-desktop/internal/metrics"
	"github.com/ai-dev-2024/openclaw-desktop/internal/poller"
	"github.com/ai-dev-2024/openclaw-desktop/internal/process"
	iapi "github.com/ai-dev-2024/openclaw-desktop/internal/server"
)

// Re-export the wire types so callers need not import internal packages.

type (
	Config             = config.Config
	GatewayStatus      = gateway.Status
	GatewayDiagnostics = diagnostics.GatewayDiagnostics
	HistoryEvent       = history.Event
	Navigator          = dashboard.Navigator
)

// ErrHistoryDisabled is returned by History when history.enabled is false.
var ErrHistoryDisabled = errors.New("gateway history is disabled")

// App owns the supervisor and everything around it.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	checker *installer.Checker
	sup     *gateway.Supervisor
	diag    *diagnostics.Collector
	dash    dashboard.Resolver
	nav     dashboard.Navigator
	hist    *history.SQLSink
	sampler *metrics.ProcessSampler
}

type options struct {
	log      *slog.Logger
	ctrl     process.Controller
	prober   gateway.Prober
	runner   installer.Runner
	nav      dashboard.Navigator
	notifier gateway.Notifier
	dirs     []string
}

// Option customizes New.
type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithController replaces the OS process controller.
func WithController(c process.Controller) Option { return func(o *options) { o.ctrl = c } }

// WithProber replaces the TCP port probe.
func WithProber(p gateway.Prober) Option { return func(o *options) { o.prober = p } }

// WithRunner replaces the runner used for npm and openclaw subcommands.
func WithRunner(r installer.Runner) Option { return func(o *options) { o.runner = r } }

func WithNavigator(n dashboard.Navigator) Option { return func(o *options) { o.nav = n } }

func WithNotifier(n gateway.Notifier) Option { return func(o *options) { o.notifier = n } }

// WithSearchDirs adds directories searched for openclaw after PATH.
func WithSearchDirs(dirs ...string) Option { return func(o *options) { o.dirs = append(o.dirs, dirs...) } }

// New wires an App from cfg. It adopts a gateway left running by a previous
// session but never starts one; call AutoStartGateway for that.
func New(cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.ctrl == nil {
		o.ctrl = process.NewController()
	}
	if o.prober == nil {
		o.prober = detector.PortDetector{Host: cfg.Gateway.Host, Port: cfg.Gateway.Port, Timeout: cfg.Gateway.ProbeTimeout}
	}
	gwEnv := gatewayEnv(cfg.Gateway)
	if o.runner == nil {
		o.runner = installer.ExecRunner{Env: gwEnv}
	}
	if o.nav == nil {
		o.nav = dashboard.BrowserNavigator{}
	}
	if o.notifier == nil {
		if cfg.Gateway.Notify {
			o.notifier = gateway.NewDesktopNotifier("OpenClaw Desktop")
		} else {
			o.notifier = gateway.NopNotifier{}
		}
	}

	a := &App{cfg: cfg, log: o.log, nav: o.nav}
	a.checker = installer.New(installer.Config{
		Executable: cfg.Gateway.Executable,
		Runtime:    cfg.Install.Runtime,
		Package:    cfg.Install.Package,
		ExtraDirs:  o.dirs,
	}, o.runner, o.log.With("component", "installer"))

	var sink history.Sink
	if cfg.History.Enabled {
		h, err := history.NewSQLSinkFromDSN(cfg.History.Path)
		if err != nil {
			// the journal is optional; the supervisor runs without it
			o.log.Warn("gateway history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			a.hist = h
			sink = h
		}
	}

	archive := cfg.Log.Logger().File
	a.sup = gateway.New(gateway.Options{
		Port:              cfg.Gateway.Port,
		Host:              cfg.Gateway.Host,
		Args:              cfg.Gateway.GatewayArgs(),
		StopArgs:          cfg.Gateway.StopArgs,
		Env:               gwEnv,
		LogPath:           cfg.Paths.Log,
		ErrorLogPath:      cfg.Paths.ErrorLog,
		PIDFile:           cfg.Paths.PIDFile,
		StopTimeout:       cfg.Gateway.StopTimeout,
		KillGrace:         cfg.Gateway.KillGrace,
		AutoRestart:       cfg.Gateway.AutoRestart,
		MaxRestarts:       cfg.Gateway.MaxRestarts,
		RestartWindow:     cfg.Gateway.RestartWindow,
		RestartBackoff:    cfg.Gateway.RestartBackoff,
		MaxRestartBackoff: cfg.Gateway.MaxRestartBackoff,
		Archive:           archive.Archive,
	}, gateway.Deps{
		Controller: o.ctrl,
		Resolver:   a.checker,
		Prober:     o.prober,
		Runner:     o.runner,
		History:    sink,
		Notifier:   o.notifier,
		Logger:     o.log,
	})

	a.diag = &diagnostics.Collector{
		Install:       a.checker,
		Gateway:       a.sup,
		Runner:        o.runner,
		Profile:       cfg.Gateway.Profile,
		LogPath:       cfg.Paths.Log,
		ErrorLogPath:  cfg.Paths.ErrorLog,
		DoctorTimeout: cfg.Diagnostics.DoctorTimeout,
	}
	a.dash = dashboard.Resolver{
		Host:       cfg.Gateway.Host,
		Port:       cfg.Gateway.Port,
		ConfigFile: cfg.Paths.ConfigFile,
		LegacyFile: cfg.Paths.LegacyConfigFile,
	}
	a.sampler = metrics.NewProcessSampler(cfg.Metrics.Interval, a.sup.PID, o.log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.sup.Recover(ctx)
	return a, nil
}

// gatewayEnv passes the configured profile to the gateway unless the
// environment already selects one.
func gatewayEnv(g config.GatewayConfig) []string {
	_, envProfile := os.LookupEnv(diagnostics.ProfileEnv)
	if len(g.Env) == 0 && (g.Profile == "" || envProfile) {
		return nil
	}
	e := env.New().FromOS()
	if g.Profile != "" && !envProfile {
		e.WithSet(diagnostics.ProfileEnv, g.Profile)
	}
	return e.Merge(g.Env)
}

// Close releases the history journal and stops exit watchers. The gateway
// keeps running.
func (a *App) Close() error {
	a.sup.Close()
	if a.hist != nil {
		return a.hist.Close()
	}
	return nil
}

func (a *App) Config() *Config      { return a.cfg }
func (a *App) Logger() *slog.Logger { return a.log }
func (a *App) GatewayPID() int      { return a.sup.PID() }
func (a *App) GatewayState() string { return a.sup.State().String() }

// IsOpenClawInstalled reports whether the openclaw CLI resolves.
func (a *App) IsOpenClawInstalled(_ context.Context) bool {
	return a.checker.IsInstalled()
}

// InstallOpenClaw installs the CLI through npm. It blocks until npm exits.
func (a *App) InstallOpenClaw(ctx context.Context) error {
	err := a.checker.Install(ctx)
	e := history.NewEvent(history.EventInstall)
	if err != nil {
		e.Error = err.Error()
		metrics.IncCommand("install", "failed")
	} else {
		metrics.IncCommand("install", "ok")
	}
	a.recordEvent(ctx, e)
	return err
}

func (a *App) GetGatewayStatus(ctx context.Context) GatewayStatus { return a.sup.Status(ctx) }

func (a *App) StartGateway(ctx context.Context) error   { return a.sup.Start(ctx) }
func (a *App) StopGateway(ctx context.Context) error    { return a.sup.Stop(ctx) }
func (a *App) RestartGateway(ctx context.Context) error { return a.sup.Restart(ctx) }

// AutoStartGateway starts the gateway if it is not running and reports
// whether it did. A start failure is logged and reported as false.
func (a *App) AutoStartGateway(ctx context.Context) bool {
	started, err := a.sup.AutoStart(ctx)
	if err != nil {
		a.log.Warn("auto-start gateway", "error", err)
		return false
	}
	return started
}

// GetGatewayLogs returns the last lines of the gateway log. lines <= 0
// means the default.
func (a *App) GetGatewayLogs(lines int) string {
	return logtail.Tail(a.cfg.Paths.Log, a.tailLines(lines))
}

// GetGatewayErrorLogs is GetGatewayLogs for the stderr log.
func (a *App) GetGatewayErrorLogs(lines int) string {
	return logtail.Tail(a.cfg.Paths.ErrorLog, a.tailLines(lines))
}

func (a *App) tailLines(lines int) int {
	if lines <= 0 {
		lines = logtail.DefaultLines
	}
	if limit := a.cfg.Log.MaxTailLines; limit > 0 && lines > limit {
		lines = limit
	}
	return lines
}

// ClearGatewayLogs empties the gateway log.
func (a *App) ClearGatewayLogs() error { return logtail.Clear(a.cfg.Paths.Log) }

func (a *App) GetGatewayDiagnostics(ctx context.Context) GatewayDiagnostics {
	return a.diag.Collect(ctx)
}

// RunOpenClawDoctor runs "openclaw doctor".
func (a *App) RunOpenClawDoctor(ctx context.Context) (string, error) {
	return a.diag.RunHealthCheck(ctx)
}

// GetDashboardURL returns the dashboard URL including the auth token when
// one is configured.
func (a *App) GetDashboardURL() string { return a.dash.URL() }

// OpenDashboardWindow shows the dashboard through the navigator.
func (a *App) OpenDashboardWindow(ctx context.Context) error {
	return a.nav.Open(ctx, a.dash.URL())
}

// History returns the most recent lifecycle events, newest first.
func (a *App) History(ctx context.Context, limit int) ([]HistoryEvent, error) {
	if a.hist == nil {
		return nil, ErrHistoryDisabled
	}
	return a.hist.Recent(ctx, limit)
}

func (a *App) recordEvent(ctx context.Context, e history.Event) {
	if a.hist == nil {
		return
	}
	if err := a.hist.Send(context.WithoutCancel(ctx), e); err != nil {
		a.log.Warn("record history", "event", string(e.Type), "error", err)
	}
}

// WatchStatus polls the gateway status every interval until ctx is done,
// keeping the gateway_up gauge current. It returns when ctx is cancelled.
func (a *App) WatchStatus(ctx context.Context, interval time.Duration) {
	p := &poller.Poller{
		Name:      "gateway-status",
		Interval:  interval,
		Immediate: true,
		Logger:    a.log,
		Query:     func(ctx context.Context) { a.sup.Status(ctx) },
	}
	p.Run(ctx)
}

// RunSampler samples the gateway's CPU and memory until ctx is done.
func (a *App) RunSampler(ctx context.Context) { a.sampler.Run(ctx) }

// NewHandler returns the HTTP command API for a as a handler, for mounting
// into an existing server.
func NewHandler(a *App, basePath string, withMetrics bool) http.Handler {
	return iapi.NewRouter(a, basePath, withMetrics).Handler()
}

// NewHTTPServer builds the HTTP command API for a. withMetrics also serves
// GET /metrics.
func NewHTTPServer(addr, basePath string, a *App, withMetrics bool) *http.Server {
	return iapi.NewServer(addr, basePath, a, withMetrics)
}

// RegisterMetrics registers the collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers the collectors with the default registry.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// LoadConfig reads the configuration file at path (optional) and the environment.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config { return config.Default() }
