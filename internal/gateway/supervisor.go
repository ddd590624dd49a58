package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/dashboard"
	"github.com/ai-dev-2024/openclaw-desktop/internal/detector"
	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
	"github.com/ai-dev-2024/openclaw-desktop/internal/metrics"
	"github.com/ai-dev-2024/openclaw-desktop/internal/process"
)

// Resolver locates the openclaw executable.
type Resolver interface {
	Resolve() (string, error)
}

// Prober reports whether the gateway port is bound.
type Prober interface {
	Probe(ctx context.Context) (detector.Liveness, error)
}

// Status is the result of one gateway status query.
type Status struct {
	Running      bool   `json:"running"`
	Port         int    `json:"port"`
	DashboardURL string `json:"dashboard_url"`
	State        string `json:"state"` // running, stopped or unknown
}

// Options configures a Supervisor.
type Options struct {
	Port         int
	Host         string
	Args         []string // arguments after the executable, port already substituted
	StopArgs     []string // used for a gateway this supervisor did not spawn
	Env          []string // full environment; empty inherits
	LogPath      string
	ErrorLogPath string
	PIDFile      string

	StopTimeout time.Duration
	KillGrace   time.Duration

	AutoRestart       bool
	MaxRestarts       int
	RestartWindow     time.Duration
	RestartBackoff    time.Duration
	MaxRestartBackoff time.Duration

	// Archive rotates the previous log files away before a spawn. Optional.
	Archive func(paths ...string) error
}

// Deps are the collaborators of a Supervisor. Controller, Resolver and
// Prober are required.
type Deps struct {
	Controller process.Controller
	Resolver   Resolver
	Prober     Prober
	Runner     installer.Runner
	History    history.Sink
	Notifier   Notifier
	Logger     *slog.Logger
}

// Supervisor owns the gateway process. Start, Stop, Restart and the
// watchdog serialize on mu; Status and State never take it.
type Supervisor struct {
	opts     Options
	ctrl     process.Controller
	resolver Resolver
	prober   Prober
	runner   installer.Runner
	sink     history.Sink
	notifier Notifier
	log      *slog.Logger

	mu            sync.Mutex
	handle        atomic.Pointer[process.Handle] // written under mu
	state         atomic.Int32
	stopRequested bool
	crashes       []time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Supervisor in the Stopped state. Call Recover to pick up a
// gateway that is already running.
func New(opts Options, deps Deps) *Supervisor {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = 2 * time.Second
	}
	if opts.MaxRestarts <= 0 {
		opts.MaxRestarts = 5
	}
	if opts.RestartWindow <= 0 {
		opts.RestartWindow = 5 * time.Minute
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = time.Second
	}
	if opts.MaxRestartBackoff < opts.RestartBackoff {
		opts.MaxRestartBackoff = 30 * time.Second
	}
	if len(opts.StopArgs) == 0 {
		opts.StopArgs = []string{"daemon", "stop"}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	runner := deps.Runner
	if runner == nil {
		runner = installer.ExecRunner{Env: opts.Env}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		opts:     opts,
		ctrl:     deps.Controller,
		resolver: deps.Resolver,
		prober:   deps.Prober,
		runner:   runner,
		sink:     deps.History,
		notifier: notifier,
		log:      log.With("component", "gateway"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close stops the exit watchers. It does not touch the gateway process.
func (s *Supervisor) Close() {
	s.cancel()
	s.wg.Wait()
}

// Port returns the gateway port.
func (s *Supervisor) Port() int { return s.opts.Port }

// DashboardURL returns the untokenized dashboard address.
func (s *Supervisor) DashboardURL() string { return dashboard.BaseURL(s.opts.Host, s.opts.Port) }

// Status probes the port. It is lock-free and safe to call at any rate.
func (s *Supervisor) Status(ctx context.Context) Status {
	l := s.probe(ctx)
	s.reconcile(l)
	metrics.SetUp(l.String())
	return Status{
		Running:      l == detector.Running,
		Port:         s.opts.Port,
		DashboardURL: s.DashboardURL(),
		State:        l.String(),
	}
}

// State returns the lifecycle state. A tracked handle whose process has
// exited reads as Stopped.
func (s *Supervisor) State() State {
	st := State(s.state.Load())
	if st == StateStarting || st == StateRunning {
		if h := s.handle.Load(); h != nil && h.HasExited() {
			return StateStopped
		}
	}
	return st
}

// PID returns the pid of the supervised gateway, or 0.
func (s *Supervisor) PID() int {
	if h := s.handle.Load(); h != nil && !h.HasExited() {
		return h.PID
	}
	return 0
}

// Recover adopts a gateway left running by a previous session. The PID file
// is trusted only while its process is alive with the recorded start time.
func (s *Supervisor) Recover(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probe(ctx) != detector.Running {
		if s.opts.PIDFile != "" {
			_ = process.RemovePIDFile(s.opts.PIDFile)
		}
		return
	}
	s.setState(StateRunning)
	if s.opts.PIDFile == "" {
		return
	}
	h, err := process.ReadPIDFile(s.opts.PIDFile)
	if err != nil {
		s.log.Debug("no pid file to adopt", "path", s.opts.PIDFile, "error", err)
		return
	}
	if !s.ctrl.IsAlive(h) {
		s.log.Info("stale pid file", "pid", h.PID)
		_ = process.RemovePIDFile(s.opts.PIDFile)
		return
	}
	s.handle.Store(h)
	s.log.Info("adopted running gateway", "pid", h.PID, "run_id", h.RunID)
}

// Start launches the gateway unless one is already running. It returns as
// soon as the process is spawned.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Stop terminates the gateway. Stopping a stopped gateway succeeds.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

// Restart stops then starts the gateway under one lock acquisition.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stopLocked(ctx); err != nil {
		s.record(ctx, history.EventRestart, 0, "", "stage=stop", err)
		return &RestartError{Stage: StageStop, Cause: err}
	}
	if err := s.startLocked(ctx); err != nil {
		s.record(ctx, history.EventRestart, 0, "", "stage=start", err)
		return &RestartError{Stage: StageStart, Cause: err}
	}
	metrics.IncRestart("manual")
	h := s.handle.Load()
	var (
		pid   int
		runID string
	)
	if h != nil {
		pid, runID = h.PID, h.RunID
	}
	s.record(ctx, history.EventRestart, pid, runID, "manual", nil)
	return nil
}

// AutoStart starts the gateway unless it is already running and reports
// whether a start was attempted.
func (s *Supervisor) AutoStart(ctx context.Context) (bool, error) {
	if s.Status(ctx).Running {
		return false, nil
	}
	if err := s.Start(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if h := s.handle.Load(); h != nil {
		if s.ctrl.IsAlive(h) {
			s.log.Info("Gateway is already running", "pid", h.PID)
			metrics.IncStart("already_running")
			return nil
		}
		s.clearHandle(h)
	}
	if s.probe(ctx) == detector.Running {
		s.log.Info("Gateway is already running", "port", s.opts.Port)
		s.setState(StateRunning)
		metrics.IncStart("already_running")
		return nil
	}

	exe, err := s.resolver.Resolve()
	if err != nil {
		return s.startFailed(ctx, err)
	}
	if s.opts.Archive != nil {
		if err := s.opts.Archive(s.opts.LogPath, s.opts.ErrorLogPath); err != nil {
			s.log.Warn("archive gateway logs", "error", err)
		}
	}

	s.setState(StateStarting)
	began := time.Now()
	h, err := s.ctrl.Spawn(process.Spec{
		Name:       "gateway",
		Path:       exe,
		Args:       s.opts.Args,
		Env:        s.opts.Env,
		StdoutPath: s.opts.LogPath,
		StderrPath: s.opts.ErrorLogPath,
		PIDFile:    s.opts.PIDFile,
	})
	if err != nil {
		s.setState(StateStopped)
		return s.startFailed(ctx, err)
	}
	metrics.ObserveSpawnDuration(time.Since(began).Seconds())
	metrics.IncStart("success")

	s.handle.Store(h)
	s.stopRequested = false
	s.watch(h)
	s.log.Info("Gateway starting...", "pid", h.PID, "run_id", h.RunID, "port", s.opts.Port, "exe", exe)
	s.record(ctx, history.EventStart, h.PID, h.RunID, exe, nil)
	return nil
}

func (s *Supervisor) startFailed(ctx context.Context, reason error) error {
	err := &SpawnError{Reason: reason}
	s.log.Error("start gateway", "error", err)
	metrics.IncStart("failed")
	s.record(ctx, history.EventStartFailed, 0, "", "", err)
	return err
}

func (s *Supervisor) stopLocked(ctx context.Context) error {
	s.stopRequested = true
	h := s.handle.Load()
	if h != nil && s.ctrl.IsAlive(h) {
		s.setState(StateStopping)
		forced, err := process.Stop(s.ctrl, h, s.opts.StopTimeout, s.opts.KillGrace)
		s.clearHandle(h)
		if err != nil {
			kerr := &KillFailedError{PID: h.PID, Err: err}
			s.log.Error("stop gateway", "pid", h.PID, "error", err)
			metrics.IncStop("failed")
			s.record(ctx, history.EventStopFailed, h.PID, h.RunID, "", kerr)
			return kerr
		}
		mode := "graceful"
		if forced {
			mode = "forced"
		}
		s.log.Info("Gateway stopped", "pid", h.PID, "mode", mode)
		metrics.IncStop(mode)
		s.record(ctx, history.EventStop, h.PID, h.RunID, mode, nil)
		return nil
	}
	if h != nil {
		s.clearHandle(h)
	}

	if s.probe(ctx) != detector.Running {
		s.setState(StateStopped)
		metrics.IncStop("noop")
		return nil
	}
	return s.stopExternal(ctx)
}

// stopExternal asks openclaw itself to stop a gateway this supervisor did
// not spawn, then waits for the port to close.
func (s *Supervisor) stopExternal(ctx context.Context) error {
	fail := func(output string, err error) error {
		kerr := &KillFailedError{Output: output, Err: err}
		s.log.Error("stop external gateway", "error", kerr)
		metrics.IncStop("failed")
		s.record(ctx, history.EventStopFailed, 0, "", "external", kerr)
		return kerr
	}

	exe, err := s.resolver.Resolve()
	if err != nil {
		return fail("", err)
	}
	s.setState(StateStopping)
	res, err := s.runner.Run(ctx, exe, s.opts.StopArgs...)
	if err != nil {
		s.setState(StateRunning)
		return fail("", err)
	}
	if res.ExitCode != 0 {
		s.setState(StateRunning)
		out := strings.TrimSpace(res.Stderr)
		if out == "" {
			out = "openclaw gateway stop failed"
		}
		return fail(out, nil)
	}

	// Unknown counts as released: only a completed connect proves the port is held.
	deadline := time.Now().Add(s.opts.StopTimeout)
	for {
		l := s.probe(ctx)
		if l != detector.Running {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			if l == detector.Running {
				s.setState(StateRunning)
			}
			return fail(strings.TrimSpace(res.Stdout), errors.New("port still bound after stop command"))
		}
		select {
		case <-ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}
	s.setState(StateStopped)
	msg := strings.TrimSpace(res.Stdout)
	if msg == "" {
		msg = "Gateway stop command sent"
	}
	s.log.Info("Gateway stopped", "mode", "external", "output", msg)
	metrics.IncStop("external")
	s.record(ctx, history.EventStop, 0, "", "external", nil)
	return nil
}

// clearHandle forgets h and its PID file. Caller holds mu.
func (s *Supervisor) clearHandle(h *process.Handle) {
	s.handle.CompareAndSwap(h, nil)
	if s.opts.PIDFile != "" {
		if err := process.RemovePIDFile(s.opts.PIDFile); err != nil {
			s.log.Warn("remove pid file", "path", s.opts.PIDFile, "error", err)
		}
	}
	s.setState(StateStopped)
}

func (s *Supervisor) probe(ctx context.Context) detector.Liveness {
	l, err := s.prober.Probe(ctx)
	if err != nil {
		s.log.Debug("gateway probe", "port", s.opts.Port, "liveness", l.String(), "error", err)
	}
	return l
}

// reconcile folds a probe result into the state without taking mu.
func (s *Supervisor) reconcile(l detector.Liveness) {
	switch l {
	case detector.Running:
		if s.casState(StateStarting, StateRunning) {
			return
		}
		s.casState(StateStopped, StateRunning)
	case detector.Stopped:
		if s.handle.Load() == nil {
			s.casState(StateRunning, StateStopped)
		}
	}
}

func (s *Supervisor) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.transitioned(from, to)
	}
}

func (s *Supervisor) casState(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.transitioned(from, to)
	return true
}

func (s *Supervisor) transitioned(from, to State) {
	metrics.RecordStateTransition(from.String(), to.String())
	metrics.SetCurrentState(to.String(), stateNames)
	s.log.Debug("state", "from", from.String(), "to", to.String())
}

func (s *Supervisor) record(ctx context.Context, t history.EventType, pid int, runID, detail string, err error) {
	if s.sink == nil {
		return
	}
	e := history.NewEvent(t)
	e.PID = pid
	e.RunID = runID
	e.Detail = detail
	if err != nil {
		e.Error = err.Error()
	}
	// history must not fail or stall a lifecycle operation
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if serr := s.sink.Send(rctx, e); serr != nil {
		s.log.Warn("record history", "event", string(t), "error", serr)
	}
}

func (s *Supervisor) String() string {
	return fmt.Sprintf("gateway(port=%d state=%s)", s.opts.Port, s.State())
}
