package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
)

func TestStart_SpawnsDetachedGateway(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	require.Equal(t, 1, f.ctrl.spawnCount())
	spec := f.ctrl.spawned[0]
	assert.Equal(t, "/usr/local/bin/openclaw", spec.Path)
	assert.Equal(t, []string{"gateway", "--port", "18789", "--verbose"}, spec.Args)
	assert.Equal(t, "gateway.log", spec.StdoutPath)
	assert.NotZero(t, f.sup.PID())
	assert.Equal(t, StateStarting, f.sup.State())

	st := f.sup.Status(ctx)
	assert.True(t, st.Running)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, "http://127.0.0.1:18789/", st.DashboardURL)
	assert.Equal(t, StateRunning, f.sup.State())
	assert.Contains(t, f.sink.types(), history.EventStart)
}

func TestStart_WhileRunningIsNoop(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	pid := f.sup.PID()
	require.NoError(t, f.sup.Start(ctx))
	assert.Equal(t, 1, f.ctrl.spawnCount())
	assert.Equal(t, pid, f.sup.PID())
	assert.Equal(t, 1, f.ctrl.alive())
}

func TestStart_ExternalGatewayIsNoop(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.prober.setExternal(true)

	require.NoError(t, f.sup.Start(context.Background()))
	assert.Zero(t, f.ctrl.spawnCount())
	assert.Equal(t, StateRunning, f.sup.State())
}

func TestStart_NotInstalled(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.sup.resolver = fakeResolver{err: installer.ErrNotInstalled}

	err := f.sup.Start(context.Background())
	var se *SpawnError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, installer.ErrNotInstalled)
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Contains(t, f.sink.types(), history.EventStartFailed)
}

func TestStart_SpawnFailureStaysStopped(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.ctrl.setSpawnErr(errors.New("exec format error"))

	err := f.sup.Start(context.Background())
	var se *SpawnError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "exec format error")
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Zero(t, f.sup.PID())
}

func TestStart_ArchivesPreviousLogs(t *testing.T) {
	var archived []string
	f := newFixture(func(o *Options) {
		o.ErrorLogPath = "gateway_error.log"
		o.Archive = func(paths ...string) error {
			archived = append(archived, paths...)
			return nil
		}
	})
	defer f.sup.Close()

	require.NoError(t, f.sup.Start(context.Background()))
	assert.Equal(t, []string{"gateway.log", "gateway_error.log"}, archived)
}

func TestStop_WhenStoppedIsNoop(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	require.NoError(t, f.sup.Stop(context.Background()))
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Empty(t, f.runner.calls)
}

func TestStop_Graceful(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	require.NoError(t, f.sup.Stop(ctx))
	assert.Zero(t, f.ctrl.alive())
	assert.Zero(t, f.sup.PID())
	assert.Equal(t, StateStopped, f.sup.State())
	assert.False(t, f.sup.Status(ctx).Running)
	assert.Zero(t, f.notifier.count(), "a requested stop is not a crash")
}

func TestStop_EscalatesToForce(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.ctrl.ignoreTerm = true
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	require.NoError(t, f.sup.Stop(ctx))
	assert.Zero(t, f.ctrl.alive())
}

func TestStop_KillFailedClearsHandle(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.ctrl.ignoreTerm = true
	f.ctrl.unkillable = true
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	pid := f.sup.PID()
	err := f.sup.Stop(ctx)
	var kf *KillFailedError
	require.ErrorAs(t, err, &kf)
	assert.Equal(t, pid, kf.PID)
	assert.Zero(t, f.sup.PID())
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Contains(t, f.sink.types(), history.EventStopFailed)
}

func TestStop_ExternalGatewayUsesDaemonStop(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.prober.setExternal(true)

	require.NoError(t, f.sup.Stop(context.Background()))
	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, []string{"/usr/local/bin/openclaw", "daemon", "stop"}, f.runner.calls[0])
	assert.Equal(t, StateStopped, f.sup.State())
}

func TestStop_ExternalGatewayReleasedPortTimesOut(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.prober.setExternal(true)
	f.prober.mu.Lock()
	f.prober.slowDown = true
	f.prober.mu.Unlock()

	start := time.Now()
	require.NoError(t, f.sup.Stop(context.Background()))
	assert.Less(t, time.Since(start), f.sup.opts.StopTimeout)
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Contains(t, f.sink.types(), history.EventStop)
}

func TestStop_ExternalGatewayFailureReportsStderr(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.prober.setExternal(true)
	f.runner.result = installer.Result{ExitCode: 1, Stderr: "no daemon installed\n"}

	err := f.sup.Stop(context.Background())
	var kf *KillFailedError
	require.ErrorAs(t, err, &kf)
	assert.Zero(t, kf.PID)
	assert.Equal(t, "no daemon installed", kf.Output)
	assert.Equal(t, StateRunning, f.sup.State())
}

func TestRestart_NewPID(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	first := f.sup.PID()
	require.NoError(t, f.sup.Restart(ctx))
	assert.NotEqual(t, first, f.sup.PID())
	assert.Equal(t, 1, f.ctrl.alive())
	assert.Contains(t, f.sink.types(), history.EventRestart)
}

func TestRestart_StartFailureLeavesStopped(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	f.ctrl.setSpawnErr(errors.New("boom"))

	err := f.sup.Restart(ctx)
	var re *RestartError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StageStart, re.Stage)
	var se *SpawnError
	assert.ErrorAs(t, err, &se)
	assert.Zero(t, f.sup.PID())
	assert.Zero(t, f.ctrl.alive())
	assert.Equal(t, StateStopped, f.sup.State())
}

func TestRestart_StopFailureSkipsStart(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	f.ctrl.ignoreTerm = true
	f.ctrl.unkillable = true

	err := f.sup.Restart(ctx)
	var re *RestartError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StageStop, re.Stage)
	assert.Equal(t, 1, f.ctrl.spawnCount())
	assert.Zero(t, f.sup.PID())
}

func TestAutoStart(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	ctx := context.Background()

	started, err := f.sup.AutoStart(ctx)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = f.sup.AutoStart(ctx)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 1, f.ctrl.spawnCount())
}

func TestStatus_UnknownProbe(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	f.prober.unknown = true

	st := f.sup.Status(context.Background())
	assert.False(t, st.Running)
	assert.Equal(t, "unknown", st.State)
	assert.Equal(t, 18789, st.Port)
}

func TestUnexpectedExit_NotifiesWithoutRestart(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	require.NoError(t, f.sup.Start(context.Background()))

	f.ctrl.kill(f.sup.PID(), errors.New("exit status 1"))
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, StateStopped, f.sup.State())
	assert.Zero(t, f.sup.PID())
	assert.Contains(t, f.sink.types(), history.EventExit)
	assert.Equal(t, 1, f.ctrl.spawnCount())
}

func TestUnexpectedExit_SlowNotifierDoesNotBlockStart(t *testing.T) {
	f := newFixture(nil)
	defer f.sup.Close()
	hold := make(chan struct{})
	defer close(hold)
	f.notifier.mu.Lock()
	f.notifier.hold = hold
	f.notifier.mu.Unlock()
	require.NoError(t, f.sup.Start(context.Background()))

	f.ctrl.kill(f.sup.PID(), errors.New("exit status 1"))
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- f.sup.Start(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("start blocked behind the exit notification")
	}
	assert.Equal(t, 2, f.ctrl.spawnCount())
}

func TestUnexpectedExit_WatchdogRestarts(t *testing.T) {
	f := newFixture(func(o *Options) {
		o.AutoRestart = true
		o.RestartBackoff = 10 * time.Millisecond
		o.MaxRestartBackoff = 20 * time.Millisecond
	})
	defer f.sup.Close()
	require.NoError(t, f.sup.Start(context.Background()))
	first := f.sup.PID()

	f.ctrl.kill(first, errors.New("exit status 1"))
	require.Eventually(t, func() bool {
		pid := f.sup.PID()
		return pid != 0 && pid != first
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.ctrl.spawnCount())
}

func TestUnexpectedExit_WatchdogGivesUp(t *testing.T) {
	f := newFixture(func(o *Options) {
		o.AutoRestart = true
		o.MaxRestarts = 1
		o.RestartBackoff = time.Millisecond
		o.MaxRestartBackoff = time.Millisecond
	})
	defer f.sup.Close()
	require.NoError(t, f.sup.Start(context.Background()))

	f.ctrl.kill(f.sup.PID(), nil)
	require.Eventually(t, func() bool { return f.ctrl.spawnCount() == 2 && f.sup.PID() != 0 }, 2*time.Second, 5*time.Millisecond)

	f.ctrl.kill(f.sup.PID(), nil)
	// one notification per exit plus the pause notice
	require.Eventually(t, func() bool { return f.notifier.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, f.ctrl.spawnCount())
	assert.Zero(t, f.sup.PID())
}

func TestStopDuringBackoffCancelsRestart(t *testing.T) {
	f := newFixture(func(o *Options) {
		o.AutoRestart = true
		o.RestartBackoff = 100 * time.Millisecond
		o.MaxRestartBackoff = 100 * time.Millisecond
	})
	defer f.sup.Close()
	ctx := context.Background()
	require.NoError(t, f.sup.Start(ctx))

	f.ctrl.kill(f.sup.PID(), nil)
	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.sup.Stop(ctx))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, f.ctrl.spawnCount())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 30*time.Second, 0))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 30*time.Second, 2))
	assert.Equal(t, 30*time.Second, backoff(time.Second, 30*time.Second, 10))
}

func TestNextRestart_Window(t *testing.T) {
	f := newFixture(func(o *Options) {
		o.MaxRestarts = 2
		o.RestartWindow = time.Minute
	})
	defer f.sup.Close()
	now := time.Now()

	d, ok := f.sup.nextRestart(now)
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
	d, ok = f.sup.nextRestart(now.Add(time.Second))
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
	_, ok = f.sup.nextRestart(now.Add(2 * time.Second))
	assert.False(t, ok)

	// old crashes fall out of the window
	d, ok = f.sup.nextRestart(now.Add(5 * time.Minute))
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

// For any sequence of operations the supervisor holds a handle exactly when
// the last operation was a successful start, and never runs two gateways.
func TestSupervisor_HandleInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(nil)
		defer f.sup.Close()
		ctx := context.Background()

		n := rapid.IntRange(1, 25).Draw(rt, "n")
		for i := 0; i < n; i++ {
			f.ctrl.setSpawnErr(nil)
			if rapid.Bool().Draw(rt, "spawnFails") {
				f.ctrl.setSpawnErr(errors.New("spawn failed"))
			}
			var (
				err       error
				wantAlive bool
			)
			switch op := rapid.SampledFrom([]string{"start", "stop", "restart"}).Draw(rt, "op"); op {
			case "start":
				wasRunning := f.sup.PID() != 0
				err = f.sup.Start(ctx)
				wantAlive = err == nil
				if wasRunning && err != nil {
					rt.Fatalf("start on a running gateway failed: %v", err)
				}
			case "stop":
				err = f.sup.Stop(ctx)
				if err != nil {
					rt.Fatalf("stop failed: %v", err)
				}
			case "restart":
				err = f.sup.Restart(ctx)
				wantAlive = err == nil
			}

			if got := f.sup.PID() != 0; got != wantAlive {
				rt.Fatalf("step %d: handle present=%v, want %v (err=%v)", i, got, wantAlive, err)
			}
			if f.ctrl.alive() > 1 {
				rt.Fatalf("step %d: %d gateways alive", i, f.ctrl.alive())
			}
			if !wantAlive && f.sup.State() != StateStopped {
				rt.Fatalf("step %d: state %s without a handle", i, f.sup.State())
			}
		}
	})
}
