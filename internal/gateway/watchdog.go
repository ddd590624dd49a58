package gateway

import (
	"fmt"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/metrics"
	"github.com/ai-dev-2024/openclaw-desktop/internal/process"
)

// watch waits for a tracked handle to exit. Adopted handles have no exit
// channel and are left to the status probe.
func (s *Supervisor) watch(h *process.Handle) {
	done := h.Exited()
	if done == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			return
		case <-done:
		}
		s.exited(h)
	}()
}

// exited handles an exit nobody asked for.
func (s *Supervisor) exited(h *process.Handle) {
	s.mu.Lock()
	if s.handle.Load() != h || s.stopRequested {
		s.mu.Unlock()
		return
	}
	s.clearHandle(h)
	detail := "exited"
	if err := h.ExitErr(); err != nil {
		detail = err.Error()
	}
	s.log.Warn("gateway exited unexpectedly", "pid", h.PID, "run_id", h.RunID, "reason", detail)
	s.record(s.ctx, history.EventExit, h.PID, h.RunID, detail, nil)
	delay, ok := s.nextRestart(time.Now())
	s.mu.Unlock()

	s.notify("OpenClaw gateway stopped", fmt.Sprintf("The gateway (pid %d) exited: %s", h.PID, detail))
	if !s.opts.AutoRestart {
		return
	}
	if !ok {
		s.log.Error("gateway restart limit reached", "max_restarts", s.opts.MaxRestarts, "window", s.opts.RestartWindow)
		s.notify("OpenClaw gateway", "The gateway keeps crashing; automatic restart is paused.")
		return
	}

	s.log.Info("restarting gateway", "delay", delay)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return
	case <-t.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a stop or start may have happened while we waited
	if s.stopRequested || s.handle.Load() != nil {
		return
	}
	if err := s.startLocked(s.ctx); err != nil {
		s.notify("OpenClaw gateway", "Automatic restart failed: "+err.Error())
		return
	}
	metrics.IncRestart("watchdog")
	if nh := s.handle.Load(); nh != nil {
		s.record(s.ctx, history.EventRestart, nh.PID, nh.RunID, "watchdog", nil)
	}
}

// nextRestart records a crash at now and returns the backoff before the next
// restart, or false once MaxRestarts crashes fall inside RestartWindow.
// Caller holds mu.
func (s *Supervisor) nextRestart(now time.Time) (time.Duration, bool) {
	cutoff := now.Add(-s.opts.RestartWindow)
	kept := s.crashes[:0]
	for _, t := range s.crashes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.crashes = append(kept, now)
	n := len(s.crashes)
	if n > s.opts.MaxRestarts {
		return 0, false
	}
	return backoff(s.opts.RestartBackoff, s.opts.MaxRestartBackoff, n-1), true
}

// backoff is base doubled attempt times, capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}

func (s *Supervisor) notify(title, msg string) {
	if err := s.notifier.Notify(title, msg); err != nil {
		s.log.Debug("desktop notification", "error", err)
	}
}
