package process

import (
	"sync"
	"time"
)

// Handle identifies one running OS process.
//
// Handles returned by Spawn are tracked: the spawning process reaps the child
// and Exited is closed when it does. Handles recovered from a PID file are
// adopted: Exited returns nil and liveness must be probed.
type Handle struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	RunID     string    `json:"run_id"`
	StartUnix int64     `json:"start_unix"` // OS-reported start time; 0 when unknown

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

// NewHandle returns an adopted handle for pid.
func NewHandle(pid int, startedAt time.Time) *Handle {
	return &Handle{PID: pid, StartedAt: startedAt}
}

// NewTrackedHandle returns a tracked handle and the function that marks it exited.
// Controllers other than the OS one use it to report exits.
func NewTrackedHandle(pid int, runID string) (*Handle, func(error)) {
	h := &Handle{PID: pid, StartedAt: time.Now(), RunID: runID, done: make(chan struct{})}
	return h, h.markExited
}

// Exited is closed when a tracked process has been reaped. Nil for adopted handles.
func (h *Handle) Exited() <-chan struct{} {
	if h == nil || h.done == nil {
		return nil
	}
	return h.done
}

// Tracked reports whether this process reaps the child itself.
func (h *Handle) Tracked() bool { return h != nil && h.done != nil }

// HasExited reports whether a tracked process has been reaped.
func (h *Handle) HasExited() bool {
	if !h.Tracked() {
		return false
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the wait error of a reaped tracked process.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

func (h *Handle) markExited(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.exitErr = err
	close(h.done)
}
