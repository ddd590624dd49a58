package process

import (
	"errors"
	"fmt"
	"time"
)

// ErrStillAlive means the process survived forced termination.
var ErrStillAlive = errors.New("process still alive after forced termination")

// Stop asks h to exit gracefully, waits up to wait, then escalates to a forced
// kill and waits up to grace. forced reports whether escalation happened.
func Stop(c Controller, h *Handle, wait, grace time.Duration) (forced bool, err error) {
	if h == nil || !c.IsAlive(h) {
		return false, nil
	}
	gerr := c.TerminateGracefully(h)
	if gerr == nil && WaitExit(c, h, wait) {
		return false, nil
	}

	ferr := c.TerminateForcefully(h)
	if WaitExit(c, h, grace) {
		return true, nil
	}
	return true, fmt.Errorf("pid %d: %w", h.PID, errors.Join(ErrStillAlive, gerr, ferr))
}
