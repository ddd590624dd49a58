package gateway

import (
	"fmt"
	"strings"
)

// SpawnError means the gateway executable could not be launched.
type SpawnError struct {
	Reason error
}

func (e *SpawnError) Error() string { return "failed to start gateway: " + e.Reason.Error() }
func (e *SpawnError) Unwrap() error { return e.Reason }

// KillFailedError means the gateway did not exit when asked to stop.
// PID is 0 when the gateway was not started by this supervisor.
type KillFailedError struct {
	PID    int
	Output string
	Err    error
}

func (e *KillFailedError) Error() string {
	var b strings.Builder
	if e.PID > 0 {
		fmt.Fprintf(&b, "failed to stop gateway (pid %d)", e.PID)
	} else {
		b.WriteString("failed to stop gateway")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if e.Output != "" {
		b.WriteString(": " + e.Output)
	}
	return b.String()
}

func (e *KillFailedError) Unwrap() error { return e.Err }

// Restart stages.
const (
	StageStop  = "stop"
	StageStart = "start"
)

// RestartError reports which half of a restart failed.
type RestartError struct {
	Stage string
	Cause error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("restart failed during %s: %v", e.Stage, e.Cause)
}

func (e *RestartError) Unwrap() error { return e.Cause }
