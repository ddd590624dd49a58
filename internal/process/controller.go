package process

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Controller is the platform capability set used to run the gateway.
// Implementations must be safe for concurrent use.
type Controller interface {
	// Spawn launches spec detached from the caller and returns its handle.
	// It does not wait for the process to become ready.
	Spawn(spec Spec) (*Handle, error)
	// TerminateGracefully asks the process (and its group) to exit.
	TerminateGracefully(h *Handle) error
	// TerminateForcefully kills the process (and its group).
	TerminateForcefully(h *Handle) error
	// IsAlive reports whether h still refers to a live process.
	IsAlive(h *Handle) bool
}

// NewController returns the Controller for the current OS.
func NewController() Controller { return osController{} }

// spawn starts spec with platform attributes applied by configure, reaps the
// child in the background, and records the PID file.
func spawn(spec Spec, configure func(*exec.Cmd)) (*Handle, error) {
	cmd, err := spec.buildCommand()
	if err != nil {
		return nil, err
	}
	stdout, err := openOutput(spec.StdoutPath)
	if err != nil {
		return nil, fmt.Errorf("open stdout log: %w", err)
	}
	defer func() { _ = stdout.Close() }()
	stderr, err := openOutput(spec.StderrPath)
	if err != nil {
		return nil, fmt.Errorf("open stderr log: %w", err)
	}
	defer func() { _ = stderr.Close() }()

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configure(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	pid := cmd.Process.Pid
	h, exited := NewTrackedHandle(pid, uuid.NewString())
	h.StartUnix = getProcStartUnix(pid)
	go func() { exited(cmd.Wait()) }()

	if spec.PIDFile != "" {
		if err := WritePIDFile(spec.PIDFile, h); err != nil {
			slog.Warn("write pid file", "path", spec.PIDFile, "pid", pid, "error", err)
		}
	}
	return h, nil
}

// reused reports whether h.PID now belongs to a different process than the
// one recorded in h. Unknown start times never count as reuse.
func reused(h *Handle) bool {
	if h.StartUnix <= 0 {
		return false
	}
	cur := getProcStartUnix(h.PID)
	if cur <= 0 {
		return false
	}
	d := cur - h.StartUnix
	return d > 1 || d < -1
}

// WaitExit waits up to d for h to exit and reports whether it did.
func WaitExit(c Controller, h *Handle, d time.Duration) bool {
	if done := h.Exited(); done != nil {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-done:
			return true
		case <-t.C:
			return !c.IsAlive(h)
		}
	}
	deadline := time.Now().Add(d)
	for {
		if !c.IsAlive(h) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
