//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

type osController struct{}

func commandFor(path string, args []string) *exec.Cmd {
	// #nosec G204 -- path is the resolved gateway executable
	return exec.Command(path, args...)
}

// Spawn starts the child in a new session so it survives the desktop process
// and can be signalled as a group.
func (osController) Spawn(spec Spec) (*Handle, error) {
	return spawn(spec, func(cmd *exec.Cmd) {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	})
}

func (osController) TerminateGracefully(h *Handle) error {
	return signalGroup(h.PID, unix.SIGTERM)
}

func (osController) TerminateForcefully(h *Handle) error {
	return signalGroup(h.PID, unix.SIGKILL)
}

func (osController) IsAlive(h *Handle) bool {
	if h == nil || h.PID <= 0 || h.HasExited() {
		return false
	}
	if err := unix.Kill(h.PID, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}
	// A child that exited but is not yet reaped still answers signal 0.
	if runtime.GOOS == "linux" && isZombieLinux(h.PID) {
		return false
	}
	return !reused(h)
}

// signalGroup signals the process group led by pid, falling back to the
// single process when it is not a group leader. A vanished process is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
