//go:build windows

package process

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

const stillActive = 259

type osController struct{}

// commandFor runs npm shims (.cmd/.bat) through cmd.exe.
func commandFor(path string, args []string) *exec.Cmd {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".cmd" || ext == ".bat" {
		// #nosec G204 -- path is the resolved gateway executable
		return exec.Command("cmd", append([]string{"/c", path}, args...)...)
	}
	// #nosec G204
	return exec.Command(path, args...)
}

// Spawn starts the child without a console window in its own process group.
func (osController) Spawn(spec Spec) (*Handle, error) {
	return spawn(spec, func(cmd *exec.Cmd) {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			HideWindow:    true,
			CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
		}
	})
}

// TerminateGracefully asks the process tree to close without /F.
func (osController) TerminateGracefully(h *Handle) error {
	return taskkill(h.PID, false)
}

func (c osController) TerminateForcefully(h *Handle) error {
	if err := taskkill(h.PID, true); err == nil || !c.IsAlive(h) {
		return nil
	}
	p, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(h.PID))
	if err != nil {
		// Already gone.
		return nil
	}
	defer func() { _ = windows.CloseHandle(p) }()
	return windows.TerminateProcess(p, 1)
}

func (osController) IsAlive(h *Handle) bool {
	if h == nil || h.PID <= 0 || h.HasExited() {
		return false
	}
	p, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(h.PID))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(p) }()
	var code uint32
	if err := windows.GetExitCodeProcess(p, &code); err != nil || code != stillActive {
		return false
	}
	return !reused(h)
}

func taskkill(pid int, force bool) error {
	args := []string{"/PID", strconv.Itoa(pid), "/T"}
	if force {
		args = append(args, "/F")
	}
	cmd := exec.Command("taskkill", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
	return cmd.Run()
}
