package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoExecutable is returned by Spawn when Spec.Path is empty.
var ErrNoExecutable = errors.New("no executable configured")

// Spec describes one detached child process.
type Spec struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`                  // resolved executable
	Args       []string `json:"args"`                  // arguments after the executable
	WorkDir    string   `json:"work_dir,omitempty"`    // optional working dir
	Env        []string `json:"env,omitempty"`         // full environment; empty inherits
	StdoutPath string   `json:"stdout_path,omitempty"` // truncated on spawn
	StderrPath string   `json:"stderr_path,omitempty"` // truncated on spawn
	PIDFile    string   `json:"pid_file,omitempty"`
}

// buildCommand prepares the exec.Cmd for s without starting it.
func (s Spec) buildCommand() (*exec.Cmd, error) {
	if s.Path == "" {
		return nil, ErrNoExecutable
	}
	cmd := commandFor(s.Path, s.Args)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}
	return cmd, nil
}

// openOutput opens path for the child's stdout or stderr. An empty path
// discards the stream. O_APPEND keeps the child writing at end of file after
// the log is truncated underneath it.
func openOutput(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o640)
}
