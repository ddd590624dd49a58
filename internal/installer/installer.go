package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotInstalled means the openclaw executable could not be resolved.
	ErrNotInstalled = errors.New("OpenClaw is not installed")
	// ErrRuntimeNotFound means the package manager used to install OpenClaw is missing.
	ErrRuntimeNotFound = errors.New("npm not found: install Node.js first")
)

// InstallCommandFailedError reports a non-zero exit of the package manager.
type InstallCommandFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *InstallCommandFailedError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("install command exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("install command exited with code %d: %s", e.ExitCode, e.Stderr)
}

const versionTimeout = 10 * time.Second

// Config selects the tool and how it is installed.
type Config struct {
	Executable string   // name or absolute path, "openclaw"
	Runtime    string   // package manager, "npm"
	Package    string   // package to install globally, "openclaw"
	ExtraDirs  []string // searched after PATH
}

// Checker resolves, versions and installs the OpenClaw CLI.
// It is safe for concurrent use.
type Checker struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	log      *slog.Logger

	mu        sync.Mutex
	npmPrefix string
}

// New returns a Checker. A nil runner uses ExecRunner.
func New(cfg Config, runner Runner, log *slog.Logger) *Checker {
	if cfg.Executable == "" {
		cfg.Executable = "openclaw"
	}
	if cfg.Runtime == "" {
		cfg.Runtime = "npm"
	}
	if cfg.Package == "" {
		cfg.Package = "openclaw"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Checker{cfg: cfg, runner: runner, lookPath: exec.LookPath, log: log}
}

// IsInstalled reports whether the executable resolves. Resolution errors mean false.
func (c *Checker) IsInstalled() bool {
	_, err := c.Resolve()
	return err == nil
}

// Resolve returns the absolute path of the executable, searching PATH first
// and then the known global install directories.
func (c *Checker) Resolve() (string, error) {
	return c.find(c.cfg.Executable, true)
}

// Version runs "<exe> --version". ok is false when the tool is missing,
// fails, or prints nothing.
func (c *Checker) Version(ctx context.Context) (string, bool) {
	exe, err := c.Resolve()
	if err != nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	res, err := c.runner.Run(ctx, exe, "--version")
	if err != nil || res.ExitCode != 0 {
		c.log.Debug("openclaw --version failed", "error", err, "exit_code", res.ExitCode)
		return "", false
	}
	v := strings.TrimSpace(res.Stdout)
	return v, v != ""
}

// Install runs "<runtime> install -g <package>" and blocks until it exits.
func (c *Checker) Install(ctx context.Context) error {
	rt, err := c.find(c.cfg.Runtime, false)
	if err != nil {
		return ErrRuntimeNotFound
	}
	c.log.Info("installing openclaw", "runtime", rt, "package", c.cfg.Package)
	start := time.Now()
	res, err := c.runner.Run(ctx, rt, "install", "-g", c.cfg.Package)
	if err != nil {
		return fmt.Errorf("run %s: %w", filepath.Base(rt), err)
	}
	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(res.Stderr)
		if stderr == "" {
			stderr = strings.TrimSpace(res.Stdout)
		}
		c.log.Error("openclaw install failed", "exit_code", res.ExitCode, "stderr", stderr)
		return &InstallCommandFailedError{ExitCode: res.ExitCode, Stderr: stderr}
	}
	c.mu.Lock()
	c.npmPrefix = ""
	c.mu.Unlock()
	c.log.Info("openclaw installed", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// find resolves name through PATH and, when searchGlobal is set, the npm
// global bin directory and well-known install locations.
func (c *Checker) find(name string, searchGlobal bool) (string, error) {
	if filepath.IsAbs(name) {
		if isExecutableFile(name) {
			return name, nil
		}
		return "", ErrNotInstalled
	}
	if p, err := c.lookPath(name); err == nil {
		if abs, err := filepath.Abs(p); err == nil {
			return abs, nil
		}
		return p, nil
	}
	var dirs []string
	if searchGlobal {
		dirs = append(dirs, c.cfg.ExtraDirs...)
		dirs = append(dirs, c.globalBin()...)
	}
	dirs = append(dirs, knownDirs()...)
	for _, dir := range dirs {
		for _, candidate := range candidates(name) {
			p := filepath.Join(dir, candidate)
			if isExecutableFile(p) {
				return p, nil
			}
		}
	}
	return "", ErrNotInstalled
}

// globalBin returns the npm global bin directory, asking npm once.
func (c *Checker) globalBin() []string {
	c.mu.Lock()
	prefix := c.npmPrefix
	c.mu.Unlock()
	if prefix == "" {
		npm, err := c.find(c.cfg.Runtime, false)
		if err != nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
		defer cancel()
		res, err := c.runner.Run(ctx, npm, "prefix", "-g")
		if err != nil || res.ExitCode != 0 {
			return nil
		}
		prefix = strings.TrimSpace(res.Stdout)
		if prefix == "" {
			return nil
		}
		c.mu.Lock()
		c.npmPrefix = prefix
		c.mu.Unlock()
	}
	if runtime.GOOS == "windows" {
		return []string{prefix}
	}
	return []string{filepath.Join(prefix, "bin")}
}

func knownDirs() []string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		var dirs []string
		if appData := os.Getenv("APPDATA"); appData != "" {
			dirs = append(dirs, filepath.Join(appData, "npm"))
		}
		if pf := os.Getenv("ProgramFiles"); pf != "" {
			dirs = append(dirs, filepath.Join(pf, "nodejs"))
		}
		return dirs
	}
	dirs := []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin"}
	if home != "" {
		dirs = append([]string{
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, ".volta", "bin"),
		}, dirs...)
	}
	return dirs
}

func candidates(name string) []string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return []string{name + ".cmd", name + ".exe", name}
	}
	return []string{name}
}

func isExecutableFile(p string) bool {
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode()&0o111 != 0
}
