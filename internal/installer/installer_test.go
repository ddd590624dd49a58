package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	results map[string]Result // keyed by first arg
	err     error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return Result{ExitCode: -1}, f.err
	}
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	return f.results[key], nil
}

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		name += ".cmd"
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return p
}

func newChecker(cfg Config, r Runner) *Checker {
	c := New(cfg, r, nil)
	c.lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }
	return c
}

func TestIsInstalled_Absent(t *testing.T) {
	c := newChecker(Config{Executable: "openclaw-absent-for-test", Runtime: "npm-absent-for-test"}, &fakeRunner{})
	assert.False(t, c.IsInstalled())
	_, err := c.Resolve()
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestIsInstalled_OnPath(t *testing.T) {
	c := New(Config{Executable: "openclaw"}, &fakeRunner{}, nil)
	c.lookPath = func(name string) (string, error) { return "/opt/bin/" + name, nil }
	p, err := c.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/opt/bin/openclaw"), filepath.Clean(p))
	assert.True(t, c.IsInstalled())
}

func TestIsInstalled_ExtraDir(t *testing.T) {
	dir := t.TempDir()
	want := writeExecutable(t, dir, "openclaw-extra-for-test")
	c := newChecker(Config{Executable: "openclaw-extra-for-test", Runtime: "npm-absent-for-test", ExtraDirs: []string{dir}}, &fakeRunner{})
	got, err := c.Resolve()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIsInstalled_NpmGlobalPrefix(t *testing.T) {
	prefix := t.TempDir()
	bin := prefix
	if runtime.GOOS != "windows" {
		bin = filepath.Join(prefix, "bin")
		require.NoError(t, os.MkdirAll(bin, 0o755))
	}
	want := writeExecutable(t, bin, "openclaw-global-for-test")
	npmDir := t.TempDir()
	npm := writeExecutable(t, npmDir, "npm-for-test")

	r := &fakeRunner{results: map[string]Result{"prefix": {Stdout: prefix + "\n"}}}
	c := newChecker(Config{Executable: "openclaw-global-for-test", Runtime: npm}, r)
	got, err := c.Resolve()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the prefix is asked once
	_, _ = c.Resolve()
	prefixCalls := 0
	for _, cl := range r.calls {
		if len(cl.args) > 0 && cl.args[0] == "prefix" {
			prefixCalls++
		}
	}
	assert.Equal(t, 1, prefixCalls)
}

func TestIsInstalled_NonExecutableIgnored(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no exec bit on windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openclaw-noexec-for-test"), []byte("x"), 0o644))
	c := newChecker(Config{Executable: "openclaw-noexec-for-test", Runtime: "npm-absent-for-test", ExtraDirs: []string{dir}}, &fakeRunner{})
	assert.False(t, c.IsInstalled())
}

func TestVersion(t *testing.T) {
	dir := t.TempDir()
	exe := writeExecutable(t, dir, "openclaw")
	r := &fakeRunner{results: map[string]Result{"--version": {Stdout: "  2026.3.1\n"}}}
	c := newChecker(Config{Executable: exe}, r)

	v, ok := c.Version(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "2026.3.1", v)

	r.results["--version"] = Result{Stdout: "\n"}
	_, ok = c.Version(context.Background())
	assert.False(t, ok, "empty output means no version")

	r.results["--version"] = Result{ExitCode: 1, Stdout: "1.0"}
	_, ok = c.Version(context.Background())
	assert.False(t, ok)
}

func TestVersion_NotInstalled(t *testing.T) {
	c := newChecker(Config{Executable: "openclaw-absent-for-test", Runtime: "npm-absent-for-test"}, &fakeRunner{})
	_, ok := c.Version(context.Background())
	assert.False(t, ok)
}

func TestInstall_RuntimeNotFound(t *testing.T) {
	c := newChecker(Config{Runtime: "npm-absent-for-test"}, &fakeRunner{})
	assert.ErrorIs(t, c.Install(context.Background()), ErrRuntimeNotFound)
}

func TestInstall_CommandFailed(t *testing.T) {
	npm := writeExecutable(t, t.TempDir(), "npm")
	r := &fakeRunner{results: map[string]Result{"install": {ExitCode: 243, Stderr: "npm ERR! code EACCES\n"}}}
	c := newChecker(Config{Runtime: npm}, r)

	err := c.Install(context.Background())
	var failed *InstallCommandFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 243, failed.ExitCode)
	assert.Equal(t, "npm ERR! code EACCES", failed.Stderr)
	assert.True(t, strings.Contains(err.Error(), "243"))
}

func TestInstall_Success(t *testing.T) {
	npm := writeExecutable(t, t.TempDir(), "npm")
	r := &fakeRunner{results: map[string]Result{"install": {Stdout: "added 1 package"}}}
	c := newChecker(Config{Runtime: npm, Package: "openclaw"}, r)

	require.NoError(t, c.Install(context.Background()))
	require.Len(t, r.calls, 1)
	assert.Equal(t, npm, r.calls[0].name)
	assert.Equal(t, []string{"install", "-g", "openclaw"}, r.calls[0].args)
}

func TestInstall_RunnerError(t *testing.T) {
	npm := writeExecutable(t, t.TempDir(), "npm")
	c := newChecker(Config{Runtime: npm}, &fakeRunner{err: errors.New("exec format error")})
	err := c.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec format error")
}
