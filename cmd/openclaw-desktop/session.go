package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	desktop "github.com/ai-dev-2024/openclaw-desktop"
	"github.com/ai-dev-2024/openclaw-desktop/pkg/client"
)

// session is the configuration, logger and backend of one CLI invocation.
type session struct {
	cfg     *desktop.Config
	log     *slog.Logger
	backend backend
	app     *desktop.App // nil when talking to a remote serve

	closers []io.Closer
}

// opener builds a session. quiet keeps the logger off stderr, for the TUI.
type opener func(g *GlobalFlags, quiet bool) (*session, error)

// openSession loads the configuration and connects to a running serve when
// --api-url is set, otherwise wires an in-process App.
func openSession(g *GlobalFlags, quiet bool) (*session, error) {
	cfg, err := desktop.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}

	var stderr io.Writer = os.Stderr
	if quiet {
		stderr = io.Discard
	}
	log, logCloser := cfg.Log.Logger().NewSlogger(stderr)
	slog.SetDefault(log)
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	if g.APIUrl != "" {
		s.backend = client.New(client.Config{
			BaseURL: g.APIUrl,
			Timeout: g.APITimeout,
			Logger:  log,
		})
		return s, nil
	}

	app, err := desktop.New(cfg, desktop.WithLogger(log))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.app = app
	s.backend = localBackend{app: app}
	// the app closes before the log file
	s.closers = append([]io.Closer{app}, s.closers...)
	return s, nil
}

// Close releases the session. A gateway started by it keeps running.
func (s *session) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
