package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	desktop "github.com/ai-dev-2024/openclaw-desktop"
)

// runServe serves the HTTP command API until ctx is cancelled. The gateway
// keeps running after serve exits.
func runServe(ctx context.Context, g *GlobalFlags, f ServeFlags, open opener, w io.Writer) error {
	if g.APIUrl != "" {
		return errors.New("serve runs the supervisor in-process; --api-url is not supported")
	}
	s, err := open(g, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if s.app == nil {
		return errors.New("serve requires an in-process supervisor")
	}

	cfg := s.cfg
	listen := cfg.Server.Listen
	if f.Listen != "" {
		listen = f.Listen
	}
	basePath := cfg.Server.BasePath
	if f.BasePath != "" {
		basePath = f.BasePath
	}
	withMetrics := cfg.Metrics.Enabled || f.Metrics
	if withMetrics {
		if err := desktop.RegisterMetricsDefault(); err != nil {
			s.log.Warn("failed to register metrics", "error", err)
		}
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}
	srv := desktop.NewHTTPServer(listen, basePath, s.app, withMetrics)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.app.WatchStatus(ctx, cfg.UI.StatusInterval)
	}()
	if withMetrics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.app.RunSampler(ctx)
		}()
	}

	if cfg.Gateway.AutoStart || f.AutoStart {
		if s.app.AutoStartGateway(ctx) {
			s.log.Info("gateway auto-started", "port", cfg.Gateway.Port)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	_, _ = fmt.Fprintf(w, "Serving OpenClaw desktop API on http://%s%s\n", ln.Addr(), basePath)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	_, _ = fmt.Fprintln(w, "Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if sErr := srv.Shutdown(shutdownCtx); sErr != nil && err == nil {
		err = sErr
	}
	cancel()
	wg.Wait()
	return err
}
