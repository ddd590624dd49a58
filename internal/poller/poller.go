// Package poller runs a query on a fixed interval.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Poller calls Query every Interval until its context is cancelled. A tick
// that arrives while the previous query is still running is skipped, never
// queued.
type Poller struct {
	Name     string
	Interval time.Duration
	Query    func(ctx context.Context)
	// Immediate runs the first query at Run rather than after one interval.
	Immediate bool
	Logger    *slog.Logger

	inflight atomic.Bool
	skipped  atomic.Int64
	wg       sync.WaitGroup
}

// Run blocks until ctx is done and every query it started has returned.
func (p *Poller) Run(ctx context.Context) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	defer p.wg.Wait()

	if p.Immediate {
		p.fire(ctx, log)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.fire(ctx, log)
		}
	}
}

func (p *Poller) fire(ctx context.Context, log *slog.Logger) {
	if !p.inflight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		log.Debug("poll skipped, previous query in flight", "poller", p.Name)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inflight.Store(false)
		p.Query(ctx)
	}()
}

// Skipped reports how many ticks were dropped because a query was in flight.
func (p *Poller) Skipped() int64 { return p.skipped.Load() }

// InFlight reports whether a query is running.
func (p *Poller) InFlight() bool { return p.inflight.Load() }
