package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ai-dev-2024/openclaw-desktop/internal/detector"
	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/installer"
	"github.com/ai-dev-2024/openclaw-desktop/internal/process"
)

// fakeController simulates processes in memory. A live process binds the
// gateway port as far as fakeProber is concerned.
type fakeController struct {
	mu         sync.Mutex
	next       int
	live       map[int]func(error)
	spawned    []process.Spec
	spawnErr   error
	ignoreTerm bool // graceful termination is ignored
	unkillable bool // forced termination is ignored too
}

func newFakeController() *fakeController {
	return &fakeController{next: 1000, live: map[int]func(error){}}
}

func (c *fakeController) Spawn(spec process.Spec) (*process.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spawnErr != nil {
		return nil, c.spawnErr
	}
	c.next++
	h, exited := process.NewTrackedHandle(c.next, "run")
	c.live[h.PID] = exited
	c.spawned = append(c.spawned, spec)
	return h, nil
}

func (c *fakeController) TerminateGracefully(h *process.Handle) error {
	c.mu.Lock()
	ignore := c.ignoreTerm
	c.mu.Unlock()
	if ignore {
		return nil
	}
	c.kill(h.PID, nil)
	return nil
}

func (c *fakeController) TerminateForcefully(h *process.Handle) error {
	c.mu.Lock()
	ignore := c.unkillable
	c.mu.Unlock()
	if ignore {
		return errors.New("access denied")
	}
	c.kill(h.PID, errors.New("signal: killed"))
	return nil
}

func (c *fakeController) IsAlive(h *process.Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[h.PID]
	return ok
}

// kill ends pid as if the OS reaped it.
func (c *fakeController) kill(pid int, err error) {
	c.mu.Lock()
	exited, ok := c.live[pid]
	delete(c.live, pid)
	c.mu.Unlock()
	if ok {
		exited(err)
	}
}

func (c *fakeController) alive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *fakeController) spawnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spawned)
}

func (c *fakeController) setSpawnErr(err error) {
	c.mu.Lock()
	c.spawnErr = err
	c.mu.Unlock()
}

type fakeProber struct {
	ctrl     *fakeController
	mu       sync.Mutex
	external bool // a gateway not spawned by the controller holds the port
	unknown  bool
	slowDown bool // a free port times out instead of refusing
}

func (p *fakeProber) Probe(context.Context) (detector.Liveness, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unknown {
		return detector.Unknown, errors.New("i/o timeout")
	}
	if p.external || p.ctrl.alive() > 0 {
		return detector.Running, nil
	}
	if p.slowDown {
		return detector.Unknown, errors.New("i/o timeout")
	}
	return detector.Stopped, nil
}

func (p *fakeProber) setExternal(v bool) {
	p.mu.Lock()
	p.external = v
	p.mu.Unlock()
}

type fakeResolver struct {
	path string
	err  error
}

func (r fakeResolver) Resolve() (string, error) { return r.path, r.err }

// stopRunner answers "openclaw daemon stop" by releasing the external port.
type stopRunner struct {
	prober *fakeProber
	result installer.Result
	calls  [][]string
}

func (r *stopRunner) Run(_ context.Context, name string, args ...string) (installer.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.result.ExitCode == 0 {
		r.prober.setExternal(false)
	}
	return r.result, nil
}

type memSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (m *memSink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) types() []history.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type countingNotifier struct {
	mu   sync.Mutex
	msgs []string
	hold chan struct{} // when set, Notify blocks until it is closed
}

func (n *countingNotifier) Notify(title, message string) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, title+": "+message)
	hold := n.hold
	n.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type fixture struct {
	ctrl     *fakeController
	prober   *fakeProber
	runner   *stopRunner
	sink     *memSink
	notifier *countingNotifier
	sup      *Supervisor
}

func newFixture(mut func(*Options)) *fixture {
	ctrl := newFakeController()
	prober := &fakeProber{ctrl: ctrl}
	f := &fixture{
		ctrl:     ctrl,
		prober:   prober,
		runner:   &stopRunner{prober: prober},
		sink:     &memSink{},
		notifier: &countingNotifier{},
	}
	opts := Options{
		Port:        18789,
		Args:        []string{"gateway", "--port", "18789", "--verbose"},
		LogPath:     "gateway.log",
		StopTimeout: 200 * time.Millisecond,
		KillGrace:   100 * time.Millisecond,
	}
	if mut != nil {
		mut(&opts)
	}
	f.sup = New(opts, Deps{
		Controller: ctrl,
		Resolver:   fakeResolver{path: "/usr/local/bin/openclaw"},
		Prober:     prober,
		Runner:     f.runner,
		History:    f.sink,
		Notifier:   f.notifier,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}
