package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ai-dev-2024/openclaw-desktop/pkg/client"
)

// Client defines the command surface the TUI drives. *client.Client
// satisfies it; the CLI adapts an in-process App to it.
type Client interface {
	IsOpenClawInstalled(ctx context.Context) (bool, error)
	InstallOpenClaw(ctx context.Context) error
	GetGatewayStatus(ctx context.Context) (client.GatewayStatus, error)
	StartGateway(ctx context.Context) error
	StopGateway(ctx context.Context) error
	RestartGateway(ctx context.Context) error
	AutoStartGateway(ctx context.Context) (bool, error)
	GetGatewayLogs(ctx context.Context, lines int) (string, error)
	ClearGatewayLogs(ctx context.Context) error
	RunOpenClawDoctor(ctx context.Context) (string, error)
	GetDashboardURL(ctx context.Context) (string, error)
	OpenDashboardWindow(ctx context.Context) error
}

// Options tunes polling and boot behavior.
type Options struct {
	StatusInterval    time.Duration // default 3s
	LogInterval       time.Duration // default 1s
	LogLines          int           // default 100
	AutoOpenDashboard bool
	LogPath           string // watched for early log refresh when set
	KeyMap            *KeyMap
}

type view int

const (
	viewChecking view = iota
	viewSetup
	viewDashboard
)

// Model is the Bubble Tea model of the desktop shell.
type Model struct {
	client Client
	ctx    context.Context
	opts   Options
	keys   KeyMap

	view   view
	width  int
	height int

	// Status poll. A failed poll keeps the last status and records pollErr.
	status       client.GatewayStatus
	hasStatus    bool
	statusFlight bool
	pollErr      error
	lastUpdate   time.Time

	// In-flight actions.
	checking   bool
	installing bool
	acting     string
	doctoring  bool

	// Inline error line, next to the action that produced it.
	errAction string
	err       error
	notice    string
	doctorOut string

	dashboardOpened bool

	// Log panel. logGen changes every time the panel opens or closes.
	logsOpen   bool
	logGen     int
	logFlight  bool
	logCancel  context.CancelFunc
	logWatch   <-chan struct{}
	logs       viewport.Model
	logsLoaded bool

	spinner  spinner.Model
	help     help.Model
	showHelp bool
}

// New creates the model. ctx bounds every client call.
func New(ctx context.Context, c Client, opts Options) Model {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 3 * time.Second
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = time.Second
	}
	if opts.LogLines <= 0 {
		opts.LogLines = 100
	}
	km := DefaultKeyMap
	if opts.KeyMap != nil {
		km = *opts.KeyMap
	}

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = pendingStyle

	logs := viewport.New(80, 12)
	logs.SetContent("Loading logs...")

	return Model{
		client:   c,
		ctx:      ctx,
		opts:     opts,
		keys:     km,
		view:     viewChecking,
		checking: true,
		logs:     logs,
		spinner:  spin,
		help:     help.New(),
	}
}

// Run starts the TUI on the terminal and blocks until the user quits or ctx ends.
func Run(ctx context.Context, c Client, opts Options) error {
	p := tea.NewProgram(New(ctx, c, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.closeLogs()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		checkInstalled(m.client, m.ctx),
		tickCmd(m.opts.StatusInterval),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeLogs()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case installedMsg:
		m.checking = false
		if msg.err != nil {
			m.setError("Installation check", msg.err)
			m.view = viewSetup
			return m, nil
		}
		if !msg.installed {
			m.view = viewSetup
			return m, nil
		}
		m.view = viewDashboard
		m.statusFlight = true
		return m, tea.Batch(autoStart(m.client, m.ctx), fetchStatus(m.client, m.ctx))

	case installDoneMsg:
		m.installing = false
		if msg.err != nil {
			m.setError(actionInstall, msg.err)
			return m, nil
		}
		m.clearError()
		m.view = viewDashboard
		m.notice = "OpenClaw installed"
		return m, autoStart(m.client, m.ctx)

	case autoStartMsg:
		if msg.err != nil {
			m.setError(actionAutoStart, msg.err)
			return m, nil
		}
		if msg.started {
			m.notice = "Gateway starting..."
		}
		cmd := m.pollStatus()
		return m, cmd

	case statusMsg:
		m.statusFlight = false
		if msg.err != nil {
			m.pollErr = msg.err
			return m, nil
		}
		m.pollErr = nil
		wasRunning := m.hasStatus && m.status.Running
		m.status = msg.status
		m.hasStatus = true
		m.lastUpdate = time.Now()
		if msg.status.Running && !wasRunning && m.opts.AutoOpenDashboard && !m.dashboardOpened {
			m.dashboardOpened = true
			return m, openDashboard(m.client, m.ctx)
		}
		return m, nil

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case doctorMsg:
		m.doctoring = false
		if msg.err != nil {
			m.setError(actionDoctor, msg.err)
			m.doctorOut = msg.err.Error()
			return m, nil
		}
		m.clearError()
		m.doctorOut = msg.output
		return m, nil

	case dashboardOpenedMsg:
		if msg.err != nil {
			m.setError(actionDashboard, msg.err)
			return m, nil
		}
		m.notice = "Opened " + msg.url
		return m, nil

	case logsMsg:
		if msg.gen != m.logGen || !m.logsOpen {
			return m, nil
		}
		m.logFlight = false
		content := msg.content
		if msg.err != nil {
			content = "Unable to read logs: " + msg.err.Error()
		}
		atBottom := m.logs.AtBottom() || !m.logsLoaded
		m.logs.SetContent(content)
		m.logsLoaded = true
		if atBottom {
			m.logs.GotoBottom()
		}
		return m, nil

	case logTickMsg:
		if msg.gen != m.logGen || !m.logsOpen {
			return m, nil
		}
		cmd := m.pollLogs()
		return m, tea.Batch(cmd, logTickCmd(m.opts.LogInterval, m.logGen))

	case logChangedMsg:
		if msg.gen != m.logGen || !m.logsOpen {
			return m, nil
		}
		cmd := m.pollLogs()
		return m, tea.Batch(cmd, waitLogChange(m.logWatch, m.logGen))

	case tickMsg:
		if m.view == viewDashboard {
			cmd := m.pollStatus()
			return m, tea.Batch(cmd, tickCmd(m.opts.StatusInterval))
		}
		return m, tickCmd(m.opts.StatusInterval)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeLogs()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	switch m.view {
	case viewSetup:
		switch {
		case key.Matches(msg, m.keys.Install):
			if m.installing {
				return m, nil
			}
			m.installing = true
			m.clearError()
			return m, tea.Batch(install(m.client, m.ctx), m.spinner.Tick)
		case key.Matches(msg, m.keys.Refresh):
			if m.checking {
				return m, nil
			}
			m.checking = true
			return m, checkInstalled(m.client, m.ctx)
		}
		return m, nil

	case viewDashboard:
		return m.handleDashboardKey(msg)
	}
	return m, nil
}

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Start):
		if m.status.Running && m.acting == "" {
			m.clearError()
			m.notice = "Gateway is already running"
			return m, nil
		}
		return m.startAction(actionStart)
	case key.Matches(msg, m.keys.Stop):
		return m.startAction(actionStop)
	case key.Matches(msg, m.keys.Restart):
		return m.startAction(actionRestart)
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.pollStatus()
		return m, cmd
	case key.Matches(msg, m.keys.Logs):
		if m.logsOpen {
			m.closeLogs()
			m.logsOpen = false
			m.logGen++
			return m, nil
		}
		return m.openLogs()
	case key.Matches(msg, m.keys.ClearLogs):
		if !m.logsOpen {
			return m, nil
		}
		return m.startAction(actionClearLogs)
	case key.Matches(msg, m.keys.Doctor):
		if m.doctoring {
			return m, nil
		}
		m.doctoring = true
		m.doctorOut = ""
		return m, tea.Batch(runDoctor(m.client, m.ctx), m.spinner.Tick)
	case key.Matches(msg, m.keys.Dashboard):
		return m, openDashboard(m.client, m.ctx)
	}

	if m.logsOpen {
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

// startAction runs one gateway action at a time.
func (m Model) startAction(action string) (tea.Model, tea.Cmd) {
	if m.acting != "" {
		return m, nil
	}
	m.acting = action
	m.clearError()
	m.notice = ""
	return m, tea.Batch(gatewayAction(m.client, m.ctx, action), m.spinner.Tick)
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	m.acting = ""
	if msg.err != nil {
		m.setError(msg.action, msg.err)
		cmd := m.pollStatus()
		return m, cmd
	}
	m.clearError()
	switch msg.action {
	case actionStart:
		m.notice = "Gateway starting..."
	case actionStop:
		m.notice = "Gateway stopped"
	case actionRestart:
		m.notice = "Gateway restarting..."
	case actionClearLogs:
		m.notice = "Logs cleared"
		cmd := m.pollLogs()
		return m, cmd
	}
	cmd := m.pollStatus()
	return m, cmd
}

func (m *Model) openLogs() (tea.Model, tea.Cmd) {
	m.logsOpen = true
	m.logGen++
	m.logsLoaded = false
	m.logFlight = false
	m.logs.SetContent("Loading logs...")
	m.resizeLogs()

	watchCtx, cancel := context.WithCancel(m.ctx)
	m.logCancel = cancel
	m.logWatch = watchLogs(watchCtx, m.opts.LogPath)

	poll := m.pollLogs()
	return *m, tea.Batch(
		poll,
		logTickCmd(m.opts.LogInterval, m.logGen),
		waitLogChange(m.logWatch, m.logGen),
	)
}

// closeLogs stops the panel watcher. It never touches the gateway.
func (m *Model) closeLogs() {
	if m.logCancel != nil {
		m.logCancel()
		m.logCancel = nil
	}
	m.logWatch = nil
}

// pollStatus fetches status unless a query is already in flight.
func (m *Model) pollStatus() tea.Cmd {
	if m.statusFlight {
		return nil
	}
	m.statusFlight = true
	return fetchStatus(m.client, m.ctx)
}

func (m *Model) pollLogs() tea.Cmd {
	if m.logFlight {
		return nil
	}
	m.logFlight = true
	return fetchLogs(m.client, m.ctx, m.logGen, m.opts.LogLines)
}

func (m *Model) setError(action string, err error) {
	m.errAction = action
	m.err = err
	m.notice = ""
}

func (m *Model) clearError() {
	m.errAction = ""
	m.err = nil
}

func (m *Model) resizeLogs() {
	if m.width == 0 {
		return
	}
	m.logs.Width = m.width - 4
	h := m.height - 16
	if h < 5 {
		h = 5
	}
	m.logs.Height = h
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	return renderView(m)
}

// firstLine trims multi-line errors for the inline error line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
