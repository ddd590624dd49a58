package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the desktop TUI.
type KeyMap struct {
	Install   key.Binding
	Start     key.Binding
	Stop      key.Binding
	Restart   key.Binding
	Logs      key.Binding
	ClearLogs key.Binding
	Doctor    key.Binding
	Dashboard key.Binding
	Refresh   key.Binding

	// Log panel scrolling.
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Install: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "install openclaw"),
	),
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Restart: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restart"),
	),
	Logs: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "logs"),
	),
	ClearLogs: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear logs"),
	),
	Doctor: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "doctor"),
	),
	Dashboard: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "open dashboard"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "scroll down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// setupKeys is the help.KeyMap shown before OpenClaw is installed.
type setupKeys struct{ km KeyMap }

func (k setupKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.km.Install, k.km.Refresh, k.km.Quit}
}

func (k setupKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// dashboardKeys is the help.KeyMap of the main view.
type dashboardKeys struct {
	km       KeyMap
	logsOpen bool
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	b := []key.Binding{k.km.Start, k.km.Stop, k.km.Restart, k.km.Logs}
	if k.logsOpen {
		b = append(b, k.km.ClearLogs)
	}
	return append(b, k.km.Dashboard, k.km.Help, k.km.Quit)
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.km.Start, k.km.Stop, k.km.Restart, k.km.Refresh},
		{k.km.Logs, k.km.ClearLogs, k.km.Up, k.km.Down, k.km.PageUp, k.km.PageDown},
		{k.km.Doctor, k.km.Dashboard, k.km.Help, k.km.Quit},
	}
}
