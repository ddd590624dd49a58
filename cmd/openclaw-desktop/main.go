package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ai-dev-2024/openclaw-desktop/internal/tui"
)

func main() {
	root := buildRoot(openSession)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// buildRoot creates the root command and all subcommands. open is how a
// command obtains its backend.
func buildRoot(open opener) *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)

	root.AddCommand(
		createServeCommand(globalFlags, open),
		createUICommand(globalFlags, open),
		simpleCommand(globalFlags, open, "installed", "Report whether the openclaw CLI is installed",
			func(c command, cmd *cobra.Command) error { return c.Installed(cmd.Context()) }),
		simpleCommand(globalFlags, open, "install", "Install the openclaw CLI through npm",
			func(c command, cmd *cobra.Command) error { return c.Install(cmd.Context()) }),
		simpleCommand(globalFlags, open, "status", "Show the gateway status",
			func(c command, cmd *cobra.Command) error { return c.Status(cmd.Context()) }),
		simpleCommand(globalFlags, open, "start", "Start the gateway",
			func(c command, cmd *cobra.Command) error { return c.Start(cmd.Context()) }),
		simpleCommand(globalFlags, open, "stop", "Stop the gateway",
			func(c command, cmd *cobra.Command) error { return c.Stop(cmd.Context()) }),
		simpleCommand(globalFlags, open, "restart", "Restart the gateway",
			func(c command, cmd *cobra.Command) error { return c.Restart(cmd.Context()) }),
		simpleCommand(globalFlags, open, "auto-start", "Start the gateway unless it is already running",
			func(c command, cmd *cobra.Command) error { return c.AutoStart(cmd.Context()) }),
		createLogsCommand(globalFlags, open),
		simpleCommand(globalFlags, open, "diagnostics", "Show installation and gateway diagnostics",
			func(c command, cmd *cobra.Command) error { return c.Diagnostics(cmd.Context()) }),
		simpleCommand(globalFlags, open, "doctor", "Run openclaw doctor",
			func(c command, cmd *cobra.Command) error { return c.Doctor(cmd.Context()) }),
		simpleCommand(globalFlags, open, "dashboard-url", "Print the dashboard URL",
			func(c command, cmd *cobra.Command) error { return c.DashboardURL(cmd.Context()) }),
		simpleCommand(globalFlags, open, "open-dashboard", "Open the dashboard in the browser",
			func(c command, cmd *cobra.Command) error { return c.OpenDashboard(cmd.Context()) }),
		createHistoryCommand(globalFlags, open),
	)
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "openclaw-desktop",
		Short: "Local supervisor for the OpenClaw gateway",
		Long: `openclaw-desktop installs, starts, stops and monitors the OpenClaw gateway
on this machine, either in-process or through a running "serve" instance.

Examples:
  openclaw-desktop ui                       # Terminal UI
  openclaw-desktop start
  openclaw-desktop logs --lines=200
  openclaw-desktop serve                    # HTTP command API
  openclaw-desktop status --api-url=http://127.0.0.1:18790/api`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "running serve URL (e.g. http://127.0.0.1:18790/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")

	return root
}

// withSession opens a session around fn.
func withSession(g *GlobalFlags, open opener, cmd *cobra.Command, fn func(command, *session) error) error {
	s, err := open(g, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(command{b: s.backend, w: cmd.OutOrStdout()}, s)
}

// simpleCommand builds a flagless subcommand for one command of the surface.
func simpleCommand(g *GlobalFlags, open opener, use, short string, run func(command, *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(g, open, cmd, func(c command, _ *session) error {
				return run(c, cmd)
			})
		},
	}
}

func createLogsCommand(g *GlobalFlags, open opener) *cobra.Command {
	logsFlags := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the last lines of the gateway log",
		Long: `Print the last lines of the gateway log.

Examples:
  openclaw-desktop logs                     # last 100 lines
  openclaw-desktop logs --lines=500 --errors
  openclaw-desktop logs --follow
  openclaw-desktop logs --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(g, open, cmd, func(c command, s *session) error {
				return c.Logs(cmd.Context(), *logsFlags, s.cfg.UI.LogInterval)
			})
		},
	}
	cmd.Flags().IntVarP(&logsFlags.Lines, "lines", "n", 100, "number of lines")
	cmd.Flags().BoolVar(&logsFlags.Errors, "errors", false, "read the error log")
	cmd.Flags().BoolVar(&logsFlags.Clear, "clear", false, "empty the gateway log")
	cmd.Flags().BoolVarP(&logsFlags.Follow, "follow", "f", false, "keep printing new lines")
	cmd.MarkFlagsMutuallyExclusive("clear", "follow")
	return cmd
}

func createHistoryCommand(g *GlobalFlags, open opener) *cobra.Command {
	historyFlags := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent gateway lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(g, open, cmd, func(c command, _ *session) error {
				return c.History(cmd.Context(), *historyFlags)
			})
		},
	}
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "number of events")
	return cmd
}

func createServeCommand(g *GlobalFlags, open opener) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP command API",
		Long: `Serve the command surface over HTTP so other front ends can drive the
gateway. Status is polled in the background and exported as metrics when
enabled.

Examples:
  openclaw-desktop serve
  openclaw-desktop serve --listen=127.0.0.1:9000 --metrics --auto-start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, *serveFlags, open, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&serveFlags.BasePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&serveFlags.Metrics, "metrics", false, "serve prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&serveFlags.AutoStart, "auto-start", false, "start the gateway if it is not running")
	return cmd
}

func createUICommand(g *GlobalFlags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(g, true)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			ui := s.cfg.UI
			return tui.Run(cmd.Context(), s.backend, tui.Options{
				StatusInterval:    ui.StatusInterval,
				LogInterval:       ui.LogInterval,
				LogLines:          ui.LogLines,
				AutoOpenDashboard: ui.AutoOpenDashboard,
				LogPath:           s.cfg.Paths.Log,
			})
		},
	}
}
