package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ai-dev-2024/openclaw-desktop/internal/detector"
	"github.com/ai-dev-2024/openclaw-desktop/internal/logger"
)

// DefaultPort is the gateway port documented by OpenClaw.
const DefaultPort = 18789

// EnvPrefix prefixes environment overrides, e.g. OPENCLAW_DESKTOP_GATEWAY_PORT.
const EnvPrefix = "OPENCLAW_DESKTOP"

// Config is the complete desktop configuration.
type Config struct {
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Install     InstallConfig     `mapstructure:"install"`
	Log         LogConfig         `mapstructure:"log"`
	UI          UIConfig          `mapstructure:"ui"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	History     HistoryConfig     `mapstructure:"history"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

type GatewayConfig struct {
	Port              int           `mapstructure:"port"`
	Host              string        `mapstructure:"host"`
	Executable        string        `mapstructure:"executable"`
	Args              []string      `mapstructure:"args"`      // "{port}" is replaced with Port
	StopArgs          []string      `mapstructure:"stop_args"` // used when the gateway was not spawned here
	Profile           string        `mapstructure:"profile"`
	Env               []string      `mapstructure:"env"`
	StopTimeout       time.Duration `mapstructure:"stop_timeout"`
	KillGrace         time.Duration `mapstructure:"kill_grace"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	AutoStart         bool          `mapstructure:"auto_start"`
	AutoRestart       bool          `mapstructure:"auto_restart"`
	MaxRestarts       int           `mapstructure:"max_restarts"`
	RestartWindow     time.Duration `mapstructure:"restart_window"`
	RestartBackoff    time.Duration `mapstructure:"restart_backoff"`
	MaxRestartBackoff time.Duration `mapstructure:"max_restart_backoff"`
	Notify            bool          `mapstructure:"notify"`
}

type PathsConfig struct {
	Home             string `mapstructure:"home"` // OpenClaw state dir, ~/.openclaw
	Log              string `mapstructure:"log"`
	ErrorLog         string `mapstructure:"error_log"`
	PIDFile          string `mapstructure:"pid_file"`
	ConfigFile       string `mapstructure:"config_file"`
	LegacyConfigFile string `mapstructure:"legacy_config_file"`
}

type InstallConfig struct {
	Runtime string `mapstructure:"runtime"` // package manager executable
	Package string `mapstructure:"package"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	Color        bool   `mapstructure:"color"`
	TimeStamps   bool   `mapstructure:"timestamps"`
	File         string `mapstructure:"file"`
	MaxSizeMB    int    `mapstructure:"max_size_mb"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAgeDays   int    `mapstructure:"max_age_days"`
	Compress     bool   `mapstructure:"compress"`
	MaxTailLines int    `mapstructure:"max_tail_lines"`
}

type UIConfig struct {
	StatusInterval    time.Duration `mapstructure:"status_interval"`
	LogInterval       time.Duration `mapstructure:"log_interval"`
	LogLines          int           `mapstructure:"log_lines"`
	AutoOpenDashboard bool          `mapstructure:"auto_open_dashboard"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type DiagnosticsConfig struct {
	DoctorTimeout time.Duration `mapstructure:"doctor_timeout"`
}

// Logger converts the log section into logger settings.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{Level: l.Level, Format: l.Format, Color: l.Color, TimeStamps: l.TimeStamps},
		File: logger.FileConfig{
			Filename:   l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Compress:   l.Compress,
		},
	}
}

// GatewayArgs returns the gateway start arguments with {port} substituted.
func (g GatewayConfig) GatewayArgs() []string {
	out := make([]string, len(g.Args))
	for i, a := range g.Args {
		out[i] = strings.ReplaceAll(a, "{port}", fmt.Sprint(g.Port))
	}
	return out
}

// Load reads the TOML file at path (optional), applies OPENCLAW_DESKTOP_*
// environment overrides and defaults, and validates the result. With an
// empty path, <home>/desktop.toml is read when it exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	setDefaults(v, userHome)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		candidate := filepath.Join(expandHome(v.GetString("paths.home"), userHome), "desktop.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.resolvePaths(userHome)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or env override exists.
func Default() *Config {
	userHome, _ := os.UserHomeDir()
	v := viper.New()
	setDefaults(v, userHome)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.resolvePaths(userHome)
	return &cfg
}

func setDefaults(v *viper.Viper, userHome string) {
	v.SetDefault("gateway.port", DefaultPort)
	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.executable", "openclaw")
	v.SetDefault("gateway.args", []string{"gateway", "--port", "{port}", "--verbose"})
	v.SetDefault("gateway.stop_args", []string{"daemon", "stop"})
	v.SetDefault("gateway.profile", "")
	v.SetDefault("gateway.env", []string{})
	v.SetDefault("gateway.stop_timeout", 10*time.Second)
	v.SetDefault("gateway.kill_grace", 2*time.Second)
	v.SetDefault("gateway.probe_timeout", detector.DefaultProbeTimeout)
	v.SetDefault("gateway.auto_start", true)
	v.SetDefault("gateway.auto_restart", false)
	v.SetDefault("gateway.max_restarts", 5)
	v.SetDefault("gateway.restart_window", 5*time.Minute)
	v.SetDefault("gateway.restart_backoff", time.Second)
	v.SetDefault("gateway.max_restart_backoff", 30*time.Second)
	v.SetDefault("gateway.notify", true)

	v.SetDefault("paths.home", filepath.Join(userHome, ".openclaw"))
	v.SetDefault("paths.log", "")
	v.SetDefault("paths.error_log", "")
	v.SetDefault("paths.pid_file", "")
	v.SetDefault("paths.config_file", "")
	v.SetDefault("paths.legacy_config_file", filepath.Join(userHome, ".clawdbot", "clawdbot.json"))

	v.SetDefault("install.runtime", "npm")
	v.SetDefault("install.package", "openclaw")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", true)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.max_tail_lines", 2000)

	v.SetDefault("ui.status_interval", 3*time.Second)
	v.SetDefault("ui.log_interval", time.Second)
	v.SetDefault("ui.log_lines", 200)
	v.SetDefault("ui.auto_open_dashboard", false)

	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.base_path", "/api")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.interval", 5*time.Second)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("diagnostics.doctor_timeout", 2*time.Minute)
}

// resolvePaths expands ~ and derives unset paths from Paths.Home.
func (c *Config) resolvePaths(userHome string) {
	p := &c.Paths
	p.Home = expandHome(p.Home, userHome)
	derive := func(v *string, name string) {
		if *v == "" {
			*v = filepath.Join(p.Home, name)
		}
		*v = expandHome(*v, userHome)
	}
	derive(&p.Log, "gateway.log")
	derive(&p.ErrorLog, "gateway_error.log")
	derive(&p.PIDFile, filepath.Join("desktop", "gateway.pid"))
	derive(&p.ConfigFile, "openclaw.json")
	p.LegacyConfigFile = expandHome(p.LegacyConfigFile, userHome)
	derive(&c.History.Path, filepath.Join("desktop", "history.db"))
	if c.Log.File != "" {
		c.Log.File = expandHome(c.Log.File, userHome)
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port))
	}
	if strings.TrimSpace(c.Gateway.Executable) == "" {
		errs = append(errs, errors.New("gateway.executable is required"))
	}
	if c.Gateway.StopTimeout <= 0 {
		errs = append(errs, errors.New("gateway.stop_timeout must be positive"))
	}
	if c.UI.StatusInterval <= 0 || c.UI.LogInterval <= 0 {
		errs = append(errs, errors.New("ui intervals must be positive"))
	}
	if c.Log.MaxTailLines <= 0 {
		errs = append(errs, errors.New("log.max_tail_lines must be positive"))
	}
	return errors.Join(errs...)
}

func expandHome(p, userHome string) string {
	if p == "~" {
		return userHome
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return filepath.Join(userHome, rest)
	}
	return p
}
