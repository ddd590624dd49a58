package client

import "time"

// GatewayStatus is the result of get_gateway_status.
type GatewayStatus struct {
	Running      bool   `json:"running"`
	Port         int    `json:"port"`
	DashboardURL string `json:"dashboard_url"`
	State        string `json:"state"`
}

// GatewayDiagnostics is the result of get_gateway_diagnostics.
type GatewayDiagnostics struct {
	OpenClawInstalled bool    `json:"openclaw_installed"`
	GatewayRunning    bool    `json:"gateway_running"`
	GatewayPort       int     `json:"gateway_port"`
	DashboardURL      string  `json:"dashboard_url"`
	OpenClawVersion   *string `json:"openclaw_version"`
	ProfileName       *string `json:"profile_name"`
	LogPath           string  `json:"log_path"`
	ErrorLogPath      string  `json:"error_log_path"`
	GatewayState      string  `json:"gateway_state"`
	GatewayPID        *int    `json:"gateway_pid,omitempty"`
	ExecutablePath    *string `json:"executable_path,omitempty"`
}

// HistoryEvent is one gateway lifecycle event.
type HistoryEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is a command failure reported by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }
