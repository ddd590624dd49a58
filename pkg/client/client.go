package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is where "openclaw-desktop serve" listens by default.
const DefaultBaseURL = "http://127.0.0.1:18790/api"

// Client calls the openclaw-desktop HTTP command API.
type Client struct {
	baseURL     string
	timeout     time.Duration
	longTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Timeout bounds quick queries such as status and logs.
	Timeout time.Duration
	// LongTimeout bounds install, doctor and lifecycle commands.
	LongTimeout time.Duration
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     10 * time.Second,
		LongTimeout: 10 * time.Minute,
	}
}

// New creates a client.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.LongTimeout <= 0 {
		config.LongTimeout = def.LongTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		timeout:     config.Timeout,
		longTimeout: config.LongTimeout,
		client:      config.HTTPClient,
		logger:      config.Logger,
	}
}

// IsReachable reports whether the server answers.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.GetGatewayStatus(ctx)
	if err != nil {
		c.logger.Debug("server unreachable", "url", c.baseURL, "error", err)
	}
	return err == nil
}

func (c *Client) IsOpenClawInstalled(ctx context.Context) (bool, error) {
	var v bool
	err := c.call(ctx, c.timeout, http.MethodGet, "/is_openclaw_installed", nil, &v)
	return v, err
}

func (c *Client) InstallOpenClaw(ctx context.Context) error {
	return c.call(ctx, c.longTimeout, http.MethodPost, "/install_openclaw", nil, nil)
}

func (c *Client) GetGatewayStatus(ctx context.Context) (GatewayStatus, error) {
	var st GatewayStatus
	err := c.call(ctx, c.timeout, http.MethodGet, "/get_gateway_status", nil, &st)
	return st, err
}

func (c *Client) StartGateway(ctx context.Context) error {
	return c.call(ctx, c.longTimeout, http.MethodPost, "/start_gateway", nil, nil)
}

func (c *Client) StopGateway(ctx context.Context) error {
	return c.call(ctx, c.longTimeout, http.MethodPost, "/stop_gateway", nil, nil)
}

func (c *Client) RestartGateway(ctx context.Context) error {
	return c.call(ctx, c.longTimeout, http.MethodPost, "/restart_gateway", nil, nil)
}

// AutoStartGateway reports whether the server started the gateway.
func (c *Client) AutoStartGateway(ctx context.Context) (bool, error) {
	var v bool
	err := c.call(ctx, c.longTimeout, http.MethodPost, "/auto_start_gateway", nil, &v)
	return v, err
}

// GetGatewayLogs returns the last lines of the gateway log; lines <= 0
// uses the server default.
func (c *Client) GetGatewayLogs(ctx context.Context, lines int) (string, error) {
	return c.logs(ctx, "/get_gateway_logs", lines)
}

func (c *Client) GetGatewayErrorLogs(ctx context.Context, lines int) (string, error) {
	return c.logs(ctx, "/get_gateway_error_logs", lines)
}

func (c *Client) logs(ctx context.Context, path string, lines int) (string, error) {
	q := url.Values{}
	if lines > 0 {
		q.Set("lines", strconv.Itoa(lines))
	}
	var s string
	err := c.call(ctx, c.timeout, http.MethodGet, path, q, &s)
	return s, err
}

func (c *Client) ClearGatewayLogs(ctx context.Context) error {
	return c.call(ctx, c.timeout, http.MethodPost, "/clear_gateway_logs", nil, nil)
}

func (c *Client) GetGatewayDiagnostics(ctx context.Context) (GatewayDiagnostics, error) {
	var d GatewayDiagnostics
	err := c.call(ctx, c.longTimeout, http.MethodGet, "/get_gateway_diagnostics", nil, &d)
	return d, err
}

func (c *Client) RunOpenClawDoctor(ctx context.Context) (string, error) {
	var s string
	err := c.call(ctx, c.longTimeout, http.MethodPost, "/run_openclaw_doctor", nil, &s)
	return s, err
}

func (c *Client) GetDashboardURL(ctx context.Context) (string, error) {
	var s string
	err := c.call(ctx, c.timeout, http.MethodGet, "/get_dashboard_url", nil, &s)
	return s, err
}

func (c *Client) OpenDashboardWindow(ctx context.Context) error {
	return c.call(ctx, c.timeout, http.MethodPost, "/open_dashboard_window", nil, nil)
}

// History returns up to limit lifecycle events, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEvent, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var events []HistoryEvent
	err := c.call(ctx, c.timeout, http.MethodGet, "/gateway_history", q, &events)
	return events, err
}

// call performs one request and decodes a 200 body into out (if non-nil).
func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", u)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// handleErrorResponse turns a non-200 response into an *APIError.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		c.logger.Debug("failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	c.logger.Debug("API request failed", "error", er.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Message: er.Error}
}

// IsAPIError reports whether err came from the server rather than the transport.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
