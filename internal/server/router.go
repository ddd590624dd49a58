package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai-dev-2024/openclaw-desktop/internal/diagnostics"
	"github.com/ai-dev-2024/openclaw-desktop/internal/gateway"
	"github.com/ai-dev-2024/openclaw-desktop/internal/history"
	"github.com/ai-dev-2024/openclaw-desktop/internal/metrics"
)

// Commands is the desktop command surface served over HTTP.
type Commands interface {
	IsOpenClawInstalled(ctx context.Context) bool
	InstallOpenClaw(ctx context.Context) error
	GetGatewayStatus(ctx context.Context) gateway.Status
	StartGateway(ctx context.Context) error
	StopGateway(ctx context.Context) error
	RestartGateway(ctx context.Context) error
	AutoStartGateway(ctx context.Context) bool
	GetGatewayLogs(lines int) string
	GetGatewayErrorLogs(lines int) string
	ClearGatewayLogs() error
	GetGatewayDiagnostics(ctx context.Context) diagnostics.GatewayDiagnostics
	RunOpenClawDoctor(ctx context.Context) (string, error)
	GetDashboardURL() string
	OpenDashboardWindow(ctx context.Context) error
	History(ctx context.Context, limit int) ([]history.Event, error)
}

// Router exposes Commands as HTTP endpoints named after the commands.
//
//	GET  {basePath}/is_openclaw_installed     -> bool
//	POST {basePath}/install_openclaw          -> {"ok":true}
//	GET  {basePath}/get_gateway_status        -> GatewayStatus
//	POST {basePath}/start_gateway             -> {"ok":true}
//	POST {basePath}/stop_gateway              -> {"ok":true}
//	POST {basePath}/restart_gateway           -> {"ok":true}
//	POST {basePath}/auto_start_gateway        -> bool
//	GET  {basePath}/get_gateway_logs?lines=N  -> string
//	GET  {basePath}/get_gateway_error_logs?lines=N
//	POST {basePath}/clear_gateway_logs        -> {"ok":true}
//	GET  {basePath}/get_gateway_diagnostics   -> GatewayDiagnostics
//	POST {basePath}/run_openclaw_doctor       -> string
//	GET  {basePath}/get_dashboard_url         -> string
//	POST {basePath}/open_dashboard_window     -> {"ok":true}
//	GET  {basePath}/gateway_history?limit=N   -> []Event
//
// Failures are {"error": "..."} with 500, or 400 for bad query parameters.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	cmds     Commands
	basePath string
	metrics  bool
}

// NewRouter constructs a Router. withMetrics also serves GET /metrics.
func NewRouter(cmds Commands, basePath string, withMetrics bool) *Router {
	return &Router{cmds: cmds, basePath: sanitizeBase(basePath), metrics: withMetrics}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	group := g.Group(r.basePath)
	group.GET("/is_openclaw_installed", r.handleIsInstalled)
	group.POST("/install_openclaw", r.run(r.cmds.InstallOpenClaw))
	group.GET("/get_gateway_status", r.handleStatus)
	group.POST("/start_gateway", r.run(r.cmds.StartGateway))
	group.POST("/stop_gateway", r.run(r.cmds.StopGateway))
	group.POST("/restart_gateway", r.run(r.cmds.RestartGateway))
	group.POST("/auto_start_gateway", r.handleAutoStart)
	group.GET("/get_gateway_logs", r.handleLogs(r.cmds.GetGatewayLogs))
	group.GET("/get_gateway_error_logs", r.handleLogs(r.cmds.GetGatewayErrorLogs))
	group.POST("/clear_gateway_logs", r.run(func(context.Context) error { return r.cmds.ClearGatewayLogs() }))
	group.GET("/get_gateway_diagnostics", r.handleDiagnostics)
	group.POST("/run_openclaw_doctor", r.handleDoctor)
	group.GET("/get_dashboard_url", r.handleDashboardURL)
	group.POST("/open_dashboard_window", r.run(r.cmds.OpenDashboardWindow))
	group.GET("/gateway_history", r.handleHistory)
	return g
}

// NewServer builds a standalone HTTP server on addr using this router.
// The caller runs ListenAndServe and Shutdown.
func NewServer(addr, basePath string, cmds Commands, withMetrics bool) *http.Server {
	r := NewRouter(cmds, basePath, withMetrics)
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// install and doctor can take minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// run adapts an error-only command.
func (r *Router) run(fn func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusOK, okResp{OK: true})
	}
}

func (r *Router) handleIsInstalled(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.cmds.IsOpenClawInstalled(c.Request.Context()))
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.cmds.GetGatewayStatus(c.Request.Context()))
}

func (r *Router) handleAutoStart(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.cmds.AutoStartGateway(c.Request.Context()))
}

func (r *Router) handleLogs(tail func(int) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := parseCount(c.Query("lines"))
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid lines: " + err.Error()})
			return
		}
		writeJSON(c, http.StatusOK, tail(n))
	}
}

func (r *Router) handleDiagnostics(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.cmds.GetGatewayDiagnostics(c.Request.Context()))
}

func (r *Router) handleDoctor(c *gin.Context) {
	out, err := r.cmds.RunOpenClawDoctor(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleDashboardURL(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.cmds.GetDashboardURL())
}

func (r *Router) handleHistory(c *gin.Context) {
	n, err := parseCount(c.Query("limit"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit: " + err.Error()})
		return
	}
	events, err := r.cmds.History(c.Request.Context(), n)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}
