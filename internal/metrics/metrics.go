package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "openclaw_desktop"
	subsystem = "gateway"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	gatewayStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "starts_total",
			Help:      "Gateway start attempts by result (spawned, already_running, error).",
		}, []string{"result"},
	)
	gatewayStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stops_total",
			Help:      "Gateway stops by mode (graceful, forced, external, failed).",
		}, []string{"mode"},
	)
	gatewayRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "restarts_total",
			Help:      "Gateway restarts by trigger (manual, watchdog).",
		}, []string{"trigger"},
	)
	spawnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "spawn_duration_seconds",
			Help:      "Time spent launching the gateway process.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	gatewayUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "up",
			Help:      "Last port probe result (1 = accepting connections).",
		}, []string{"liveness"},
	)
	commandRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_commands_total",
			Help:      "External OpenClaw commands run by the desktop (install, doctor, daemon_stop).",
		}, []string{"command", "result"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		gatewayStarts, gatewayStops, gatewayRestarts, spawnDuration,
		stateTransitions, currentState, gatewayUp, commandRuns,
	}
	cs = append(cs, processCollectors()...)
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded.

func IncStart(result string) {
	if regOK.Load() {
		gatewayStarts.WithLabelValues(result).Inc()
	}
}

func IncStop(mode string) {
	if regOK.Load() {
		gatewayStops.WithLabelValues(mode).Inc()
	}
}

func IncRestart(trigger string) {
	if regOK.Load() {
		gatewayRestarts.WithLabelValues(trigger).Inc()
	}
}

func ObserveSpawnDuration(seconds float64) {
	if regOK.Load() {
		spawnDuration.Observe(seconds)
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}

// SetCurrentState marks state as the single active state among states.
func SetCurrentState(state string, states []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		currentState.WithLabelValues(s).Set(v)
	}
}

// SetUp records the latest probe result under its liveness label.
func SetUp(liveness string) {
	if !regOK.Load() {
		return
	}
	gatewayUp.Reset()
	v := 0.0
	if liveness == "running" {
		v = 1
	}
	gatewayUp.WithLabelValues(liveness).Set(v)
}

func IncCommand(command, result string) {
	if regOK.Load() {
		commandRuns.WithLabelValues(command, result).Inc()
	}
}
