package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMetrics is one CPU and memory sample of the gateway process.
type ProcessMetrics struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

var (
	processCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cpu_percent",
		Help:      "CPU usage percentage of the gateway process.",
	})
	processMemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "memory_rss_bytes",
		Help:      "Resident memory of the gateway process.",
	})
	processNumThreads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "num_threads",
		Help:      "Number of threads of the gateway process.",
	})
	processNumFDs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "num_fds",
		Help:      "Number of file descriptors of the gateway process (Unix only).",
	})
)

func processCollectors() []prometheus.Collector {
	cs := []prometheus.Collector{processCPUPercent, processMemoryBytes, processNumThreads}
	if runtime.GOOS != "windows" {
		cs = append(cs, processNumFDs)
	}
	return cs
}

// ProcessSampler periodically samples the gateway process. pidFn returns the
// tracked PID or 0 when no gateway is tracked.
type ProcessSampler struct {
	interval time.Duration
	pidFn    func() int
	log      *slog.Logger

	mu   sync.Mutex
	last *ProcessMetrics
	proc *process.Process
}

func NewProcessSampler(interval time.Duration, pidFn func() int, log *slog.Logger) *ProcessSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProcessSampler{interval: interval, pidFn: pidFn, log: log}
}

// Run samples until ctx is cancelled.
func (s *ProcessSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample takes one sample and updates the gauges.
func (s *ProcessSampler) Sample() {
	pid := int32(s.pidFn())
	m, err := s.sample(pid)
	if err != nil {
		s.log.Debug("gateway process sample failed", "pid", pid, "error", err)
		s.reset()
		return
	}
	s.mu.Lock()
	s.last = m
	s.mu.Unlock()
	if regOK.Load() {
		processCPUPercent.Set(m.CPUPercent)
		processMemoryBytes.Set(float64(m.MemoryRSS))
		processNumThreads.Set(float64(m.NumThreads))
		if runtime.GOOS != "windows" {
			processNumFDs.Set(float64(m.NumFDs))
		}
	}
}

// Last returns the most recent sample, or nil.
func (s *ProcessSampler) Last() *ProcessMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	m := *s.last
	return &m
}

func (s *ProcessSampler) sample(pid int32) (*ProcessMetrics, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("no gateway process")
	}
	s.mu.Lock()
	// CPUPercent is computed against the previous call on the same handle.
	if s.proc == nil || s.proc.Pid != pid {
		p, err := process.NewProcess(pid)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to create process handle: %w", err)
		}
		s.proc = p
	}
	proc := s.proc
	s.mu.Unlock()

	cpu, err := proc.Percent(0)
	if err != nil {
		cpu = 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}
	m := &ProcessMetrics{
		PID:        pid,
		CPUPercent: cpu,
		MemoryRSS:  mem.RSS,
		MemoryVMS:  mem.VMS,
		Timestamp:  time.Now(),
	}
	if n, err := proc.NumThreads(); err == nil {
		m.NumThreads = n
	}
	if runtime.GOOS != "windows" {
		if n, err := proc.NumFDs(); err == nil {
			m.NumFDs = n
		}
	}
	return m, nil
}

func (s *ProcessSampler) reset() {
	s.mu.Lock()
	s.last = nil
	s.proc = nil
	s.mu.Unlock()
	if regOK.Load() {
		processCPUPercent.Set(0)
		processMemoryBytes.Set(0)
		processNumThreads.Set(0)
		processNumFDs.Set(0)
	}
}
