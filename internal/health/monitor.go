// Package health implements C6: per-worker liveness tracking (error
// threshold, tool-call loop detection, idle detection) and a CircuitBreaker
// wrapper for individual tool invocations.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harrison/orchestrator/internal/logger"
)

// UnhealthyReason names why onWorkerUnhealthy fired.
type UnhealthyReason string

const (
	ReasonHighErrorRate UnhealthyReason = "high_error_rate"
	ReasonLooping       UnhealthyReason = "looping"
)

const loopDetectionWindow = 5

// workerState is the per-worker liveness bookkeeping.
type workerState struct {
	lastActivityAt      time.Time
	toolCallHistory     []string // bounded ring, most recent last
	consecutiveFailures int
	isIdle              bool
	executing           bool // suppresses idle firing while true
}

// Monitor implements C6's HealthMonitor half.
type Monitor struct {
	mu sync.Mutex

	errorThreshold  int
	idleTimeout     time.Duration
	checkInterval   time.Duration
	ringSize        int

	workers map[string]*workerState

	onWorkerUnhealthy func(workerID string, reason UnhealthyReason)
	onWorkerIdle      func(workerID string)

	cronSched *cron.Cron
	log       logger.Logger
}

// Config carries Monitor's tunables, defaulted per spec.md §4.6.
type Config struct {
	ErrorThreshold int           // default 5
	IdleTimeout    time.Duration // default 5m
	CheckInterval  time.Duration // default 30s
	RingSize       int           // default 5, matches loop-detection window
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{ErrorThreshold: 5, IdleTimeout: 5 * time.Minute, CheckInterval: 30 * time.Second, RingSize: loopDetectionWindow}
}

// NewMonitor constructs a Monitor from cfg.
func NewMonitor(cfg Config, log logger.Logger) *Monitor {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 5
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = loopDetectionWindow
	}
	return &Monitor{
		errorThreshold: cfg.ErrorThreshold,
		idleTimeout:    cfg.IdleTimeout,
		checkInterval:  cfg.CheckInterval,
		ringSize:       cfg.RingSize,
		workers:        make(map[string]*workerState),
		log:            log,
	}
}

// OnWorkerUnhealthy registers the unhealthy-event listener.
func (m *Monitor) OnWorkerUnhealthy(fn func(workerID string, reason UnhealthyReason)) {
	m.onWorkerUnhealthy = fn
}

// OnWorkerIdle registers the idle-event listener.
func (m *Monitor) OnWorkerIdle(fn func(workerID string)) { m.onWorkerIdle = fn }

func (m *Monitor) stateFor(workerID string) *workerState {
	ws, ok := m.workers[workerID]
	if !ok {
		ws = &workerState{lastActivityAt: time.Now()}
		m.workers[workerID] = ws
	}
	return ws
}

// Reset drops all tracked state for workerID, e.g. when the worker is
// removed from the orchestrator.
func (m *Monitor) Reset(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, workerID)
}

// ExecutionStart suppresses idle firing for workerID until ExecutionEnd.
func (m *Monitor) ExecutionStart(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.stateFor(workerID)
	ws.executing = true
	ws.lastActivityAt = time.Now()
}

// ExecutionEnd re-enables idle firing for workerID.
func (m *Monitor) ExecutionEnd(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.stateFor(workerID)
	ws.executing = false
	ws.lastActivityAt = time.Now()
}

// ToolCall records a tool invocation and checks the loop-detection window.
func (m *Monitor) ToolCall(workerID, toolName string) {
	m.mu.Lock()
	ws := m.stateFor(workerID)
	ws.lastActivityAt = time.Now()
	ws.isIdle = false

	ws.toolCallHistory = append(ws.toolCallHistory, toolName)
	if len(ws.toolCallHistory) > m.ringSize {
		ws.toolCallHistory = ws.toolCallHistory[len(ws.toolCallHistory)-m.ringSize:]
	}

	looping := len(ws.toolCallHistory) == m.ringSize && allSame(ws.toolCallHistory)
	m.mu.Unlock()

	if looping && m.onWorkerUnhealthy != nil {
		m.onWorkerUnhealthy(workerID, ReasonLooping)
	}
}

func allSame(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i] != names[0] {
			return false
		}
	}
	return true
}

// Success records a successful turn, resetting the consecutive-failure
// counter and clearing idle state.
func (m *Monitor) Success(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws := m.stateFor(workerID)
	ws.consecutiveFailures = 0
	ws.lastActivityAt = time.Now()
	ws.isIdle = false
}

// Error records a failed turn. Fires onWorkerUnhealthy{high_error_rate}
// immediately once consecutiveFailures reaches the threshold.
func (m *Monitor) Error(workerID string) {
	m.mu.Lock()
	ws := m.stateFor(workerID)
	ws.consecutiveFailures++
	ws.lastActivityAt = time.Now()
	reached := ws.consecutiveFailures >= m.errorThreshold
	m.mu.Unlock()

	if reached && m.onWorkerUnhealthy != nil {
		m.onWorkerUnhealthy(workerID, ReasonHighErrorRate)
	}
}

// IsIdle reports whether workerID is currently flagged idle.
func (m *Monitor) IsIdle(workerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workers[workerID]
	return ok && ws.isIdle
}

// CheckIdle evaluates every tracked worker against idleTimeout, firing
// onWorkerIdle for any that just crossed the threshold. Invoked by the
// ticker started in Start.
func (m *Monitor) CheckIdle() {
	now := time.Now()
	m.mu.Lock()
	var newlyIdle []string
	for id, ws := range m.workers {
		if ws.executing || ws.isIdle {
			continue
		}
		if now.Sub(ws.lastActivityAt) >= m.idleTimeout {
			ws.isIdle = true
			newlyIdle = append(newlyIdle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range newlyIdle {
		if m.onWorkerIdle != nil {
			m.onWorkerIdle(id)
		}
	}
}

// Start begins the idle-check schedule, replacing a hand-rolled
// time.Ticker loop with a cron-expression-configurable recurring job, the
// same way internal/safety.Sweeper schedules its rate-window pruning.
func (m *Monitor) Start() {
	if m.checkInterval <= 0 {
		m.checkInterval = 30 * time.Second
	}
	m.cronSched = cron.New()
	if _, err := m.cronSched.AddFunc(fmt.Sprintf("@every %s", m.checkInterval), m.CheckIdle); err != nil {
		if m.log != nil {
			m.log.Error("schedule idle check", logger.F("error", err.Error()))
		}
		return
	}
	m.cronSched.Start()
}

// Stop halts the idle-check schedule, waiting for any in-flight check to
// finish.
func (m *Monitor) Stop() {
	if m.cronSched != nil {
		ctx := m.cronSched.Stop()
		<-ctx.Done()
	}
}
