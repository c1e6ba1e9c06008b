// Package statemachine implements the Task/SubTask transition table shared
// by C3: a fixed set of legal moves, a recorded history, and a lenient
// forceState escape hatch for recovery paths.
package statemachine

import (
	"sync"
	"time"

	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
)

// transitions encodes the table from spec.md §4.3. A state mapping to
// itself is the documented no-op entry (e.g. pending -> pending).
var transitions = map[models.TaskState]map[models.TaskState]bool{
	models.TaskPending: {
		models.TaskPending:   true,
		models.TaskQueued:    true,
		models.TaskRunning:   true,
		models.TaskCancelled: true,
	},
	models.TaskQueued: {
		models.TaskQueued:    true,
		models.TaskRunning:   true,
		models.TaskFailed:    true,
		models.TaskCancelled: true,
	},
	models.TaskRunning: {
		models.TaskRunning:   true,
		models.TaskCompleted: true,
		models.TaskFailed:    true,
		models.TaskCancelled: true,
	},
	models.TaskCompleted: {
		models.TaskCompleted: true,
	},
	models.TaskFailed: {
		models.TaskFailed:  true,
		models.TaskPending: true, // retry
	},
	models.TaskCancelled: {
		models.TaskCancelled: true,
		models.TaskPending:   true, // retry
	},
}

// Transition is one recorded move in a machine's history.
type Transition struct {
	From   models.TaskState
	To     models.TaskState
	Reason string
	At     time.Time
	Forced bool
}

// Machine tracks one Task/SubTask's current state and transition history.
type Machine struct {
	mu      sync.Mutex
	subject string // task or sub-task id, for log context
	state   models.TaskState
	history []Transition
	log     logger.Logger
}

// New constructs a Machine starting in initial.
func New(subject string, initial models.TaskState, log logger.Logger) *Machine {
	return &Machine{subject: subject, state: initial, log: log}
}

// State returns the current state.
func (m *Machine) State() models.TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the recorded transitions.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// CanTransition reports whether moving from the current state to to is
// permitted by the table.
func (m *Machine) CanTransition(to models.TaskState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canTransitionLocked(to)
}

func (m *Machine) canTransitionLocked(to models.TaskState) bool {
	allowed, ok := transitions[m.state]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition attempts to move to the given state, recording reason.
// Returns false (and logs) on an invalid request without changing state.
func (m *Machine) Transition(to models.TaskState, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canTransitionLocked(to) {
		if m.log != nil {
			m.log.Warn("invalid state transition",
				logger.F("subject", m.subject), logger.F("from", m.state), logger.F("to", to), logger.F("reason", reason))
		}
		return false
	}

	from := m.state
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, Reason: reason, At: time.Now()})
	return true
}

// ForceState bypasses the transition table entirely. Always logged at warn.
func (m *Machine) ForceState(to models.TaskState, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	m.state = to
	m.history = append(m.history, Transition{From: from, To: to, Reason: reason, At: time.Now(), Forced: true})
	if m.log != nil {
		m.log.Warn("forced state transition", logger.F("subject", m.subject), logger.F("from", from), logger.F("to", to), logger.F("reason", reason))
	}
}

// IsTerminal reports whether the current state is completed/failed/cancelled.
func (m *Machine) IsTerminal() bool {
	return m.State().IsTerminal()
}

// IsActive reports whether the current state is queued/running.
func (m *Machine) IsActive() bool {
	return m.State().IsActive()
}
