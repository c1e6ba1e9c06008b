// Package models holds the orchestrator's core data types: Plan, Task,
// Worker, SubTask, QueueMessage, and AncestryEntry, together with the small
// amount of pure validation logic (name sanitization, dependency-cycle
// detection) each one needs. It deliberately carries no behavior that
// belongs to a component (queue ordering, state transitions, admission
// control) — those live in their own packages and operate on these types.
package models

import "time"

// PlanStatus is the lifecycle stage of a Plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanPaused    PlanStatus = "paused"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Plan is a named container for related tasks.
type Plan struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	BaseBranch  string // optional; "" means use the detected default branch
	Status      PlanStatus
}

// NewPlan creates a Plan in draft status.
func NewPlan(id, name, description, baseBranch string) *Plan {
	return &Plan{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		BaseBranch:  baseBranch,
		Status:      PlanDraft,
	}
}

// planTransitions encodes the allowed linear progression plus the
// active<->paused oscillation described in spec.md §3.
var planTransitions = map[PlanStatus]map[PlanStatus]bool{
	PlanDraft:     {PlanActive: true},
	PlanActive:    {PlanPaused: true, PlanCompleted: true, PlanFailed: true},
	PlanPaused:    {PlanActive: true, PlanFailed: true},
	PlanCompleted: {},
	PlanFailed:    {},
}

// CanTransition reports whether moving from the plan's current status to to
// is permitted.
func (p *Plan) CanTransition(to PlanStatus) bool {
	allowed, ok := planTransitions[p.Status]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition advances the plan's status if the transition is permitted.
// Returns false (and leaves status unchanged) otherwise.
func (p *Plan) Transition(to PlanStatus) bool {
	if !p.CanTransition(to) {
		return false
	}
	p.Status = to
	return true
}

// IsTerminal reports whether the plan has reached a status from which it
// cannot move again.
func (p *Plan) IsTerminal() bool {
	return p.Status == PlanCompleted || p.Status == PlanFailed
}

// AllTasksTerminal reports whether every non-cancelled task in tasks (which
// the caller filters to this plan's tasks) is in a terminal TaskState. A
// plan with no non-cancelled tasks is considered vacuously complete.
func AllTasksTerminal(tasks []*Task) bool {
	for _, t := range tasks {
		if t.State == TaskCancelled {
			continue
		}
		if !t.State.IsTerminal() {
			return false
		}
	}
	return true
}
