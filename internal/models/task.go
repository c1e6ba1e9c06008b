package models

import (
	"fmt"
	"strings"
)

// Priority ranks a Task or QueueMessage. Higher Rank dequeues first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// priorityRank maps a Priority to its dequeue rank: higher sorts first.
var priorityRank = map[Priority]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityNormal:   1,
	PriorityLow:      0,
}

// Rank returns this priority's numeric rank. Unknown priorities rank lowest.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// TaskState is the state-machine state shared by Task and SubTask.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskBlocked   TaskState = "blocked"
)

// IsTerminal reports whether the state cannot transition further under the
// normal (non-retry) flow.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// IsActive reports whether the state represents in-flight work.
func (s TaskState) IsActive() bool {
	return s == TaskQueued || s == TaskRunning
}

// Task is a unit of work that may depend on other tasks and, once
// deployed, runs inside its own Worker/worktree.
type Task struct {
	ID              string
	Name            string // sanitized, branch-safe, <=50 chars
	Description     string
	Priority        Priority
	Dependencies    map[string]bool // set of task ids
	PlanID          string           // "" = ad-hoc task
	BaseBranch      string           // "" = inherit from plan / detected default
	ModelID         string           // ""  = use default
	AgentType       string           // ""  = use default
	TargetFiles     []string
	State           TaskState
	ErrorMessage    string
	ParentWorkerID  string // "" if this task was not spawned by a worker
}

// NewTask constructs a Task with a sanitized name and an empty dependency
// set. priority defaults to PriorityNormal if empty.
func NewTask(id, rawName, description string, priority Priority) *Task {
	if priority == "" {
		priority = PriorityNormal
	}
	return &Task{
		ID:           id,
		Name:         SanitizeTaskName(rawName),
		Description:  description,
		Priority:     priority,
		Dependencies: make(map[string]bool),
		State:        TaskPending,
	}
}

// SanitizeTaskName mirrors the branch-name sanitization rule used by the
// worktree coordinator (spec.md §4.5): lowercase, replace any character
// outside [a-z0-9-] with '-', collapse runs of '-', trim leading/trailing
// '-', truncate to 50 characters. Task.Name and the eventual branch name
// are the same sanitized string, so this lives alongside Task rather than
// duplicated in the worktree package.
func SanitizeTaskName(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	prevDash := false
	for _, r := range lower {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if ok {
			b.WriteRune(r)
			prevDash = r == '-'
		} else if !prevDash {
			b.WriteRune('-')
			prevDash = true
		}
	}
	result := strings.Trim(b.String(), "-")
	// collapse any remaining run of dashes left by the trim
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	if len(result) > 50 {
		result = strings.Trim(result[:50], "-")
	}
	return result
}

// IsReady reports whether the task can be deployed: it must be pending and
// every dependency must be completed. completed receives the set of task
// ids currently in TaskCompleted state.
func (t *Task) IsReady(completed map[string]bool) bool {
	if t.State != TaskPending {
		return false
	}
	for dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// AddDependency records dep as a prerequisite of t.
func (t *Task) AddDependency(dep string) {
	if t.Dependencies == nil {
		t.Dependencies = make(map[string]bool)
	}
	t.Dependencies[dep] = true
}

// HasCyclicDependencies detects circular dependencies among tasks using DFS
// with white/gray/black color marking, the same algorithm the teacher uses
// in models/task.go for plan-file dependency validation, adapted from
// []string DependsOn to the map[string]bool Dependencies set used here.
func HasCyclicDependencies(tasks []*Task) bool {
	graph := make(map[string][]string) // prerequisite -> dependents
	known := make(map[string]bool)

	for _, t := range tasks {
		known[t.ID] = true
		if _, ok := graph[t.ID]; !ok {
			graph[t.ID] = nil
		}
	}

	for _, t := range tasks {
		for dep := range t.Dependencies {
			if dep == t.ID {
				return true
			}
			if known[dep] {
				graph[dep] = append(graph[dep], t.ID)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(known))

	var dfs func(string) bool
	dfs = func(node string) bool {
		color[node] = gray
		for _, next := range graph[node] {
			if color[next] == gray {
				return true
			}
			if color[next] == white && dfs(next) {
				return true
			}
		}
		color[node] = black
		return false
	}

	for id := range known {
		if color[id] == white {
			if dfs(id) {
				return true
			}
		}
	}
	return false
}

// ReadyTasks returns the subset of tasks that are ready to deploy: pending
// with every dependency completed (spec.md §8 property 8).
func ReadyTasks(tasks []*Task) []*Task {
	completed := make(map[string]bool)
	for _, t := range tasks {
		if t.State == TaskCompleted {
			completed[t.ID] = true
		}
	}

	var ready []*Task
	for _, t := range tasks {
		if t.IsReady(completed) {
			ready = append(ready, t)
		}
	}
	return ready
}

// Validate checks the required fields of a Task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	return nil
}
