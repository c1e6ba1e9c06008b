// Package subtaskmgr implements C7: sub-task lifecycle, admission control
// (delegated to safety.Limits), file-conflict detection grounded in the
// teacher's executor.PackageGuard (same-resource-overlap check, generalized
// from Go package paths to normalized target-file paths), and the
// ModelRunner invocation boundary.
package subtaskmgr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/orcherrors"
	"github.com/harrison/orchestrator/internal/runner"
	"github.com/harrison/orchestrator/internal/safety"
	"github.com/harrison/orchestrator/internal/statemachine"
)

// entry bundles one tracked sub-task with its state machine and the
// cancellation func for its in-flight execution, if any.
type entry struct {
	subTask *models.SubTask
	machine *statemachine.Machine
	cancel  context.CancelFunc
}

// ChangeListener is invoked whenever a sub-task's fields or status change.
type ChangeListener func(st *models.SubTask)

// CompletionListener is invoked once a sub-task reaches a terminal state.
type CompletionListener func(st *models.SubTask)

// Manager implements C7's public contract.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	limits *safety.Limits
	runner runner.ModelRunner
	log    logger.Logger

	onDidChangeSubTask   ChangeListener
	onDidCompleteSubTask CompletionListener
}

// New constructs a Manager. limits performs admission control; r executes
// sub-tasks.
func New(limits *safety.Limits, r runner.ModelRunner, log logger.Logger) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		limits:  limits,
		runner:  r,
		log:     log,
	}
}

// OnDidChangeSubTask registers the change listener.
func (m *Manager) OnDidChangeSubTask(fn ChangeListener) { m.onDidChangeSubTask = fn }

// OnDidCompleteSubTask registers the completion listener.
func (m *Manager) OnDidCompleteSubTask(fn CompletionListener) { m.onDidCompleteSubTask = fn }

// CreateOpts bundles the inputs to CreateSubTask.
type CreateOpts struct {
	ParentWorkerID  string
	ParentTaskID    string
	PlanID          string
	WorktreePath    string
	BaseBranch      string
	AgentType       string
	ParsedAgentType models.ParsedAgentType
	Prompt          string
	ExpectedOutput  string
	TargetFiles     []string
	ParentDepth     int
	SpawnContext    models.SpawnContext
	ParentSubTaskID string
}

func (m *Manager) notifyChange(st *models.SubTask) {
	if m.onDidChangeSubTask != nil {
		m.onDidChangeSubTask(st)
	}
}

func (m *Manager) notifyComplete(st *models.SubTask) {
	if m.onDidCompleteSubTask != nil {
		m.onDidCompleteSubTask(st)
	}
}

// CreateSubTask runs all C4 admission predicates in order; on success it
// assigns an id, records ancestry, and constructs a pending SubTask with its
// own state machine.
func (m *Manager) CreateSubTask(opts CreateOpts) (*models.SubTask, error) {
	if err := m.limits.CheckAdmission(safety.AdmitOpts{
		WorkerID:        opts.ParentWorkerID,
		PlanID:          opts.PlanID,
		ParentDepth:     opts.ParentDepth,
		SpawnContext:    opts.SpawnContext,
		ParentSubTaskID: opts.ParentSubTaskID,
		AgentType:       opts.AgentType,
		Prompt:          opts.Prompt,
	}); err != nil {
		return nil, err
	}

	id := "subtask-" + uuid.NewString()
	depth := opts.ParentDepth + 1

	st := models.NewSubTask(id, opts.ParentWorkerID, opts.ParentTaskID, opts.PlanID, opts.WorktreePath, opts.BaseBranch, depth, opts.SpawnContext)
	st.AgentType = opts.AgentType
	st.ParsedAgentType = opts.ParsedAgentType
	st.Prompt = opts.Prompt
	st.ExpectedOutput = opts.ExpectedOutput
	st.TargetFiles = opts.TargetFiles
	st.ParentSubTaskID = opts.ParentSubTaskID

	m.limits.Ancestry.Insert(models.AncestryEntry{
		SubTaskID:       id,
		ParentSubTaskID: opts.ParentSubTaskID,
		WorkerID:        opts.ParentWorkerID,
		PlanID:          opts.PlanID,
		AgentType:       opts.AgentType,
		PromptHash:      safety.PromptHash(opts.Prompt),
	})
	m.limits.RecordSpawn(opts.ParentWorkerID, opts.PlanID, id)

	m.mu.Lock()
	m.entries[id] = &entry{subTask: st, machine: statemachine.New(id, models.TaskPending, m.log)}
	m.mu.Unlock()

	m.notifyChange(st)
	return st, nil
}

// GetByID returns the tracked sub-task, if any.
func (m *Manager) GetByID(id string) (*models.SubTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.subTask, true
}

// CheckFileConflicts normalizes targetFiles (lowercase, forward slashes)
// and returns the ids of currently-running sub-tasks whose own targetFiles
// intersect, excluding excludeID.
func (m *Manager) CheckFileConflicts(targetFiles []string, excludeID string) []string {
	normalized := normalizeFiles(targetFiles)
	if len(normalized) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var conflicts []string
	for id, e := range m.entries {
		if id == excludeID || e.subTask.Status != models.TaskRunning {
			continue
		}
		for _, f := range normalizeFiles(e.subTask.TargetFiles) {
			if normalized[f] {
				conflicts = append(conflicts, id)
				break
			}
		}
	}
	return conflicts
}

func normalizeFiles(files []string) map[string]bool {
	out := make(map[string]bool, len(files))
	for _, f := range files {
		out[strings.ToLower(filepath.ToSlash(f))] = true
	}
	return out
}

// ExecuteSubTask checks file conflicts, transitions the sub-task to
// running, invokes the ModelRunner with the constructed prompt, and sets
// its final status on return. maxDepth parameterizes the spawn-policy
// clause in the prompt (depth < maxDepth).
func (m *Manager) ExecuteSubTask(ctx context.Context, id string, maxDepth int) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return &orcherrors.NotFound{Kind: "subtask", ID: id}
	}
	st := e.subTask

	if conflicts := m.CheckFileConflicts(st.TargetFiles, id); len(conflicts) > 0 {
		return &orcherrors.FileConflict{ConflictingTaskIDs: conflicts, Files: st.TargetFiles}
	}

	e.machine.Transition(models.TaskRunning, "execution started")
	st.Status = models.TaskRunning
	m.notifyChange(st)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	e.cancel = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		e.cancel = nil
		m.mu.Unlock()
		m.limits.RecordTerminal(st.ParentWorkerID, st.PlanID, id)

		// Finalizer: a run that returns without reaching a terminal status
		// (a ModelRunner bug, a panic recovered elsewhere) must still notify
		// parents rather than leave the sub-task stuck running.
		if !st.Status.IsTerminal() {
			e.machine.ForceState(models.TaskFailed, "execution completed unexpectedly")
			st.Status = models.TaskFailed
			st.ErrorMessage = "execution completed unexpectedly"
			st.CompletedAt = time.Now()
			m.notifyChange(st)
			m.notifyComplete(st)
		}
	}()

	prompt := BuildPrompt(st, maxDepth)
	sink := make(chan runner.RunEvent, 16)
	go func() {
		for range sink {
			// Tool-call/token events are consumed here; callers that need
			// liveness tracking wire a health.Monitor at the call site via
			// their own sink forwarding, kept out of this package to avoid
			// a subtaskmgr -> health dependency for a cross-cutting concern.
		}
	}()

	result, err := m.runner.Run(runCtx, runner.RunOptions{Prompt: prompt}, sink)
	close(sink)

	if err != nil {
		if runCtx.Err() == context.Canceled {
			e.machine.Transition(models.TaskCancelled, "execution cancelled")
			st.Status = models.TaskCancelled
			st.Result = "cancelled"
		} else if infraErr, isInfra := err.(*orcherrors.InfrastructureError); isInfra {
			e.machine.Transition(models.TaskFailed, "infrastructure error")
			st.Status = models.TaskFailed
			st.ErrorMessage = infraErr.Error()
		} else {
			e.machine.Transition(models.TaskFailed, "execution error")
			st.Status = models.TaskFailed
			st.ErrorMessage = fmt.Sprintf("sub-task execution failed: %v", err)
		}
		st.CompletedAt = time.Now()
		m.notifyChange(st)
		m.notifyComplete(st)
		return nil
	}

	e.machine.Transition(models.TaskCompleted, "execution completed")
	st.Status = models.TaskCompleted
	st.CompletedAt = time.Now()
	if result != nil {
		st.Result = string(result.RawOutput)
	}
	m.notifyChange(st)
	m.notifyComplete(st)
	return nil
}

// UpdateStatus validates the transition via the state machine; an invalid
// transition is logged but still applied, for backward compatibility with
// callers that set status directly.
func (m *Manager) UpdateStatus(id string, status models.TaskState, result string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return &orcherrors.NotFound{Kind: "subtask", ID: id}
	}

	if !e.machine.Transition(status, "updateStatus") {
		e.machine.ForceState(status, "updateStatus (invalid transition, proceeding)")
	}

	e.subTask.Status = status
	if result != "" {
		e.subTask.Result = result
	}
	if status.IsTerminal() {
		e.subTask.CompletedAt = time.Now()
	}

	m.notifyChange(e.subTask)
	if status.IsTerminal() {
		m.notifyComplete(e.subTask)
	}
	return nil
}

// CancelSubTask cancels the in-flight execution token (if any) and
// transitions the sub-task to cancelled.
func (m *Manager) CancelSubTask(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return &orcherrors.NotFound{Kind: "subtask", ID: id}
	}

	m.mu.Lock()
	cancel := e.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		return nil // ExecuteSubTask's own error path finalizes status
	}

	if !e.machine.Transition(models.TaskCancelled, "cancelled before execution") {
		e.machine.ForceState(models.TaskCancelled, "cancelled before execution")
	}
	e.subTask.Status = models.TaskCancelled
	e.subTask.Result = "cancelled"
	e.subTask.CompletedAt = time.Now()
	m.limits.RecordTerminal(e.subTask.ParentWorkerID, e.subTask.PlanID, id)
	m.notifyChange(e.subTask)
	m.notifyComplete(e.subTask)
	return nil
}
