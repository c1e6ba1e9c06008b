package models

import "time"

// WorkerStatus is the runtime status of a deployed Worker.
type WorkerStatus string

const (
	WorkerRunning         WorkerStatus = "running"
	WorkerIdle            WorkerStatus = "idle"
	WorkerWaitingApproval WorkerStatus = "waiting-approval"
	WorkerPaused          WorkerStatus = "paused"
	WorkerCompleted       WorkerStatus = "completed"
	WorkerError           WorkerStatus = "error"
)

// IsTerminal reports whether the worker has finished executing (completed
// or errored). Per the redesign note in spec.md §9, 'idle' is deliberately
// NOT terminal — only explicit completion/error signals are.
func (s WorkerStatus) IsTerminal() bool {
	return s == WorkerCompleted || s == WorkerError
}

// PendingApproval is an outstanding permission/question request a worker
// is blocked on until the client (or parent) resolves it.
type PendingApproval struct {
	ID        string
	Question  string
	CreatedAt time.Time
}

// Worker is an execution of a task inside its own worktree and branch.
type Worker struct {
	ID               string
	Name             string // == task name
	TaskRef          string // task id
	WorktreePath     string
	BranchName       string // == Name
	BaseBranch       string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	Status           WorkerStatus
	Messages         []string // ordered contents of the messages delivered to this worker
	PendingApprovals map[string]*PendingApproval
	ParentWorkerID   string // "" for root workers
	PlanID           string
	Depth            int // 0 = root, 1 = sub, 2 = sub-sub
}

// NewWorker constructs a running Worker bound to a freshly created
// worktree/branch.
func NewWorker(id, taskRef, name, worktreePath, baseBranch, planID string, depth int) *Worker {
	now := time.Now()
	return &Worker{
		ID:               id,
		Name:             name,
		TaskRef:          taskRef,
		WorktreePath:     worktreePath,
		BranchName:       name,
		BaseBranch:       baseBranch,
		CreatedAt:        now,
		LastActivityAt:   now,
		Status:           WorkerRunning,
		PendingApprovals: make(map[string]*PendingApproval),
		PlanID:           planID,
		Depth:            depth,
	}
}

// Touch records activity, clearing an idle status back to running; other
// statuses are left unchanged.
func (w *Worker) Touch() {
	w.LastActivityAt = time.Now()
	if w.Status == WorkerIdle {
		w.Status = WorkerRunning
	}
}
