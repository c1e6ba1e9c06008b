package models

import "time"

// SpawnContext records who created a SubTask: the orchestrator itself
// (depth budget = 2) or an agent running inside a worker/sub-task
// (depth budget = 1), per spec.md §4.4.
type SpawnContext string

const (
	SpawnOrchestrator SpawnContext = "orchestrator"
	SpawnAgent        SpawnContext = "agent"
)

// ParsedAgentType is the decomposition of a raw agent-type string
// ("backend:name" | "@name" | "name") produced by package agenttype.
// It is embedded here rather than imported to avoid a models<->agenttype
// dependency cycle; agenttype.Parse returns this same shape.
type ParsedAgentType struct {
	Backend      string // "copilot" | "claude" | "cli" | "cloud" | "" (unspecified)
	AgentName    string
	SlashCommand string
}

// SubTask is work spawned recursively from a worker or from another
// sub-task, running inside the spawner's worktree (no worktree of its own).
type SubTask struct {
	ID             string
	ParentWorkerID string
	ParentTaskID   string
	PlanID         string
	WorktreePath   string // inherited from the parent worker
	BaseBranch     string

	AgentType       string
	ParsedAgentType ParsedAgentType

	Prompt         string
	ExpectedOutput string

	Depth  int // 1 = spawned by orchestrator's worker, 2 = spawned by an agent
	Status TaskState

	TargetFiles []string

	CreatedAt   time.Time
	CompletedAt time.Time

	Result       string
	ErrorMessage string

	SpawnContext         SpawnContext
	InheritedPermissions bool
	ParentSubTaskID      string // "" if spawned directly by the worker
}

// NewSubTask constructs a pending SubTask.
func NewSubTask(id, parentWorkerID, parentTaskID, planID, worktreePath, baseBranch string, depth int, spawnCtx SpawnContext) *SubTask {
	return &SubTask{
		ID:             id,
		ParentWorkerID: parentWorkerID,
		ParentTaskID:   parentTaskID,
		PlanID:         planID,
		WorktreePath:   worktreePath,
		BaseBranch:     baseBranch,
		Depth:          depth,
		Status:         TaskPending,
		CreatedAt:      time.Now(),
		SpawnContext:   spawnCtx,
	}
}

// IsTerminal reports whether the sub-task has finished.
func (s *SubTask) IsTerminal() bool {
	return s.Status.IsTerminal()
}
