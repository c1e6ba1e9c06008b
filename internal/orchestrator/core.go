// Package orchestrator implements C8, OrchestratorCore: the top-level
// plan/task/worker state machine that ties together the queue (C1/C2),
// state machine (C3), safety limits (C4), worktree coordinator (C5),
// health monitor (C6), and sub-task manager (C7) built in the sibling
// packages. It is grounded in the teacher's executor package: the same
// mutex-guarded shared-state model, goroutine-per-unit-of-work concurrency,
// and debounced JSON persistence, retargeted from "run a plan file's waves"
// to "run a hierarchical plan/task/worker/sub-task graph."
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/orchestrator/internal/health"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/orcherrors"
	"github.com/harrison/orchestrator/internal/runner"
	"github.com/harrison/orchestrator/internal/safety"
	"github.com/harrison/orchestrator/internal/statemachine"
	"github.com/harrison/orchestrator/internal/subtaskmgr"
	"github.com/harrison/orchestrator/internal/worktree"
)

// workerEntry bundles a deployed Worker with the machinery tracking its
// in-flight run: the task's state machine and the cancellation function for
// its ModelRunner invocation.
type workerEntry struct {
	worker  *models.Worker
	machine *statemachine.Machine
	cancel  context.CancelFunc
}

// Core implements OrchestratorCore. All mutable state is guarded by mu,
// matching the teacher's single-lock-per-shared-map discipline.
type Core struct {
	mu sync.Mutex

	plans        []*models.Plan
	tasks        []*models.Task
	workers      map[string]*workerEntry
	nextTaskID   int
	nextPlanID   int
	activePlanID string

	cfg        safety.Config
	worktree   *worktree.Coordinator
	limits     *safety.Limits
	subtasks   *subtaskmgr.Manager
	health     *health.Monitor
	runner     runner.ModelRunner
	log        logger.Logger
	bus        Bus

	statePath    string
	persistTimer *time.Timer

	onDidChangeWorkers WorkersListener
	onOrchestratorEvent EventListener
}

// Deps bundles Core's collaborators.
type Deps struct {
	Config     safety.Config
	Worktree   *worktree.Coordinator
	Limits     *safety.Limits
	SubTasks   *subtaskmgr.Manager
	Health     *health.Monitor
	Runner     runner.ModelRunner
	Log        logger.Logger
	StatePath  string // "" disables persistence
}

// New constructs a Core. New does not connect safety.Limits to Core: Limits
// receives its CancelFunc only through safety.NewLimits, and has no setter
// to bind one after construction, so EmergencyStop cancels whatever that
// CancelFunc cancels (nothing, when it is nil).
func New(deps Deps) *Core {
	return &Core{
		workers:   make(map[string]*workerEntry),
		cfg:       deps.Config,
		worktree:  deps.Worktree,
		limits:    deps.Limits,
		subtasks:  deps.SubTasks,
		health:    deps.Health,
		runner:    deps.Runner,
		log:       deps.Log,
		statePath: deps.StatePath,
	}
}

func loggerFields(evt OrchestratorEvent) []logger.Field {
	fields := []logger.Field{}
	if evt.TaskID != "" {
		fields = append(fields, logger.F("taskId", evt.TaskID))
	}
	if evt.WorkerID != "" {
		fields = append(fields, logger.F("workerId", evt.WorkerID))
	}
	if evt.PlanID != "" {
		fields = append(fields, logger.F("planId", evt.PlanID))
	}
	if evt.Message != "" {
		fields = append(fields, logger.F("message", evt.Message))
	}
	return fields
}

// AddPlan registers a new draft Plan and returns its assigned id.
func (c *Core) AddPlan(name, description, baseBranch string) *models.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextPlanID++
	id := fmt.Sprintf("plan-%d", c.nextPlanID)
	plan := models.NewPlan(id, name, description, baseBranch)
	c.plans = append(c.plans, plan)
	if c.activePlanID == "" {
		c.activePlanID = id
	}
	c.schedulePersistLocked()
	return plan
}

func (c *Core) findPlan(id string) *models.Plan {
	for _, p := range c.plans {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Core) findTask(id string) *models.Task {
	for _, t := range c.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AddTask assigns a task-N id, sanitizes and stores the name, and rejects
// the task if it would make the dependency graph cyclic.
func (c *Core) AddTask(rawName, description string, priority models.Priority, planID string, dependencies []string) (*models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextTaskID++
	id := fmt.Sprintf("task-%d", c.nextTaskID)
	task := models.NewTask(id, rawName, description, priority)
	task.PlanID = planID
	for _, dep := range dependencies {
		task.AddDependency(dep)
	}

	candidate := append(append([]*models.Task{}, c.tasks...), task)
	if models.HasCyclicDependencies(candidate) {
		c.nextTaskID--
		return nil, &orcherrors.DependencyCycle{TaskIDs: dependencies}
	}

	c.tasks = append(c.tasks, task)
	c.schedulePersistLocked()
	c.emit(OrchestratorEvent{Kind: EventTaskQueued, TaskID: id, PlanID: planID})
	return task, nil
}

// ReadyTasks returns the pending tasks of the active plan whose
// dependencies are all completed.
func (c *Core) ReadyTasks() []*models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	var inPlan []*models.Task
	for _, t := range c.tasks {
		if t.PlanID == c.activePlanID {
			inPlan = append(inPlan, t)
		}
	}
	return models.ReadyTasks(inPlan)
}

// DeployAll deploys every ready task concurrently, up to
// cfg.MaxParallelSubTasks, mirroring the teacher's wave executor's
// semaphore-channel bounded-concurrency pattern.
func (c *Core) DeployAll(ctx context.Context) []error {
	ready := c.ReadyTasks()
	if len(ready) == 0 {
		return nil
	}

	maxConcurrency := c.cfg.MaxParallelSubTasks
	if maxConcurrency <= 0 || maxConcurrency > len(ready) {
		maxConcurrency = len(ready)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	errCh := make(chan error, len(ready))
	var wg sync.WaitGroup

	for _, task := range ready {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(t *models.Task) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if _, err := c.Deploy(ctx, t.ID, ""); err != nil {
				errCh <- err
			}
		}(task)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}

// resolveBaseBranch picks task.baseBranch, else plan.baseBranch, else the
// coordinator's detected default branch.
func (c *Core) resolveBaseBranch(ctx context.Context, task *models.Task, plan *models.Plan) (string, error) {
	if task.BaseBranch != "" {
		return task.BaseBranch, nil
	}
	if plan != nil && plan.BaseBranch != "" {
		return plan.BaseBranch, nil
	}
	return c.worktree.DetectDefaultBranch(ctx)
}

// Deploy deploys a single task: resolves its base branch, creates (or
// reuses) a worktree, constructs a running Worker, starts the ModelRunner
// asynchronously, and walks the task through pending -> queued -> running.
func (c *Core) Deploy(ctx context.Context, taskID, worktreePath string) (*models.Worker, error) {
	c.mu.Lock()
	task := c.findTask(taskID)
	if task == nil {
		c.mu.Unlock()
		return nil, &orcherrors.NotFound{Kind: "task", ID: taskID}
	}
	plan := c.findPlan(task.PlanID)
	c.mu.Unlock()

	machine := statemachine.New(taskID, task.State, c.log)
	machine.Transition(models.TaskQueued, "deploy")

	baseBranch, err := c.resolveBaseBranch(ctx, task, plan)
	if err != nil {
		c.failTask(task, machine, err)
		return nil, err
	}

	if worktreePath == "" {
		worktreePath, err = c.worktree.CreateWorktree(ctx, task.Name, baseBranch)
		if err != nil {
			c.failTask(task, machine, err)
			return nil, err
		}
	}

	machine.Transition(models.TaskRunning, "worker started")

	workerID := "worker-" + uuid.NewString()
	w := models.NewWorker(workerID, taskID, task.Name, worktreePath, baseBranch, task.PlanID, 0)

	c.mu.Lock()
	task.State = models.TaskRunning
	c.workers[workerID] = &workerEntry{worker: w, machine: machine}
	c.schedulePersistLocked()
	c.mu.Unlock()

	c.emit(OrchestratorEvent{Kind: EventTaskStarted, TaskID: taskID, WorkerID: workerID, PlanID: task.PlanID})
	c.emitWorkersChanged()

	c.startWorkerRun(ctx, task, w)
	return w, nil
}

func (c *Core) failTask(task *models.Task, machine *statemachine.Machine, err error) {
	machine.Transition(models.TaskFailed, err.Error())
	c.mu.Lock()
	task.State = models.TaskFailed
	task.ErrorMessage = err.Error()
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.emit(OrchestratorEvent{Kind: EventTaskFailed, TaskID: task.ID, PlanID: task.PlanID, Message: err.Error()})
}

// startWorkerRun launches the ModelRunner for w asynchronously and resolves
// the task's terminal state from the run's outcome.
func (c *Core) startWorkerRun(ctx context.Context, task *models.Task, w *models.Worker) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if entry, ok := c.workers[w.ID]; ok {
		entry.cancel = cancel
	}
	c.mu.Unlock()

	go func() {
		sink := make(chan runner.RunEvent, 16)
		go func() {
			for evt := range sink {
				if c.health != nil && evt.Kind == "tool_call" {
					c.health.ToolCall(w.ID, evt.ToolName)
				}
			}
		}()

		if c.health != nil {
			c.health.ExecutionStart(w.ID)
		}
		result, err := c.runner.Run(runCtx, runner.RunOptions{Prompt: buildWorkerPrompt(task, w)}, sink)
		close(sink)
		if c.health != nil {
			c.health.ExecutionEnd(w.ID)
		}

		c.mu.Lock()
		entry, ok := c.workers[w.ID]
		c.mu.Unlock()
		if !ok {
			return
		}

		if err != nil {
			if c.health != nil {
				c.health.Error(w.ID)
			}
			entry.machine.Transition(models.TaskFailed, err.Error())
			c.mu.Lock()
			task.State = models.TaskFailed
			task.ErrorMessage = err.Error()
			entry.worker.Status = models.WorkerError
			c.schedulePersistLocked()
			c.mu.Unlock()
			c.emit(OrchestratorEvent{Kind: EventWorkerError, TaskID: task.ID, WorkerID: w.ID, PlanID: task.PlanID, Message: err.Error()})
			c.emitWorkersChanged()
			return
		}

		if c.health != nil {
			c.health.Success(w.ID)
		}
		entry.machine.Transition(models.TaskCompleted, "worker completed")
		c.mu.Lock()
		task.State = models.TaskCompleted
		entry.worker.Status = models.WorkerCompleted
		c.schedulePersistLocked()
		c.mu.Unlock()
		_ = result
		c.emit(OrchestratorEvent{Kind: EventTaskCompleted, TaskID: task.ID, WorkerID: w.ID, PlanID: task.PlanID})
		c.emitWorkersChanged()
	}()
}

func buildWorkerPrompt(task *models.Task, w *models.Worker) string {
	return fmt.Sprintf("Task %s (%s) running in %s on branch %s:\n\n%s", task.ID, task.Name, w.WorktreePath, w.BranchName, task.Description)
}
