package orchestrator

// OrchestratorEventKind enumerates the typed events OrchestratorCore emits,
// per spec.md §4.8: task.queued/started/completed/failed, worker.idle/
// error, plan.started/paused/resumed/completed.
type OrchestratorEventKind string

const (
	EventTaskQueued     OrchestratorEventKind = "task.queued"
	EventTaskStarted    OrchestratorEventKind = "task.started"
	EventTaskCompleted  OrchestratorEventKind = "task.completed"
	EventTaskFailed     OrchestratorEventKind = "task.failed"
	EventWorkerIdle     OrchestratorEventKind = "worker.idle"
	EventWorkerError    OrchestratorEventKind = "worker.error"
	EventPlanStarted    OrchestratorEventKind = "plan.started"
	EventPlanPaused     OrchestratorEventKind = "plan.paused"
	EventPlanResumed    OrchestratorEventKind = "plan.resumed"
	EventPlanCompleted  OrchestratorEventKind = "plan.completed"
)

// OrchestratorEvent is one typed, loggable occurrence.
type OrchestratorEvent struct {
	Kind     OrchestratorEventKind
	TaskID   string
	WorkerID string
	PlanID   string
	Message  string
}

// WorkersListener is the coarse "something about the workers map changed"
// notification; subscribers re-read the workers they care about.
type WorkersListener func()

// EventListener receives every typed OrchestratorEvent.
type EventListener func(evt OrchestratorEvent)

func (c *Core) emitWorkersChanged() {
	if c.onDidChangeWorkers != nil {
		c.onDidChangeWorkers()
	}
}

func (c *Core) emit(evt OrchestratorEvent) {
	if c.log != nil {
		c.log.Info(string(evt.Kind), loggerFields(evt)...)
	}
	if c.onOrchestratorEvent != nil {
		c.onOrchestratorEvent(evt)
	}
}

// OnDidChangeWorkers registers the coarse workers-changed listener.
func (c *Core) OnDidChangeWorkers(fn WorkersListener) { c.onDidChangeWorkers = fn }

// OnOrchestratorEvent registers the typed event listener.
func (c *Core) OnOrchestratorEvent(fn EventListener) { c.onOrchestratorEvent = fn }
