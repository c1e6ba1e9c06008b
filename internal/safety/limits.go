package safety

import (
	"sync"
	"time"

	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/orcherrors"
)

// workerCounters tracks the per-worker bookkeeping the Rate/Total/Parallel
// predicates consult: a sliding window of spawn timestamps, the lifetime
// sub-task count, and the currently-running count.
type workerCounters struct {
	spawnTimes []time.Time
	total      int
	running    int
}

// EmergencyStopScope names what emergencyStop cancels.
type EmergencyStopScope string

const (
	ScopeSubTask EmergencyStopScope = "subtask"
	ScopeWorker  EmergencyStopScope = "worker"
	ScopePlan    EmergencyStopScope = "plan"
	ScopeGlobal  EmergencyStopScope = "global"
)

// EmergencyStopListener is invoked after emergencyStop cancels its targets.
type EmergencyStopListener func(scope EmergencyStopScope, id string, subTaskIDs []string)

// CancelFunc cancels a running sub-task; SafetyLimits does not own
// execution, so it calls back into whatever does (subtaskmgr) to perform
// the actual cancellation.
type CancelFunc func(subTaskID string) error

// Limits implements C4: admission control, ancestry-based cycle detection,
// cost accounting, and emergency-stop, evaluated in the fixed predicate
// order spec.md §4.4 requires.
type Limits struct {
	mu       sync.Mutex
	cfg      Config
	counters map[string]*workerCounters // workerID -> counters
	// runningByWorker/runningByPlan index currently-running sub-task ids for
	// emergencyStop's scope resolution.
	runningByWorker map[string]map[string]bool
	runningByPlan   map[string]map[string]bool

	Ancestry *AncestryStore
	Cost     *CostAccount

	onEmergencyStop EmergencyStopListener
	cancel          CancelFunc
}

// NewLimits constructs a Limits evaluator. cancel is called by EmergencyStop
// for every sub-task id it cancels.
func NewLimits(cfg Config, cancel CancelFunc) *Limits {
	return &Limits{
		cfg:             cfg,
		counters:        make(map[string]*workerCounters),
		runningByWorker: make(map[string]map[string]bool),
		runningByPlan:   make(map[string]map[string]bool),
		Ancestry:        NewAncestryStore(),
		Cost:            NewCostAccount(nil),
		cancel:          cancel,
	}
}

// OnEmergencyStop registers the listener fired after an emergency stop.
func (l *Limits) OnEmergencyStop(fn EmergencyStopListener) { l.onEmergencyStop = fn }

func (l *Limits) counterFor(workerID string) *workerCounters {
	wc, ok := l.counters[workerID]
	if !ok {
		wc = &workerCounters{}
		l.counters[workerID] = wc
	}
	return wc
}

// AdmitOpts bundles what CheckAdmission needs to evaluate all five
// predicates for one candidate sub-task.
type AdmitOpts struct {
	WorkerID         string
	PlanID           string
	ParentDepth      int
	SpawnContext     models.SpawnContext
	ParentSubTaskID  string
	AgentType        string
	Prompt           string
}

// CheckAdmission runs the depth, rate, total, parallel, and cycle
// predicates in order, short-circuiting on the first rejection. Returns nil
// on admission.
func (l *Limits) CheckAdmission(opts AdmitOpts) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Depth
	maxDepth := l.cfg.MaxDepth(opts.SpawnContext)
	if opts.ParentDepth >= maxDepth {
		return &orcherrors.DepthLimitExceeded{Context: string(opts.SpawnContext), Current: opts.ParentDepth, Max: maxDepth}
	}

	wc := l.counterFor(opts.WorkerID)

	// 2. Rate: sliding window of spawn timestamps
	now := time.Now()
	window := l.cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	wc.spawnTimes = pruneOlderThan(wc.spawnTimes, now.Add(-window))
	if l.cfg.SpawnsPerMinute > 0 && len(wc.spawnTimes) >= l.cfg.SpawnsPerMinute {
		return &orcherrors.RateLimitExceeded{WorkerID: opts.WorkerID, Window: int(window.Seconds()), Limit: l.cfg.SpawnsPerMinute}
	}

	// 3. Total
	if l.cfg.MaxSubTasksPerWorker > 0 && wc.total >= l.cfg.MaxSubTasksPerWorker {
		return &orcherrors.TotalLimitExceeded{WorkerID: opts.WorkerID, Count: wc.total, Limit: l.cfg.MaxSubTasksPerWorker}
	}

	// 4. Parallel
	if l.cfg.MaxParallelSubTasks > 0 && wc.running >= l.cfg.MaxParallelSubTasks {
		return &orcherrors.ParallelLimitExceeded{WorkerID: opts.WorkerID, Running: wc.running, Limit: l.cfg.MaxParallelSubTasks}
	}

	// 5. Cycle
	promptHash := PromptHash(opts.Prompt)
	if l.Ancestry.HasCycle(opts.ParentSubTaskID, opts.AgentType, promptHash) {
		return &orcherrors.CycleDetected{AgentType: opts.AgentType, PromptHash: promptHash}
	}

	return nil
}

// RecordSpawn updates the counters after a sub-task is successfully
// admitted and created: bumps the rate window, total, and running counts,
// and indexes it for emergency-stop scope resolution.
func (l *Limits) RecordSpawn(workerID, planID, subTaskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wc := l.counterFor(workerID)
	wc.spawnTimes = append(wc.spawnTimes, time.Now())
	wc.total++
	wc.running++

	if l.runningByWorker[workerID] == nil {
		l.runningByWorker[workerID] = make(map[string]bool)
	}
	l.runningByWorker[workerID][subTaskID] = true

	if l.runningByPlan[planID] == nil {
		l.runningByPlan[planID] = make(map[string]bool)
	}
	l.runningByPlan[planID][subTaskID] = true
}

// RecordTerminal decrements the running count when a sub-task reaches a
// terminal state, and drops its emergency-stop indexing.
func (l *Limits) RecordTerminal(workerID, planID, subTaskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if wc, ok := l.counters[workerID]; ok && wc.running > 0 {
		wc.running--
	}
	delete(l.runningByWorker[workerID], subTaskID)
	delete(l.runningByPlan[planID], subTaskID)

	l.Ancestry.Remove(subTaskID)
}

// ResetWorker clears a worker's counters and ancestry, e.g. on worker reset.
func (l *Limits) ResetWorker(workerID string) {
	l.mu.Lock()
	delete(l.counters, workerID)
	delete(l.runningByWorker, workerID)
	l.mu.Unlock()
	l.Ancestry.Reset(workerID)
	l.Cost.ResetWorker(workerID)
}

// PruneExpired drops rate-window entries older than RateWindow for every
// worker. Invoked by the cron sweep in sweep.go.
func (l *Limits) PruneExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.cfg.RateWindow)
	for _, wc := range l.counters {
		wc.spawnTimes = pruneOlderThan(wc.spawnTimes, cutoff)
	}
}

// EmergencyStop cancels the sub-tasks identified by scope and fires
// onEmergencyStop with the ids it cancelled.
func (l *Limits) EmergencyStop(scope EmergencyStopScope, id string) []string {
	l.mu.Lock()
	var ids []string
	switch scope {
	case ScopeSubTask:
		ids = []string{id}
	case ScopeWorker:
		for stID := range l.runningByWorker[id] {
			ids = append(ids, stID)
		}
	case ScopePlan:
		for stID := range l.runningByPlan[id] {
			ids = append(ids, stID)
		}
	case ScopeGlobal:
		for _, m := range l.runningByWorker {
			for stID := range m {
				ids = append(ids, stID)
			}
		}
	}
	l.mu.Unlock()

	for _, stID := range ids {
		if l.cancel != nil {
			_ = l.cancel(stID)
		}
	}
	if l.onEmergencyStop != nil {
		l.onEmergencyStop(scope, id, ids)
	}
	return ids
}

func pruneOlderThan(times []time.Time, cutoff time.Time) []time.Time {
	out := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
