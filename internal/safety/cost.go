package safety

import "sync"

// ModelPricing mirrors the teacher's per-model $/1M-token pricing table,
// adapted here to price a single sub-task's usage rather than a 5-hour
// billing block.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultCostModel provides rough pricing for the model families the
// orchestrator is likely to invoke through a ModelRunner. Deployers override
// entries as needed; an unknown model id prices at zero.
func DefaultCostModel() map[string]ModelPricing {
	return map[string]ModelPricing{
		"claude-opus":   {InputPer1M: 15.0, OutputPer1M: 75.0},
		"claude-sonnet": {InputPer1M: 3.0, OutputPer1M: 15.0},
		"claude-haiku":  {InputPer1M: 0.8, OutputPer1M: 4.0},
	}
}

// UsageEntry is one sub-task's token accounting, the atomic unit fed into
// per-worker and global running totals.
type UsageEntry struct {
	WorkerID     string
	SubTaskID    string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// CostAccount accumulates per-worker and global totals across a plan's
// lifetime. Unlike the teacher's UsageBlock, there is no fixed billing
// window to roll over — a worker's total only resets via an explicit ResetWorker.
type CostAccount struct {
	mu           sync.Mutex
	costModel    map[string]ModelPricing
	perWorker    map[string]float64
	global       float64
	entries      []UsageEntry
}

// NewCostAccount builds an account using costModel for pricing. A nil
// costModel falls back to DefaultCostModel.
func NewCostAccount(costModel map[string]ModelPricing) *CostAccount {
	if costModel == nil {
		costModel = DefaultCostModel()
	}
	return &CostAccount{
		costModel: costModel,
		perWorker: make(map[string]float64),
	}
}

// Record prices and accumulates a sub-task's token usage.
func (a *CostAccount) Record(workerID, subTaskID, model string, inputTokens, outputTokens int64) UsageEntry {
	price := a.costModel[model]
	cost := float64(inputTokens)/1_000_000*price.InputPer1M + float64(outputTokens)/1_000_000*price.OutputPer1M

	entry := UsageEntry{
		WorkerID: workerID, SubTaskID: subTaskID, Model: model,
		InputTokens: inputTokens, OutputTokens: outputTokens, CostUSD: cost,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.perWorker[workerID] += cost
	a.global += cost
	a.entries = append(a.entries, entry)
	return entry
}

// WorkerTotal returns the running USD total for workerID.
func (a *CostAccount) WorkerTotal(workerID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perWorker[workerID]
}

// GlobalTotal returns the running USD total across all workers.
func (a *CostAccount) GlobalTotal() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.global
}

// ResetWorker clears workerID's running total, e.g. on worker reset.
func (a *CostAccount) ResetWorker(workerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.perWorker, workerID)
}

// ExceedsLimit reports whether workerID's total would exceed maxCostPerWorker
// (0 means unlimited).
func (a *CostAccount) ExceedsLimit(workerID string, maxCostPerWorker float64) bool {
	if maxCostPerWorker <= 0 {
		return false
	}
	return a.WorkerTotal(workerID) >= maxCostPerWorker
}
