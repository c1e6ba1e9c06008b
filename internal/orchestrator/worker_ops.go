package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/orcherrors"
)

// GetWorker returns the tracked worker by id.
func (c *Core) GetWorker(id string) (*models.Worker, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.workers[id]
	if !ok {
		return nil, false
	}
	return e.worker, true
}

// GetTask returns the tracked task by id.
func (c *Core) GetTask(id string) (*models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.findTask(id)
	return t, t != nil
}

// ListWorkers returns every tracked worker, for status reporting.
func (c *Core) ListWorkers() []*models.Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Worker, 0, len(c.workers))
	for _, e := range c.workers {
		out = append(out, e.worker)
	}
	return out
}

// ListTasks returns every tracked task, for status reporting.
func (c *Core) ListTasks() []*models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// ListPlans returns every tracked plan, for status reporting.
func (c *Core) ListPlans() []*models.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Bus is the minimal MessageBus surface worker operations need: enqueueing
// a message destined for a worker or its parent. Declared here (rather than
// importing queue.MessageBus's concrete type) to keep orchestrator's
// dependency on queue narrow and mockable in tests.
type Bus interface {
	Enqueue(ctx context.Context, msg *models.QueueMessage)
}

// AttachBus wires the message bus sendMessageToWorker and handleApproval
// deliver their payload through. Optional: without it those calls still
// update in-memory worker state but do not enqueue a bus message.
func (c *Core) AttachBus(bus Bus) { c.bus = bus }

// sendMessageToWorker delivers a user clarification to a running or idle
// worker. The bus message wakes a real ModelRunner between turns; Touch
// clears any idle flag immediately so status reflects the new activity.
func (c *Core) SendMessageToWorker(ctx context.Context, workerID, content string) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	c.mu.Unlock()
	if !ok {
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}

	e.worker.Touch()
	e.worker.Messages = append(e.worker.Messages, content)

	if c.bus != nil {
		msg := models.NewQueueMessage("msg-"+uuid.NewString(), models.PriorityNormal,
			models.Owner{OwnerType: models.OwnerWorker, OwnerID: workerID}, models.MessageStatusUpdate, content)
		msg.WorkerID = workerID
		c.bus.Enqueue(ctx, msg)
	}

	c.mu.Lock()
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.emitWorkersChanged()
	return nil
}

// HandleApproval resolves workerID's pending approval approvalID with an
// approve/deny decision and optional clarification text.
func (c *Core) HandleApproval(ctx context.Context, workerID, approvalID string, approve bool, clarification string) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	if !ok {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}
	if _, exists := e.worker.PendingApprovals[approvalID]; !exists {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "pendingApproval", ID: approvalID}
	}
	delete(e.worker.PendingApprovals, approvalID)
	e.worker.Touch()
	c.schedulePersistLocked()
	c.mu.Unlock()

	if c.bus != nil {
		content := clarification
		msgType := models.MessageApprovalResponse
		msg := models.NewQueueMessage("msg-"+uuid.NewString(), models.PriorityHigh,
			models.Owner{OwnerType: models.OwnerWorker, OwnerID: workerID}, msgType, content)
		msg.WorkerID = workerID
		c.bus.Enqueue(ctx, msg)
	}

	c.emitWorkersChanged()
	return nil
}

// PauseWorker cooperatively pauses a worker: its ModelRunner is expected to
// observe the paused status between turns.
func (c *Core) PauseWorker(workerID string) error {
	return c.setWorkerStatus(workerID, models.WorkerPaused)
}

// ResumeWorker clears a cooperative pause.
func (c *Core) ResumeWorker(workerID string) error {
	return c.setWorkerStatus(workerID, models.WorkerRunning)
}

func (c *Core) setWorkerStatus(workerID string, status models.WorkerStatus) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	if !ok {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}
	e.worker.Status = status
	e.worker.LastActivityAt = time.Now()
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.emitWorkersChanged()
	return nil
}

// InterruptWorker cancels the current turn's token without changing the
// worker's terminal state, leaving it free to receive a new message.
func (c *Core) InterruptWorker(workerID string) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	if !ok {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}
	cancel := e.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// ConcludeWorker discards a worker without pushing, typical when the user
// abandons the work: it cancels the run and drops the worker from the map.
// The worker's worktree directory and branch are not removed.
func (c *Core) ConcludeWorker(ctx context.Context, workerID string) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	if !ok {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}
	cancel := e.cancel
	delete(c.workers, workerID)
	c.schedulePersistLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.health != nil {
		c.health.Reset(workerID)
	}
	if c.log != nil {
		c.log.Info("worker concluded without push", logger.F("workerId", workerID))
	}
	c.emitWorkersChanged()
	return nil
}

// CompleteWorker finalizes a worker via the worktree coordinator (commit,
// push, remove) and removes it from the workers map on success. A push
// failure is reported but the worker is kept in completed state so the user
// can retry the push.
func (c *Core) CompleteWorker(ctx context.Context, workerID, commitMessage string) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	c.mu.Unlock()
	if !ok {
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}

	if err := c.worktree.CompletePush(ctx, e.worker.WorktreePath, e.worker.BranchName, commitMessage); err != nil {
		c.mu.Lock()
		e.worker.Status = models.WorkerCompleted
		c.schedulePersistLocked()
		c.mu.Unlock()
		if c.log != nil {
			c.log.Warn("worker completed but push failed; retry available", logger.F("workerId", workerID), logger.F("error", err))
		}
		c.emitWorkersChanged()
		return err
	}

	c.mu.Lock()
	delete(c.workers, workerID)
	c.schedulePersistLocked()
	c.mu.Unlock()
	if c.health != nil {
		c.health.Reset(workerID)
	}
	c.emitWorkersChanged()
	return nil
}

// KillWorker cancels a worker's run and removes it from the workers map.
// When returnTaskToPending is true, the associated task is reset to
// pending so it can be retried.
func (c *Core) KillWorker(workerID string, returnTaskToPending bool) error {
	c.mu.Lock()
	e, ok := c.workers[workerID]
	if !ok {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "worker", ID: workerID}
	}
	cancel := e.cancel
	taskRef := e.worker.TaskRef
	delete(c.workers, workerID)

	if returnTaskToPending {
		if task := c.findTask(taskRef); task != nil {
			task.State = models.TaskPending
		}
	}
	c.schedulePersistLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.health != nil {
		c.health.Reset(workerID)
	}
	c.emitWorkersChanged()
	return nil
}

// CancelTask cancels a pending or running task: if a worker has been
// deployed for it, the worker is killed (without retry); otherwise the task
// itself is marked cancelled.
func (c *Core) CancelTask(taskID string) error {
	c.mu.Lock()
	task := c.findTask(taskID)
	if task == nil {
		c.mu.Unlock()
		return &orcherrors.NotFound{Kind: "task", ID: taskID}
	}
	var workerID string
	for id, e := range c.workers {
		if e.worker.TaskRef == taskID {
			workerID = id
			break
		}
	}
	task.State = models.TaskCancelled
	c.schedulePersistLocked()
	c.mu.Unlock()

	if workerID != "" {
		return c.KillWorker(workerID, false)
	}
	return nil
}

// RetryTask re-queues a failed or cancelled task by resetting it to
// pending; the next DeployAll/Deploy call picks it up.
func (c *Core) RetryTask(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	task := c.findTask(taskID)
	if task == nil {
		return &orcherrors.NotFound{Kind: "task", ID: taskID}
	}
	task.State = models.TaskPending
	task.ErrorMessage = ""
	c.schedulePersistLocked()
	return nil
}
