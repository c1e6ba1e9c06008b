package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/runner"
	"github.com/harrison/orchestrator/internal/safety"
	"github.com/harrison/orchestrator/internal/worktree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommandRunner is a no-op CommandRunner: it records every command and
// each call succeeds with empty output.
type fakeCommandRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCommandRunner) Run(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()
	return "", nil
}

func newTestCore(t *testing.T, statePath string) *Core {
	t.Helper()
	wt := worktree.New(t.TempDir(), &fakeCommandRunner{}, "", nil)
	cfg := safety.DefaultConfig()
	limits := safety.NewLimits(cfg, nil)
	return New(Deps{
		Config:    cfg,
		Worktree:  wt,
		Limits:    limits,
		Runner:    &runner.NopRunner{},
		StatePath: statePath,
	})
}

func TestAddTask_AssignsSequentialIDs(t *testing.T) {
	c := newTestCore(t, "")
	t1, err := c.AddTask("First Task", "desc", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	t2, err := c.AddTask("Second Task", "desc", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "task-1", t1.ID)
	assert.Equal(t, "task-2", t2.ID)
}

func TestAddTask_RejectsCycle(t *testing.T) {
	c := newTestCore(t, "")
	a, err := c.AddTask("A", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	_, err = c.AddTask("B", "", models.PriorityNormal, "", []string{a.ID})
	require.NoError(t, err)

	// Manually wire a cycle: A depends on the task we're about to add.
	c.mu.Lock()
	a.AddDependency("task-3")
	c.mu.Unlock()

	_, err = c.AddTask("C", "", models.PriorityNormal, "", []string{"task-1"})
	require.Error(t, err)
}

func TestReadyTasks_OnlyPendingWithSatisfiedDeps(t *testing.T) {
	c := newTestCore(t, "")
	plan := c.AddPlan("Plan", "", "")
	a, err := c.AddTask("A", "", models.PriorityNormal, plan.ID, nil)
	require.NoError(t, err)
	_, err = c.AddTask("B", "", models.PriorityNormal, plan.ID, []string{a.ID})
	require.NoError(t, err)

	ready := c.ReadyTasks()
	require.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].Name)

	a.State = models.TaskCompleted
	ready = c.ReadyTasks()
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].Name)
}

func TestDeploy_CreatesWorkerAndCompletesTask(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("Build feature", "do the thing", models.PriorityNormal, "", nil)
	require.NoError(t, err)

	var sawCompleted bool
	var mu sync.Mutex
	c.OnOrchestratorEvent(func(evt OrchestratorEvent) {
		mu.Lock()
		defer mu.Unlock()
		if evt.Kind == EventTaskCompleted {
			sawCompleted = true
		}
	})

	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)
	require.NotNil(t, w)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := sawCompleted
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawCompleted)

	got, ok := c.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, models.TaskCompleted, got.State)
}

func TestDeployAll_DeploysEveryReadyTask(t *testing.T) {
	c := newTestCore(t, "")
	plan := c.AddPlan("Plan", "", "")
	_, err := c.AddTask("A", "", models.PriorityNormal, plan.ID, nil)
	require.NoError(t, err)
	_, err = c.AddTask("B", "", models.PriorityNormal, plan.ID, nil)
	require.NoError(t, err)

	errs := c.DeployAll(context.Background())
	assert.Empty(t, errs)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allTerminal := true
		c.mu.Lock()
		for _, task := range c.tasks {
			if !task.State.IsTerminal() {
				allTerminal = false
			}
		}
		c.mu.Unlock()
		if allTerminal {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, task := range c.tasks {
		assert.Equal(t, models.TaskCompleted, task.State)
	}
}

func TestDeploy_UnknownTaskNotFound(t *testing.T) {
	c := newTestCore(t, "")
	_, err := c.Deploy(context.Background(), "task-missing", "")
	require.Error(t, err)
}

func TestSendMessageToWorker_TouchesWorker(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	c.mu.Lock()
	c.workers[w.ID].worker.Status = models.WorkerIdle
	c.mu.Unlock()

	require.NoError(t, c.SendMessageToWorker(context.Background(), w.ID, "please continue"))

	got, _ := c.GetWorker(w.ID)
	assert.Equal(t, models.WorkerRunning, got.Status)
	assert.Contains(t, got.Messages, "please continue")
}

func TestSendMessageToWorker_NotFound(t *testing.T) {
	c := newTestCore(t, "")
	err := c.SendMessageToWorker(context.Background(), "missing", "hi")
	require.Error(t, err)
}

func TestHandleApproval_ResolvesPendingApproval(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	c.mu.Lock()
	c.workers[w.ID].worker.PendingApprovals["approval-1"] = &models.PendingApproval{ID: "approval-1", Question: "ok?"}
	c.mu.Unlock()

	require.NoError(t, c.HandleApproval(context.Background(), w.ID, "approval-1", true, "go ahead"))

	got, _ := c.GetWorker(w.ID)
	_, stillPending := got.PendingApprovals["approval-1"]
	assert.False(t, stillPending)
}

func TestPauseResumeWorker(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	require.NoError(t, c.PauseWorker(w.ID))
	got, _ := c.GetWorker(w.ID)
	assert.Equal(t, models.WorkerPaused, got.Status)

	require.NoError(t, c.ResumeWorker(w.ID))
	got, _ = c.GetWorker(w.ID)
	assert.Equal(t, models.WorkerRunning, got.Status)
}

func TestConcludeWorker_RemovesWithoutPush(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	require.NoError(t, c.ConcludeWorker(context.Background(), w.ID))
	_, ok := c.GetWorker(w.ID)
	assert.False(t, ok)
}

func TestCompleteWorker_PushesAndRemoves(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	require.NoError(t, c.CompleteWorker(context.Background(), w.ID, "done: T"))
	_, ok := c.GetWorker(w.ID)
	assert.False(t, ok)
}

func TestKillWorker_ReturnsTaskToPending(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	w, err := c.Deploy(context.Background(), task.ID, "")
	require.NoError(t, err)

	require.NoError(t, c.KillWorker(w.ID, true))
	_, ok := c.GetWorker(w.ID)
	assert.False(t, ok)

	got, _ := c.GetTask(task.ID)
	assert.Equal(t, models.TaskPending, got.State)
}

func TestCancelTask_NoWorkerDeployed(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)

	require.NoError(t, c.CancelTask(task.ID))
	got, _ := c.GetTask(task.ID)
	assert.Equal(t, models.TaskCancelled, got.State)
}

func TestRetryTask_ResetsToPending(t *testing.T) {
	c := newTestCore(t, "")
	task, err := c.AddTask("T", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	task.State = models.TaskFailed
	task.ErrorMessage = "boom"

	require.NoError(t, c.RetryTask(task.ID))
	got, _ := c.GetTask(task.ID)
	assert.Equal(t, models.TaskPending, got.State)
	assert.Empty(t, got.ErrorMessage)
}

func TestPersistence_FlushAndRestore(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	c := newTestCore(t, statePath)
	_, err := c.AddTask("Persisted task", "", models.PriorityNormal, "", nil)
	require.NoError(t, err)
	c.Flush()

	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "persisted-task"))

	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, stateVersion, snap.Version)

	restored := newTestCore(t, statePath)
	require.NoError(t, restored.Restore())
	tasks := restored.ReadyTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "persisted-task", tasks[0].Name)
}
