package orchestrator

import (
	"encoding/json"
	"os"
	"time"

	"github.com/harrison/orchestrator/internal/filelock"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/statemachine"
)

// stateVersion is the current on-disk snapshot format, per spec.md §6.
const stateVersion = 2

const persistDebounce = 500 * time.Millisecond

// snapshot is the JSON shape written to
// "<workspace>/.copilot-orchestrator-state.json".
type snapshot struct {
	Version      int                  `json:"version"`
	Plans        []*models.Plan       `json:"plans"`
	Tasks        []*models.Task       `json:"tasks"`
	Workers      []*models.Worker     `json:"workers"`
	NextTaskID   int                  `json:"nextTaskId"`
	NextPlanID   int                  `json:"nextPlanId"`
	ActivePlanID string               `json:"activePlanId"`
}

// schedulePersistLocked (re)arms the debounce timer. Callers must hold mu.
func (c *Core) schedulePersistLocked() {
	if c.statePath == "" {
		return
	}
	if c.persistTimer != nil {
		c.persistTimer.Stop()
	}
	c.persistTimer = time.AfterFunc(persistDebounce, c.persistNow)
}

func (c *Core) persistNow() {
	c.mu.Lock()
	snap := c.buildSnapshotLocked()
	c.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		if c.log != nil {
			c.log.Error("failed to marshal orchestrator state", logger.F("error", err))
		}
		return
	}
	if err := filelock.LockAndWrite(c.statePath, data); err != nil {
		if c.log != nil {
			c.log.Error("failed to persist orchestrator state", logger.F("path", c.statePath), logger.F("error", err))
		}
	}
}

func (c *Core) buildSnapshotLocked() snapshot {
	workers := make([]*models.Worker, 0, len(c.workers))
	for _, e := range c.workers {
		workers = append(workers, e.worker)
	}
	return snapshot{
		Version:      stateVersion,
		Plans:        c.plans,
		Tasks:        c.tasks,
		Workers:      workers,
		NextTaskID:   c.nextTaskID,
		NextPlanID:   c.nextPlanID,
		ActivePlanID: c.activePlanID,
	}
}

// Flush forces an immediate, synchronous persist, bypassing the debounce
// timer. Useful for tests and graceful shutdown.
func (c *Core) Flush() {
	if c.persistTimer != nil {
		c.persistTimer.Stop()
	}
	c.persistNow()
}

// Restore loads c.statePath if present, applying the documented
// migration for older snapshot versions and discarding (with a warning)
// anything newer than this build understands. Rebuilds workers' state
// machines from the restored task states.
func (c *Core) Restore() error {
	if c.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(c.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	switch {
	case snap.Version == stateVersion:
		// current format, restore as-is
	case snap.Version < stateVersion:
		migrateSnapshot(&snap)
	default:
		if c.log != nil {
			c.log.Warn("discarding orchestrator state from a newer format version",
				logger.F("fileVersion", snap.Version), logger.F("supportedVersion", stateVersion))
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = snap.Plans
	c.tasks = snap.Tasks
	c.nextTaskID = snap.NextTaskID
	c.nextPlanID = snap.NextPlanID
	c.activePlanID = snap.ActivePlanID

	c.workers = make(map[string]*workerEntry, len(snap.Workers))
	for _, w := range snap.Workers {
		state := models.TaskRunning
		if task := c.findTask(w.TaskRef); task != nil {
			state = task.State
		}
		c.workers[w.ID] = &workerEntry{worker: w, machine: statemachine.New(w.TaskRef, state, c.log)}
	}
	return nil
}

// migrateSnapshot upgrades a snapshot from an older version in place.
// Version 1 (the teacher's pre-orchestrator plan-run format) carried no
// activePlanId field; it defaults to the empty string, which this
// implementation already treats as "no active plan."
func migrateSnapshot(snap *snapshot) {
	if snap.Version < 2 {
		snap.Version = 2
	}
}
