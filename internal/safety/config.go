// Package safety implements C4: depth/rate/total/parallel/cycle admission
// control for sub-task creation, ancestry tracking for cycle detection, cost
// accounting, and emergency-stop.
package safety

import (
	"time"

	"github.com/harrison/orchestrator/internal/models"
)

// Config holds the overridable limits from spec.md §4.4. All values have the
// spec's defaults baked into DefaultConfig.
type Config struct {
	MaxDepthOrchestrator int // default 2
	MaxDepthAgent         int // default 1

	MaxSubTasksPerWorker int
	MaxParallelSubTasks  int
	SpawnsPerMinute      int
	MaxCostPerWorker     float64 // USD, 0 = unlimited

	// RateWindow is the sliding window spawnsPerMinute is measured over.
	// Named separately from "per minute" so tests can shrink it.
	RateWindow time.Duration

	// SweepInterval is the cron-driven interval SafetyLimits prunes expired
	// rate-window entries on. Expressed as a cron spec understood by
	// robfig/cron (e.g. "@every 10s").
	SweepInterval string
}

// DefaultConfig returns the spec's stated defaults plus reasonable values
// for the limits the spec leaves to the deployer.
func DefaultConfig() Config {
	return Config{
		MaxDepthOrchestrator: 2,
		MaxDepthAgent:        1,
		MaxSubTasksPerWorker: 20,
		MaxParallelSubTasks:  4,
		SpawnsPerMinute:      10,
		MaxCostPerWorker:     0,
		RateWindow:           time.Minute,
		SweepInterval:        "@every 10s",
	}
}

// MaxDepth returns the depth budget for the given spawn context. SubTask
// contexts are treated as "agent" per spec.md §4.4.
func (c Config) MaxDepth(ctx models.SpawnContext) int {
	if ctx == models.SpawnOrchestrator {
		return c.MaxDepthOrchestrator
	}
	return c.MaxDepthAgent
}
