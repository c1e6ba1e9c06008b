package config

import (
	"github.com/harrison/orchestrator/internal/health"
	"github.com/harrison/orchestrator/internal/safety"
)

// ToSafetyConfig adapts the loaded SafetyLimitsConfig section into
// safety.Config, the shape admission control actually consumes.
func (c *Config) ToSafetyConfig() safety.Config {
	return safety.Config{
		MaxDepthOrchestrator: c.SafetyLimits.MaxDepthOrchestrator,
		MaxDepthAgent:        c.SafetyLimits.MaxDepthAgent,
		MaxSubTasksPerWorker: c.SafetyLimits.MaxSubTasksPerWorker,
		MaxParallelSubTasks:  c.SafetyLimits.MaxParallelSubTasks,
		SpawnsPerMinute:      c.SafetyLimits.SpawnsPerMinute,
		MaxCostPerWorker:     c.SafetyLimits.MaxCostPerWorker,
		RateWindow:           c.SafetyLimits.RateWindow,
		SweepInterval:        c.SafetyLimits.SweepInterval,
	}
}

// ToHealthConfig adapts the loaded HealthConfig section into health.Config.
func (c *Config) ToHealthConfig() health.Config {
	return health.Config{
		ErrorThreshold: c.Health.ErrorThreshold,
		IdleTimeout:    c.Health.IdleTimeout,
		CheckInterval:  c.Health.CheckInterval,
		RingSize:       c.Health.RingSize,
	}
}
