package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConsoleEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"CONDUCTOR_CONSOLE_COLOR", "CONDUCTOR_CONSOLE_PROGRESS_BAR", "CONDUCTOR_CONSOLE_TASK_DETAILS",
		"CONDUCTOR_CONSOLE_WORKER_EVENTS", "CONDUCTOR_CONSOLE_COMPACT", "CONDUCTOR_CONSOLE_AGENT_NAMES",
		"CONDUCTOR_CONSOLE_FILE_COUNTS", "CONDUCTOR_CONSOLE_DURATIONS",
		"CONDUCTOR_MAX_PARALLEL_SUBTASKS", "CONDUCTOR_SPAWNS_PER_MINUTE",
	} {
		t.Setenv(v, "")
	}
}

func TestDefaultConfig_PassesValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Hour, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2, cfg.SafetyLimits.MaxDepthOrchestrator)
	assert.Equal(t, 1, cfg.SafetyLimits.MaxDepthAgent)
	assert.Equal(t, 4, cfg.SafetyLimits.MaxParallelSubTasks)
	assert.Equal(t, 10, cfg.SafetyLimits.SpawnsPerMinute)
	assert.Equal(t, ".orchestrator/worktrees", cfg.Worktree.WorktreeParent)
	assert.Equal(t, ".copilot-orchestrator-state.json", cfg.Queue.StatePath)
	assert.Equal(t, 5, cfg.Health.ErrorThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Health.IdleTimeout)
	assert.Equal(t, 3, cfg.Health.CircuitBreakerThreshold)
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	clearConsoleEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxConcurrency, cfg.MaxConcurrency)
}

func TestLoadConfig_MalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_concurrency: [this is not\n  valid"), 0644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_OverridesEverySection(t *testing.T) {
	clearConsoleEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `max_concurrency: 6
timeout: 45m
log_level: debug
log_dir: /tmp/orchestrator/logs
dry_run: true
skip_completed: true
retry_failed: true

console:
  enable_color: false
  enable_progress_bar: false
  enable_task_details: false
  enable_worker_events: false
  compact_mode: true
  show_agent_names: false
  show_file_counts: false
  show_durations: false

safety_limits:
  max_depth_orchestrator: 3
  max_depth_agent: 2
  max_subtasks_per_worker: 30
  max_parallel_subtasks: 8
  spawns_per_minute: 20
  max_cost_per_worker: 5.5
  rate_window: 2m
  sweep_interval: "@every 5s"

worktree:
  workspace_root: /repo
  worktree_parent: /repo/.worktrees
  branch_prefix: "wk/"
  cleanup_on_conclude: false

queue:
  state_path: /repo/.state.json
  persist_debounce_ms: 250

health:
  error_threshold: 9
  idle_timeout: 2m
  check_interval: 15s
  ring_size: 7
  circuit_breaker_threshold: 4
  circuit_breaker_cooldown: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.MaxConcurrency)
	assert.Equal(t, 45*time.Minute, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/orchestrator/logs", cfg.LogDir)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.SkipCompleted)
	assert.True(t, cfg.RetryFailed)

	assert.False(t, cfg.Console.EnableColor)
	assert.False(t, cfg.Console.EnableWorkerEvents)
	assert.True(t, cfg.Console.CompactMode)

	assert.Equal(t, 3, cfg.SafetyLimits.MaxDepthOrchestrator)
	assert.Equal(t, 2, cfg.SafetyLimits.MaxDepthAgent)
	assert.Equal(t, 30, cfg.SafetyLimits.MaxSubTasksPerWorker)
	assert.Equal(t, 8, cfg.SafetyLimits.MaxParallelSubTasks)
	assert.Equal(t, 20, cfg.SafetyLimits.SpawnsPerMinute)
	assert.Equal(t, 5.5, cfg.SafetyLimits.MaxCostPerWorker)
	assert.Equal(t, 2*time.Minute, cfg.SafetyLimits.RateWindow)
	assert.Equal(t, "@every 5s", cfg.SafetyLimits.SweepInterval)

	assert.Equal(t, "/repo", cfg.Worktree.WorkspaceRoot)
	assert.Equal(t, "/repo/.worktrees", cfg.Worktree.WorktreeParent)
	assert.Equal(t, "wk/", cfg.Worktree.BranchPrefix)
	assert.False(t, cfg.Worktree.CleanupOnConclude)

	assert.Equal(t, "/repo/.state.json", cfg.Queue.StatePath)
	assert.Equal(t, 250, cfg.Queue.PersistDebounceMs)

	assert.Equal(t, 9, cfg.Health.ErrorThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Health.IdleTimeout)
	assert.Equal(t, 15*time.Second, cfg.Health.CheckInterval)
	assert.Equal(t, 7, cfg.Health.RingSize)
	assert.Equal(t, 4, cfg.Health.CircuitBreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Health.CircuitBreakerCooldown)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_PartialSectionKeepsOtherDefaults(t *testing.T) {
	clearConsoleEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety_limits:\n  max_parallel_subtasks: 16\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.SafetyLimits.MaxParallelSubTasks)
	assert.Equal(t, 10, cfg.SafetyLimits.SpawnsPerMinute) // untouched default
}

func TestLoadConfig_InvalidDurationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety_limits:\n  rate_window: not-a-duration\n"), 0644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestApplyConsoleEnvOverrides(t *testing.T) {
	clearConsoleEnv(t)
	t.Setenv("CONDUCTOR_CONSOLE_COLOR", "1")
	t.Setenv("CONDUCTOR_CONSOLE_COMPACT", "true")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Console.EnableColor)
	assert.True(t, cfg.Console.CompactMode)
}

func TestApplySafetyLimitsEnvOverrides(t *testing.T) {
	clearConsoleEnv(t)
	t.Setenv("CONDUCTOR_MAX_PARALLEL_SUBTASKS", "12")
	t.Setenv("CONDUCTOR_SPAWNS_PER_MINUTE", "25")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.SafetyLimits.MaxParallelSubTasks)
	assert.Equal(t, 25, cfg.SafetyLimits.SpawnsPerMinute)
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	maxConcurrency := 9
	dryRun := true
	cfg.MergeWithFlags(&maxConcurrency, nil, nil, &dryRun, nil, nil)
	assert.Equal(t, 9, cfg.MaxConcurrency)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout) // untouched
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"negative max concurrency", func(c *Config) { c.MaxConcurrency = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }},
		{"zero max parallel subtasks", func(c *Config) { c.SafetyLimits.MaxParallelSubTasks = 0 }},
		{"negative max cost", func(c *Config) { c.SafetyLimits.MaxCostPerWorker = -1 }},
		{"empty workspace root", func(c *Config) { c.Worktree.WorkspaceRoot = "" }},
		{"empty state path", func(c *Config) { c.Queue.StatePath = "" }},
		{"zero error threshold", func(c *Config) { c.Health.ErrorThreshold = 0 }},
		{"zero circuit breaker threshold", func(c *Config) { c.Health.CircuitBreakerThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestToSafetyConfig(t *testing.T) {
	cfg := DefaultConfig()
	sc := cfg.ToSafetyConfig()
	assert.Equal(t, cfg.SafetyLimits.MaxDepthOrchestrator, sc.MaxDepthOrchestrator)
	assert.Equal(t, cfg.SafetyLimits.SpawnsPerMinute, sc.SpawnsPerMinute)
}

func TestToHealthConfig(t *testing.T) {
	cfg := DefaultConfig()
	hc := cfg.ToHealthConfig()
	assert.Equal(t, cfg.Health.ErrorThreshold, hc.ErrorThreshold)
	assert.Equal(t, cfg.Health.IdleTimeout, hc.IdleTimeout)
}
