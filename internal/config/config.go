package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output formatting and features.
type ConsoleConfig struct {
	// EnableColor enables colored output
	EnableColor bool `yaml:"enable_color"`

	// EnableProgressBar enables progress bar display
	EnableProgressBar bool `yaml:"enable_progress_bar"`

	// EnableTaskDetails enables detailed task information
	EnableTaskDetails bool `yaml:"enable_task_details"`

	// EnableWorkerEvents prints task.*/worker.* orchestrator events as they fire
	EnableWorkerEvents bool `yaml:"enable_worker_events"`

	// CompactMode enables compact output format
	CompactMode bool `yaml:"compact_mode"`

	// ShowAgentNames shows agent names in output
	ShowAgentNames bool `yaml:"show_agent_names"`

	// ShowFileCounts shows file counts in output
	ShowFileCounts bool `yaml:"show_file_counts"`

	// ShowDurations shows task durations in output
	ShowDurations bool `yaml:"show_durations"`
}

// SafetyLimitsConfig mirrors safety.Config: the depth/rate/total/parallel
// admission limits sub-task creation is checked against.
type SafetyLimitsConfig struct {
	// MaxDepthOrchestrator is the spawn-depth budget for orchestrator-issued tasks
	MaxDepthOrchestrator int `yaml:"max_depth_orchestrator"`

	// MaxDepthAgent is the spawn-depth budget for agent-issued sub-tasks
	MaxDepthAgent int `yaml:"max_depth_agent"`

	// MaxSubTasksPerWorker caps the lifetime sub-task count of a single worker
	MaxSubTasksPerWorker int `yaml:"max_subtasks_per_worker"`

	// MaxParallelSubTasks caps concurrently running sub-tasks per worker
	MaxParallelSubTasks int `yaml:"max_parallel_subtasks"`

	// SpawnsPerMinute caps sub-task creations within RateWindow
	SpawnsPerMinute int `yaml:"spawns_per_minute"`

	// MaxCostPerWorker is a USD ceiling on a worker's accrued cost, 0 = unlimited
	MaxCostPerWorker float64 `yaml:"max_cost_per_worker"`

	// RateWindow is the sliding window SpawnsPerMinute is measured over
	RateWindow time.Duration `yaml:"rate_window"`

	// SweepInterval is the cron spec the rate-window pruner runs on
	SweepInterval string `yaml:"sweep_interval"`
}

// WorktreeConfig controls where git worktrees are created.
type WorktreeConfig struct {
	// WorkspaceRoot is the repository root worktrees are created relative to
	WorkspaceRoot string `yaml:"workspace_root"`

	// WorktreeParent is the directory new worktrees are nested under
	WorktreeParent string `yaml:"worktree_parent"`

	// BranchPrefix is loaded from configuration but not applied: worker
	// branches are named after the sanitized task name with no prefix.
	BranchPrefix string `yaml:"branch_prefix"`

	// CleanupOnConclude is loaded from configuration but not applied:
	// concluding a worker leaves its worktree directory in place.
	CleanupOnConclude bool `yaml:"cleanup_on_conclude"`
}

// QueueConfig controls the on-disk state files.
type QueueConfig struct {
	// StatePath is where the orchestrator snapshot (.copilot-orchestrator-state.json) is written;
	// the message bus writes .copilot-orchestrator-queue.json in the same directory
	StatePath string `yaml:"state_path"`

	// PersistDebounceMs is loaded and validated but not applied: the
	// orchestrator snapshot uses a fixed 500ms debounce and the message bus
	// writes after every change.
	PersistDebounceMs int `yaml:"persist_debounce_ms"`
}

// HealthConfig holds liveness/idle detection and circuit breaker tuning for
// deployed workers. ToHealthConfig passes the first four fields on to
// health.Config; the circuit breaker fields are not passed anywhere.
type HealthConfig struct {
	// ErrorThreshold is the consecutive-failure count that fires onWorkerUnhealthy
	ErrorThreshold int `yaml:"error_threshold"`

	// IdleTimeout is how long without activity before a worker is considered idle
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// CheckInterval is how often the idle sweep runs
	CheckInterval time.Duration `yaml:"check_interval"`

	// RingSize is the bounded tool-call history used for loop detection
	RingSize int `yaml:"ring_size"`

	// CircuitBreakerThreshold is the consecutive-failure count that opens the breaker
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`

	// CircuitBreakerCooldown is how long an open breaker waits before probing half-open
	CircuitBreakerCooldown time.Duration `yaml:"circuit_breaker_cooldown"`
}

// Config represents orchestrator configuration options.
type Config struct {
	// MaxConcurrency is loaded, validated and merged from flags, but nothing
	// reads it: DeployAll bounds concurrent deploys by
	// safety_limits.max_parallel_subtasks instead.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout is the maximum execution time for a single worker run
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// DryRun validates a plan and its tasks without deploying workers
	DryRun bool `yaml:"dry_run"`

	// SkipCompleted skips tasks that have already been completed
	SkipCompleted bool `yaml:"skip_completed"`

	// RetryFailed retries tasks that failed on the previous run
	RetryFailed bool `yaml:"retry_failed"`

	// Console contains console output configuration
	Console ConsoleConfig `yaml:"console"`

	// SafetyLimits contains sub-task admission control configuration
	SafetyLimits SafetyLimitsConfig `yaml:"safety_limits"`

	// Worktree contains git worktree placement configuration
	Worktree WorktreeConfig `yaml:"worktree"`

	// Queue contains message bus and state persistence configuration
	Queue QueueConfig `yaml:"queue"`

	// Health contains worker health monitoring configuration
	Health HealthConfig `yaml:"health"`
}

// DefaultConsoleConfig returns ConsoleConfig with sensible default values.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		EnableColor:         true,
		EnableProgressBar:   true,
		EnableTaskDetails:   true,
		EnableWorkerEvents:  true,
		CompactMode:         false,
		ShowAgentNames:      true,
		ShowFileCounts:      true,
		ShowDurations:       true,
	}
}

// DefaultSafetyLimitsConfig returns the spec's stated depth/rate/total/
// parallel defaults.
func DefaultSafetyLimitsConfig() SafetyLimitsConfig {
	return SafetyLimitsConfig{
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

// DefaultWorktreeConfig returns sensible worktree placement defaults.
func DefaultWorktreeConfig() WorktreeConfig {
	return WorktreeConfig{
		WorkspaceRoot:     ".",
		WorktreeParent:    ".orchestrator/worktrees",
		BranchPrefix:      "orchestrator/",
		CleanupOnConclude: true,
	}
}

// DefaultQueueConfig returns sensible message bus defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		StatePath:         ".copilot-orchestrator-state.json",
		PersistDebounceMs: 500,
	}
}

// DefaultHealthConfig returns the spec's stated health monitor defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		ErrorThreshold:           5,
		IdleTimeout:              5 * time.Minute,
		CheckInterval:            30 * time.Second,
		RingSize:                 5,
		CircuitBreakerThreshold:  3,
		CircuitBreakerCooldown:   30 * time.Second,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 0, // Unlimited
		Timeout:        10 * time.Hour,
		LogLevel:       "info",
		LogDir:         ".orchestrator/logs",
		DryRun:         false,
		SkipCompleted:  false,
		RetryFailed:    false,
		Console:        DefaultConsoleConfig(),
		SafetyLimits:   DefaultSafetyLimitsConfig(),
		Worktree:       DefaultWorktreeConfig(),
		Queue:          DefaultQueueConfig(),
		Health:         DefaultHealthConfig(),
	}
}

// applyConsoleEnvOverrides applies environment variable overrides to console configuration.
// Environment variables take precedence over config file values.
// Recognized variables:
//   - CONDUCTOR_CONSOLE_COLOR (enable_color)
//   - CONDUCTOR_CONSOLE_PROGRESS_BAR (enable_progress_bar)
//   - CONDUCTOR_CONSOLE_TASK_DETAILS (enable_task_details)
//   - CONDUCTOR_CONSOLE_WORKER_EVENTS (enable_worker_events)
//   - CONDUCTOR_CONSOLE_COMPACT (compact_mode)
//   - CONDUCTOR_CONSOLE_AGENT_NAMES (show_agent_names)
//   - CONDUCTOR_CONSOLE_FILE_COUNTS (show_file_counts)
//   - CONDUCTOR_CONSOLE_DURATIONS (show_durations)
//
// Only "true" (lowercase) or "1" are recognized as true; all other values are false.
func applyConsoleEnvOverrides(cfg *ConsoleConfig) {
	if val := os.Getenv("CONDUCTOR_CONSOLE_COLOR"); val != "" {
		cfg.EnableColor = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_PROGRESS_BAR"); val != "" {
		cfg.EnableProgressBar = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_TASK_DETAILS"); val != "" {
		cfg.EnableTaskDetails = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_WORKER_EVENTS"); val != "" {
		cfg.EnableWorkerEvents = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_COMPACT"); val != "" {
		cfg.CompactMode = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_AGENT_NAMES"); val != "" {
		cfg.ShowAgentNames = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_FILE_COUNTS"); val != "" {
		cfg.ShowFileCounts = val == "true" || val == "1"
	}
	if val := os.Getenv("CONDUCTOR_CONSOLE_DURATIONS"); val != "" {
		cfg.ShowDurations = val == "true" || val == "1"
	}
}

// applySafetyLimitsEnvOverrides lets a deployer tighten admission limits
// without editing the config file, e.g. in CI.
//   - CONDUCTOR_MAX_PARALLEL_SUBTASKS
//   - CONDUCTOR_SPAWNS_PER_MINUTE
func applySafetyLimitsEnvOverrides(cfg *SafetyLimitsConfig) {
	if val := os.Getenv("CONDUCTOR_MAX_PARALLEL_SUBTASKS"); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			cfg.MaxParallelSubTasks = n
		}
	}
	if val := os.Getenv("CONDUCTOR_SPAWNS_PER_MINUTE"); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			cfg.SpawnsPerMinute = n
		}
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyConsoleEnvOverrides(&cfg.Console)
		applySafetyLimitsEnvOverrides(&cfg.SafetyLimits)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing cleanly.
	type yamlConfig struct {
		MaxConcurrency int            `yaml:"max_concurrency"`
		Timeout        string         `yaml:"timeout"`
		LogLevel       string         `yaml:"log_level"`
		LogDir         string         `yaml:"log_dir"`
		DryRun         bool           `yaml:"dry_run"`
		SkipCompleted  bool           `yaml:"skip_completed"`
		RetryFailed    bool           `yaml:"retry_failed"`
		Console        ConsoleConfig  `yaml:"console"`
		SafetyLimits   struct {
			MaxDepthOrchestrator int     `yaml:"max_depth_orchestrator"`
			MaxDepthAgent        int     `yaml:"max_depth_agent"`
			MaxSubTasksPerWorker int     `yaml:"max_subtasks_per_worker"`
			MaxParallelSubTasks  int     `yaml:"max_parallel_subtasks"`
			SpawnsPerMinute      int     `yaml:"spawns_per_minute"`
			MaxCostPerWorker     float64 `yaml:"max_cost_per_worker"`
			RateWindow           string  `yaml:"rate_window"`
			SweepInterval        string  `yaml:"sweep_interval"`
		} `yaml:"safety_limits"`
		Worktree WorktreeConfig `yaml:"worktree"`
		Queue    struct {
			StatePath         string `yaml:"state_path"`
			PersistDebounceMs int    `yaml:"persist_debounce_ms"`
		} `yaml:"queue"`
		Health struct {
			ErrorThreshold          int    `yaml:"error_threshold"`
			IdleTimeout             string `yaml:"idle_timeout"`
			CheckInterval           string `yaml:"check_interval"`
			RingSize                int    `yaml:"ring_size"`
			CircuitBreakerThreshold int    `yaml:"circuit_breaker_threshold"`
			CircuitBreakerCooldown  string `yaml:"circuit_breaker_cooldown"`
		} `yaml:"health"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.DryRun {
		cfg.DryRun = yamlCfg.DryRun
	}
	if yamlCfg.SkipCompleted {
		cfg.SkipCompleted = yamlCfg.SkipCompleted
	}
	if yamlCfg.RetryFailed {
		cfg.RetryFailed = yamlCfg.RetryFailed
	}

	// Merge section-by-section - need to check if a section was provided at
	// all, since a present-but-zero-valued field should still override the
	// default (e.g. explicitly disabling a bool).
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if consoleSection, exists := rawMap["console"]; exists && consoleSection != nil {
			console := yamlCfg.Console
			consoleMap, _ := consoleSection.(map[string]interface{})

			if _, exists := consoleMap["enable_color"]; exists {
				cfg.Console.EnableColor = console.EnableColor
			}
			if _, exists := consoleMap["enable_progress_bar"]; exists {
				cfg.Console.EnableProgressBar = console.EnableProgressBar
			}
			if _, exists := consoleMap["enable_task_details"]; exists {
				cfg.Console.EnableTaskDetails = console.EnableTaskDetails
			}
			if _, exists := consoleMap["enable_worker_events"]; exists {
				cfg.Console.EnableWorkerEvents = console.EnableWorkerEvents
			}
			if _, exists := consoleMap["compact_mode"]; exists {
				cfg.Console.CompactMode = console.CompactMode
			}
			if _, exists := consoleMap["show_agent_names"]; exists {
				cfg.Console.ShowAgentNames = console.ShowAgentNames
			}
			if _, exists := consoleMap["show_file_counts"]; exists {
				cfg.Console.ShowFileCounts = console.ShowFileCounts
			}
			if _, exists := consoleMap["show_durations"]; exists {
				cfg.Console.ShowDurations = console.ShowDurations
			}
		}

		if safetySection, exists := rawMap["safety_limits"]; exists && safetySection != nil {
			s := yamlCfg.SafetyLimits
			safetyMap, _ := safetySection.(map[string]interface{})

			if _, exists := safetyMap["max_depth_orchestrator"]; exists {
				cfg.SafetyLimits.MaxDepthOrchestrator = s.MaxDepthOrchestrator
			}
			if _, exists := safetyMap["max_depth_agent"]; exists {
				cfg.SafetyLimits.MaxDepthAgent = s.MaxDepthAgent
			}
			if _, exists := safetyMap["max_subtasks_per_worker"]; exists {
				cfg.SafetyLimits.MaxSubTasksPerWorker = s.MaxSubTasksPerWorker
			}
			if _, exists := safetyMap["max_parallel_subtasks"]; exists {
				cfg.SafetyLimits.MaxParallelSubTasks = s.MaxParallelSubTasks
			}
			if _, exists := safetyMap["spawns_per_minute"]; exists {
				cfg.SafetyLimits.SpawnsPerMinute = s.SpawnsPerMinute
			}
			if _, exists := safetyMap["max_cost_per_worker"]; exists {
				cfg.SafetyLimits.MaxCostPerWorker = s.MaxCostPerWorker
			}
			if _, exists := safetyMap["rate_window"]; exists {
				window, err := time.ParseDuration(s.RateWindow)
				if err != nil {
					return nil, fmt.Errorf("invalid safety_limits.rate_window %q: %w", s.RateWindow, err)
				}
				cfg.SafetyLimits.RateWindow = window
			}
			if _, exists := safetyMap["sweep_interval"]; exists {
				cfg.SafetyLimits.SweepInterval = s.SweepInterval
			}
		}

		if worktreeSection, exists := rawMap["worktree"]; exists && worktreeSection != nil {
			w := yamlCfg.Worktree
			worktreeMap, _ := worktreeSection.(map[string]interface{})

			if _, exists := worktreeMap["workspace_root"]; exists {
				cfg.Worktree.WorkspaceRoot = w.WorkspaceRoot
			}
			if _, exists := worktreeMap["worktree_parent"]; exists {
				cfg.Worktree.WorktreeParent = w.WorktreeParent
			}
			if _, exists := worktreeMap["branch_prefix"]; exists {
				cfg.Worktree.BranchPrefix = w.BranchPrefix
			}
			if _, exists := worktreeMap["cleanup_on_conclude"]; exists {
				cfg.Worktree.CleanupOnConclude = w.CleanupOnConclude
			}
		}

		if queueSection, exists := rawMap["queue"]; exists && queueSection != nil {
			q := yamlCfg.Queue
			queueMap, _ := queueSection.(map[string]interface{})

			if _, exists := queueMap["state_path"]; exists {
				cfg.Queue.StatePath = q.StatePath
			}
			if _, exists := queueMap["persist_debounce_ms"]; exists {
				cfg.Queue.PersistDebounceMs = q.PersistDebounceMs
			}
		}

		if healthSection, exists := rawMap["health"]; exists && healthSection != nil {
			h := yamlCfg.Health
			healthMap, _ := healthSection.(map[string]interface{})

			if _, exists := healthMap["error_threshold"]; exists {
				cfg.Health.ErrorThreshold = h.ErrorThreshold
			}
			if _, exists := healthMap["idle_timeout"]; exists {
				d, err := time.ParseDuration(h.IdleTimeout)
				if err != nil {
					return nil, fmt.Errorf("invalid health.idle_timeout %q: %w", h.IdleTimeout, err)
				}
				cfg.Health.IdleTimeout = d
			}
			if _, exists := healthMap["check_interval"]; exists {
				d, err := time.ParseDuration(h.CheckInterval)
				if err != nil {
					return nil, fmt.Errorf("invalid health.check_interval %q: %w", h.CheckInterval, err)
				}
				cfg.Health.CheckInterval = d
			}
			if _, exists := healthMap["ring_size"]; exists {
				cfg.Health.RingSize = h.RingSize
			}
			if _, exists := healthMap["circuit_breaker_threshold"]; exists {
				cfg.Health.CircuitBreakerThreshold = h.CircuitBreakerThreshold
			}
			if _, exists := healthMap["circuit_breaker_cooldown"]; exists {
				d, err := time.ParseDuration(h.CircuitBreakerCooldown)
				if err != nil {
					return nil, fmt.Errorf("invalid health.circuit_breaker_cooldown %q: %w", h.CircuitBreakerCooldown, err)
				}
				cfg.Health.CircuitBreakerCooldown = d
			}
		}
	}

	// Apply environment variable overrides (highest priority).
	applyConsoleEnvOverrides(&cfg.Console)
	applySafetyLimitsEnvOverrides(&cfg.SafetyLimits)

	return cfg, nil
}

// buildTimeRepoRoot is injected via -ldflags "-X .../config.buildTimeRepoRoot=..."
// at build time so LoadConfigFromDir can find .orchestrator/config.yaml without
// walking up from the working directory.
var buildTimeRepoRoot string

// SetBuildTimeRepoRoot overrides buildTimeRepoRoot at runtime, used by the
// root command once it has resolved its own injected value.
func SetBuildTimeRepoRoot(root string) { buildTimeRepoRoot = root }

// LoadConfigFromRootWithBuildTime loads configuration from the orchestrator
// repo root. This is the testable version that accepts the build-time
// injected root.
// Priority order:
//  1. Config at {root}/.orchestrator/config.yaml
//  2. Default configuration
//
// Returns error if root is empty.
func LoadConfigFromRootWithBuildTime(buildTimeRoot string) (*Config, error) {
	if buildTimeRoot == "" {
		return nil, fmt.Errorf("orchestrator repo root not configured: rebuild with repo path injected")
	}

	configPath := filepath.Join(buildTimeRoot, ".orchestrator", "config.yaml")
	return LoadConfig(configPath)
}

// LoadConfigFromDir loads configuration from .orchestrator/config.yaml in the
// repo root. Uses the build-time injected root (set via
// SetBuildTimeRepoRoot). The dir parameter is ignored, kept for backward
// compatibility only.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfigFromRootWithBuildTime(buildTimeRepoRoot)
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(maxConcurrency *int, timeout *time.Duration, logDir *string, dryRun *bool, skipCompleted *bool, retryFailed *bool) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
	if skipCompleted != nil {
		c.SkipCompleted = *skipCompleted
	}
	if retryFailed != nil {
		c.RetryFailed = *retryFailed
	}
}

// Validate validates the configuration values.
// Returns an error if any values are invalid.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if c.SafetyLimits.MaxDepthOrchestrator < 0 {
		return fmt.Errorf("safety_limits.max_depth_orchestrator must be >= 0, got %d", c.SafetyLimits.MaxDepthOrchestrator)
	}
	if c.SafetyLimits.MaxDepthAgent < 0 {
		return fmt.Errorf("safety_limits.max_depth_agent must be >= 0, got %d", c.SafetyLimits.MaxDepthAgent)
	}
	if c.SafetyLimits.MaxSubTasksPerWorker < 0 {
		return fmt.Errorf("safety_limits.max_subtasks_per_worker must be >= 0, got %d", c.SafetyLimits.MaxSubTasksPerWorker)
	}
	if c.SafetyLimits.MaxParallelSubTasks <= 0 {
		return fmt.Errorf("safety_limits.max_parallel_subtasks must be > 0, got %d", c.SafetyLimits.MaxParallelSubTasks)
	}
	if c.SafetyLimits.SpawnsPerMinute <= 0 {
		return fmt.Errorf("safety_limits.spawns_per_minute must be > 0, got %d", c.SafetyLimits.SpawnsPerMinute)
	}
	if c.SafetyLimits.MaxCostPerWorker < 0 {
		return fmt.Errorf("safety_limits.max_cost_per_worker must be >= 0, got %f", c.SafetyLimits.MaxCostPerWorker)
	}
	if c.SafetyLimits.RateWindow <= 0 {
		return fmt.Errorf("safety_limits.rate_window must be > 0, got %v", c.SafetyLimits.RateWindow)
	}

	if c.Worktree.WorkspaceRoot == "" {
		return fmt.Errorf("worktree.workspace_root cannot be empty")
	}
	if c.Worktree.WorktreeParent == "" {
		return fmt.Errorf("worktree.worktree_parent cannot be empty")
	}

	if c.Queue.StatePath == "" {
		return fmt.Errorf("queue.state_path cannot be empty")
	}
	if c.Queue.PersistDebounceMs < 0 {
		return fmt.Errorf("queue.persist_debounce_ms must be >= 0, got %d", c.Queue.PersistDebounceMs)
	}

	if c.Health.ErrorThreshold <= 0 {
		return fmt.Errorf("health.error_threshold must be > 0, got %d", c.Health.ErrorThreshold)
	}
	if c.Health.IdleTimeout <= 0 {
		return fmt.Errorf("health.idle_timeout must be > 0, got %v", c.Health.IdleTimeout)
	}
	if c.Health.CheckInterval <= 0 {
		return fmt.Errorf("health.check_interval must be > 0, got %v", c.Health.CheckInterval)
	}
	if c.Health.RingSize <= 0 {
		return fmt.Errorf("health.ring_size must be > 0, got %d", c.Health.RingSize)
	}
	if c.Health.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("health.circuit_breaker_threshold must be > 0, got %d", c.Health.CircuitBreakerThreshold)
	}
	if c.Health.CircuitBreakerCooldown <= 0 {
		return fmt.Errorf("health.circuit_breaker_cooldown must be > 0, got %v", c.Health.CircuitBreakerCooldown)
	}

	return nil
}
