// Package cmd wires OrchestratorCore and its collaborators into a cobra CLI.
// It is the minimal driver that exercises the orchestrator end-to-end; an
// HTTP gateway and any UI are deliberately left to a separate binary.
package cmd

import (
	"fmt"

	"github.com/harrison/orchestrator/internal/config"
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// OrchestratorRepoRoot is the path to the repository root, injected at
// build time via -ldflags so config/state files resolve without walking up
// from the working directory.
var OrchestratorRepoRoot = ""

// GetOrchestratorRepoRoot returns the build-time injected repository root.
func GetOrchestratorRepoRoot() string {
	return OrchestratorRepoRoot
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	config.SetBuildTimeRepoRoot(OrchestratorRepoRoot)

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Hierarchical multi-agent task orchestrator",
		Long: `orchestrator deploys plans of dependency-ordered tasks to isolated git
worktrees, running each as a Claude Code agent worker. Workers can spawn
sub-tasks of their own, bounded by depth, rate, and parallelism limits.

Configuration is loaded from .orchestrator/config.yaml if present; CLI flags
override configuration file settings.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newDeployCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newEmergencyStopCommand())

	return cmd
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	cfg, err := config.LoadConfigFromRootWithBuildTime(GetOrchestratorRepoRoot())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
