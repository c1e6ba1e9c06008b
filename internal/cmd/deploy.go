package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeployCommand() *cobra.Command {
	var (
		configPath string
		taskID     string
	)

	cmd := &cobra.Command{
		Use:   "deploy <task-id>",
		Short: "Deploy a single previously-queued task",
		Long: `deploy creates a worker for one task that was already added to a plan
in an earlier run, restoring orchestrator state from the configured queue
state path first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			taskID = args[0]
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			core, _, err := buildCore(cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context(), cfg.Timeout)
			defer cancel()

			w, err := core.Deploy(ctx, taskID, "")
			if err != nil {
				return fmt.Errorf("deploy %s: %w", taskID, err)
			}
			fmt.Fprintf(c.OutOrStdout(), "deployed task %s as worker %s (worktree %s)\n", taskID, w.ID, w.WorktreePath)
			core.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to .orchestrator/config.yaml)")
	return cmd
}
