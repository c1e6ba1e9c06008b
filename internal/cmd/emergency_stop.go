package cmd

import (
	"fmt"

	"github.com/harrison/orchestrator/internal/safety"
	"github.com/spf13/cobra"
)

var emergencyStopScopes = map[string]safety.EmergencyStopScope{
	"subtask": safety.ScopeSubTask,
	"worker":  safety.ScopeWorker,
	"plan":    safety.ScopePlan,
	"global":  safety.ScopeGlobal,
}

func newEmergencyStopCommand() *cobra.Command {
	var (
		configPath string
		scope      string
	)

	cmd := &cobra.Command{
		Use:   "emergency-stop [id]",
		Short: "Cancel in-flight work at the given scope",
		Long: `emergency-stop cancels every in-flight sub-task, worker, plan, or the
entire run, depending on --scope. subtask/worker/plan scopes require an id
argument; global cancels everything and takes none.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			es, ok := emergencyStopScopes[scope]
			if !ok {
				return fmt.Errorf("unknown scope %q (want subtask, worker, plan, or global)", scope)
			}
			var id string
			if len(args) > 0 {
				id = args[0]
			}
			if es != safety.ScopeGlobal && id == "" {
				return fmt.Errorf("scope %q requires an id argument", scope)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			_, limits, err := buildCore(cfg, log)
			if err != nil {
				return err
			}

			cancelled := limits.EmergencyStop(es, id)
			fmt.Fprintf(c.OutOrStdout(), "cancelled %d sub-task(s) under scope %s\n", len(cancelled), scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to .orchestrator/config.yaml)")
	cmd.Flags().StringVar(&scope, "scope", "global", "scope to cancel: subtask, worker, plan, or global")
	return cmd
}
