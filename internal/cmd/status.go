package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the tracked plans, tasks, and workers",
		Long: `status restores orchestrator state from the configured queue state path
and prints every tracked plan, task, and worker and its current status.`,
		RunE: func(c *cobra.Command, args []string) error {
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

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "PLAN\tSTATUS\tBASE BRANCH")
			for _, p := range core.ListPlans() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Status, p.BaseBranch)
			}

			fmt.Fprintln(w, "\nTASK\tSTATE\tPRIORITY\tPLAN")
			for _, t := range core.ListTasks() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.State, t.Priority, t.PlanID)
			}

			fmt.Fprintln(w, "\nWORKER\tSTATUS\tTASK\tWORKTREE")
			for _, wk := range core.ListWorkers() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wk.ID, wk.Status, wk.TaskRef, wk.WorktreePath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to .orchestrator/config.yaml)")
	return cmd
}
