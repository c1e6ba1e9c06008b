// Package main is the CLI entry point for the orchestrator: run, deploy,
// status, and emergency-stop subcommands over the hierarchical plan/task/
// worker state machine implemented in internal/orchestrator. Build-time
// variables (version, repo root) are set via -ldflags; see internal/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/harrison/orchestrator/internal/cmd"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.Version = version
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
