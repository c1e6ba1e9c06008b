package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/orchestrator/internal/agenttype"
	"github.com/harrison/orchestrator/internal/config"
	"github.com/harrison/orchestrator/internal/definitions"
	"github.com/harrison/orchestrator/internal/health"
	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/models"
	"github.com/harrison/orchestrator/internal/orchestrator"
	"github.com/harrison/orchestrator/internal/queue"
	"github.com/harrison/orchestrator/internal/runner"
	"github.com/harrison/orchestrator/internal/safety"
	"github.com/harrison/orchestrator/internal/subtaskmgr"
	"github.com/harrison/orchestrator/internal/worktree"
	"github.com/spf13/cobra"
)

// consoleEventLogger prints OrchestratorEvents as they occur, mirroring the
// teacher's consoleLogger adapter but retargeted from wave/task results to
// the typed event stream emitted by orchestrator.Core.
type consoleEventLogger struct {
	writer io.Writer
}

func (l *consoleEventLogger) onEvent(evt orchestrator.OrchestratorEvent) {
	timestamp := time.Now().Format("15:04:05")
	switch evt.Kind {
	case orchestrator.EventTaskStarted:
		fmt.Fprintf(l.writer, "[%s] task %s started (worker %s)\n", timestamp, evt.TaskID, evt.WorkerID)
	case orchestrator.EventTaskCompleted:
		fmt.Fprintf(l.writer, "[%s] task %s completed\n", timestamp, evt.TaskID)
	case orchestrator.EventTaskFailed:
		fmt.Fprintf(l.writer, "[%s] task %s failed: %s\n", timestamp, evt.TaskID, evt.Message)
	case orchestrator.EventWorkerIdle:
		fmt.Fprintf(l.writer, "[%s] worker %s idle\n", timestamp, evt.WorkerID)
	case orchestrator.EventWorkerError:
		fmt.Fprintf(l.writer, "[%s] worker %s error: %s\n", timestamp, evt.WorkerID, evt.Message)
	default:
		fmt.Fprintf(l.writer, "[%s] %s\n", timestamp, evt.Kind)
	}
}

// buildCore assembles an orchestrator.Core and its collaborators from cfg,
// wiring the same packages a production deployment would (minus the actual
// model-invoking binary, which is out of scope here; see runner.NopRunner).
func buildCore(cfg *config.Config, log logger.Logger) (*orchestrator.Core, *safety.Limits, error) {
	cmdRunner := worktree.NewShellCommandRunner(cfg.Worktree.WorkspaceRoot)
	coordinator := worktree.New(cfg.Worktree.WorkspaceRoot, cmdRunner, cfg.Worktree.WorktreeParent, log)

	limits := safety.NewLimits(cfg.ToSafetyConfig(), nil)
	monitor := health.NewMonitor(cfg.ToHealthConfig(), log)
	subtasks := subtaskmgr.New(limits, &runner.NopRunner{}, log)
	// The bus keeps its own file beside the orchestrator snapshot; sharing
	// cfg.Queue.StatePath would let each writer overwrite the other's state.
	queuePath := filepath.Join(filepath.Dir(cfg.Queue.StatePath), ".copilot-orchestrator-queue.json")
	bus := queue.NewMessageBus(queuePath, log)
	if err := bus.Restore(); err != nil {
		return nil, nil, fmt.Errorf("restore queue state: %w", err)
	}

	core := orchestrator.New(orchestrator.Deps{
		Config:    cfg.ToSafetyConfig(),
		Worktree:  coordinator,
		Limits:    limits,
		SubTasks:  subtasks,
		Health:    monitor,
		Runner:    &runner.NopRunner{},
		Log:       log,
		StatePath: cfg.Queue.StatePath,
	})
	core.AttachBus(bus)

	limits.OnEmergencyStop(func(scope safety.EmergencyStopScope, id string, subTaskIDs []string) {
		log.Warn("emergency stop", logger.F("scope", string(scope)), logger.F("id", id), logger.F("subtasks", len(subTaskIDs)))
	})

	if err := core.Restore(); err != nil {
		log.Warn("restore orchestrator state", logger.F("error", err.Error()))
	}

	return core, limits, nil
}

// buildDefinitionStore wires the discovery sources SPEC_FULL describes:
// repo-local agent/command/skill definitions under .github/ override the
// built-in ones under assets/, by case-insensitive id.
func buildDefinitionStore(cfg *config.Config) *definitions.Store {
	root := cfg.Worktree.WorkspaceRoot
	return definitions.NewStore([]definitions.Source{
		{Kind: definitions.KindAgent, Dir: filepath.Join(root, "assets", "agents"), IsRepo: false},
		{Kind: definitions.KindAgent, Dir: filepath.Join(root, ".github", "agents"), IsRepo: true},
		{Kind: definitions.KindCommand, Dir: filepath.Join(root, "assets", "commands"), IsRepo: false},
		{Kind: definitions.KindCommand, Dir: filepath.Join(root, ".github", "commands"), IsRepo: true},
		{Kind: definitions.KindSkill, Dir: filepath.Join(root, "assets", "skills"), IsRepo: false},
		{Kind: definitions.KindSkill, Dir: filepath.Join(root, ".github", "skills"), IsRepo: true},
	})
}

// buildAgentTypeRegistry discovers agent definitions and registers any
// claudeSlashCommand frontmatter override they declare, so agenttype.Parse
// recognizes custom agent names alongside the reserved built-ins.
func buildAgentTypeRegistry(ctx context.Context, store *definitions.Store) (*agenttype.Registry, error) {
	if err := store.Discover(ctx); err != nil {
		return nil, fmt.Errorf("discover definitions: %w", err)
	}
	registry := agenttype.NewRegistry()
	for _, def := range store.List(definitions.KindAgent) {
		cmd, ok := def.Frontmatter["claudeSlashCommand"].(string)
		if !ok || cmd == "" {
			continue
		}
		if err := registry.Register(def.ID, cmd); err != nil {
			return nil, fmt.Errorf("register agent %s: %w", def.ID, err)
		}
	}
	return registry, nil
}

func buildLogger(cfg *config.Config) (logger.Logger, error) {
	console := logger.NewConsoleLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	if cfg.LogDir == "" {
		return console, nil
	}
	file, err := logger.NewFileLogger(cfg.LogDir, logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("create file logger: %w", err)
	}
	return logger.NewMultiLogger(console, file), nil
}

func newRunCommand() *cobra.Command {
	var (
		configPath  string
		planName    string
		description string
		taskNames   []string
		agentType   string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run --task <task-name>...",
		Short: "Deploy a plan of named tasks",
		Long: `run creates a plan containing one task per --task flag (in the order
given, with no inter-task dependencies) and deploys every ready task
concurrently, up to the configured parallelism limit. It returns once every
ready task has been deployed; it does not wait for the workers' runs to
reach a terminal state.

Configuration is loaded from .orchestrator/config.yaml if present; CLI flags
override configuration file settings.`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			dr := dryRun
			cfg.MergeWithFlags(nil, nil, nil, &dr, nil, nil)

			log, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			core, _, err := buildCore(cfg, log)
			if err != nil {
				return err
			}

			evtLog := &consoleEventLogger{writer: c.OutOrStdout()}
			core.OnOrchestratorEvent(evtLog.onEvent)

			var parsedAgentType string
			if agentType != "" {
				registry, err := buildAgentTypeRegistry(c.Context(), buildDefinitionStore(cfg))
				if err != nil {
					return err
				}
				parsed, err := agenttype.Parse(agentType, registry)
				if err != nil {
					return fmt.Errorf("parse --agent-type: %w", err)
				}
				parsedAgentType = parsed.AgentName
			}

			plan := core.AddPlan(planName, description, "")
			for _, name := range taskNames {
				task, err := core.AddTask(name, name, models.PriorityNormal, plan.ID, nil)
				if err != nil {
					return fmt.Errorf("add task %q: %w", name, err)
				}
				task.AgentType = parsedAgentType
			}

			if cfg.DryRun {
				fmt.Fprintf(c.OutOrStdout(), "dry run: would deploy %d task(s) for plan %s\n", len(taskNames), plan.ID)
				return nil
			}

			ctx, cancel := context.WithTimeout(c.Context(), cfg.Timeout)
			defer cancel()

			if errs := core.DeployAll(ctx); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(c.ErrOrStderr(), "deploy error: %v\n", e)
				}
				return fmt.Errorf("%d task(s) failed to deploy", len(errs))
			}

			core.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to .orchestrator/config.yaml)")
	cmd.Flags().StringVar(&planName, "plan", "default", "name of the plan to create")
	cmd.Flags().StringVar(&description, "description", "", "plan description")
	cmd.Flags().StringSliceVar(&taskNames, "task", nil, "task name to deploy (repeatable)")
	cmd.Flags().StringVar(&agentType, "agent-type", "", "backend:name, @name, or name; applied to every task in this run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be deployed without running it")

	return cmd
}
