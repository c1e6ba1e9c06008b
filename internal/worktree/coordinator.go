package worktree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harrison/orchestrator/internal/logger"
	"github.com/harrison/orchestrator/internal/orcherrors"
)

// MergeResult is the outcome of a pull-merge attempt. A conflict is data,
// not an error — the caller inspects HasConflicts and decides what to do.
type MergeResult struct {
	Success      bool
	HasConflicts bool
	ConflictFiles []string
	MergedFiles   []string
}

// Coordinator implements C5 against a single git repository. workspaceRoot
// is the main worktree's path; per-worker worktrees are created under
// worktreeParent/<name>, which defaults to "<workspaceRoot's parent>/
// .worktrees" per spec.md §4.5 when worktreeParent is empty.
type Coordinator struct {
	runner         CommandRunner
	workspaceRoot  string
	worktreeParent string
	log            logger.Logger
}

// New constructs a Coordinator. runner defaults to a ShellCommandRunner
// rooted at workspaceRoot when nil. worktreeParent is the directory new
// worktrees are nested under (config's worktree.worktree_parent); a
// relative path is resolved against workspaceRoot, and an empty string
// falls back to the spec's default sibling ".worktrees" directory.
func New(workspaceRoot string, runner CommandRunner, worktreeParent string, log logger.Logger) *Coordinator {
	if runner == nil {
		runner = NewShellCommandRunner(workspaceRoot)
	}
	return &Coordinator{runner: runner, workspaceRoot: workspaceRoot, worktreeParent: worktreeParent, log: log}
}

func (c *Coordinator) run(ctx context.Context, dir, command string) (string, error) {
	if dir == "" || dir == c.workspaceRoot {
		return c.runner.Run(ctx, command)
	}
	return c.runner.Run(ctx, fmt.Sprintf("cd %s && %s", shellQuote(dir), command))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// DetectDefaultBranch asks the origin for its symbolic HEAD, falling back to
// probing main then master.
func (c *Coordinator) DetectDefaultBranch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.workspaceRoot, "git symbolic-ref refs/remotes/origin/HEAD")
	if err == nil {
		ref := strings.TrimSpace(out)
		if idx := strings.LastIndex(ref, "/"); idx >= 0 {
			return ref[idx+1:], nil
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if _, err := c.run(ctx, c.workspaceRoot, fmt.Sprintf("git show-ref --verify --quiet refs/heads/%s", candidate)); err == nil {
			return candidate, nil
		}
	}

	return "", &orcherrors.InfrastructureError{Subkind: orcherrors.InfraBranch, Message: "could not detect a default branch"}
}

// worktreesDir resolves the configured worktree parent, falling back to
// "<parent of workspaceRoot>/.worktrees" per spec.md §4.5 when unset.
func (c *Coordinator) worktreesDir() string {
	if c.worktreeParent == "" {
		return filepath.Join(filepath.Dir(c.workspaceRoot), ".worktrees")
	}
	if filepath.IsAbs(c.worktreeParent) {
		return c.worktreeParent
	}
	return filepath.Join(c.workspaceRoot, c.worktreeParent)
}

// CreateWorktree creates (or returns the existing) worktree for
// sanitizedName off baseBranch. If the branch already exists, it retries
// without -b and checks out the existing branch instead.
func (c *Coordinator) CreateWorktree(ctx context.Context, sanitizedName, baseBranch string) (string, error) {
	path := filepath.Join(c.worktreesDir(), sanitizedName)

	if _, err := c.run(ctx, c.workspaceRoot, fmt.Sprintf("test -d %s", shellQuote(path))); err == nil {
		return path, nil
	}

	addCmd := fmt.Sprintf("git worktree add -b %s %s %s", sanitizedName, shellQuote(path), baseBranch)
	if _, err := c.run(ctx, c.workspaceRoot, addCmd); err != nil {
		retryCmd := fmt.Sprintf("git worktree add %s %s", shellQuote(path), sanitizedName)
		if _, retryErr := c.run(ctx, c.workspaceRoot, retryCmd); retryErr != nil {
			return "", &orcherrors.InfrastructureError{Subkind: orcherrors.InfraWorktree, Message: "failed to create worktree for " + sanitizedName, Err: retryErr}
		}
	}

	return path, nil
}

// hasUncommittedChanges reports whether dir's working tree has changes.
func (c *Coordinator) hasUncommittedChanges(ctx context.Context, dir string) (bool, error) {
	out, err := c.run(ctx, dir, "git status --porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (c *Coordinator) currentBranch(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, dir, "git branch --show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PullMerge implements the parent<-child pull-merge protocol (spec.md
// §4.5): auto-commit the child's uncommitted changes, then merge the
// child's branch into the parent without committing. cleanup, when true and
// the merge was clean, removes the child worktree and deletes its branch.
func (c *Coordinator) PullMerge(ctx context.Context, parentDir, childDir string, cleanup bool) (*MergeResult, error) {
	dirty, err := c.hasUncommittedChanges(ctx, childDir)
	if err != nil {
		return nil, &orcherrors.InfrastructureError{Subkind: orcherrors.InfraGit, Message: "checking child worktree status", Err: err}
	}
	if dirty {
		if _, err := c.run(ctx, childDir, `git add -A && git commit -m "checkpoint before merge" --allow-empty`); err != nil {
			return nil, &orcherrors.InfrastructureError{Subkind: orcherrors.InfraGit, Message: "auto-committing child changes", Err: err}
		}
	}

	childBranch, err := c.currentBranch(ctx, childDir)
	if err != nil {
		return nil, &orcherrors.InfrastructureError{Subkind: orcherrors.InfraBranch, Message: "determining child branch", Err: err}
	}

	mergeCmd := fmt.Sprintf("git merge --no-commit --no-ff %s", childBranch)
	out, err := c.run(ctx, parentDir, mergeCmd)
	if err != nil {
		conflictOut, _ := c.run(ctx, parentDir, "git diff --name-only --diff-filter=U")
		files := splitNonEmptyLines(conflictOut)
		if len(files) > 0 {
			return &MergeResult{Success: false, HasConflicts: true, ConflictFiles: files}, nil
		}
		return nil, &orcherrors.InfrastructureError{Subkind: orcherrors.InfraGit, Message: "merge failed: " + strings.TrimSpace(out), Err: err}
	}

	mergedOut, _ := c.run(ctx, parentDir, "git diff --name-only --cached")
	result := &MergeResult{Success: true, MergedFiles: splitNonEmptyLines(mergedOut)}

	if cleanup {
		c.run(ctx, c.workspaceRoot, fmt.Sprintf("git worktree remove %s --force", shellQuote(childDir)))
		c.run(ctx, c.workspaceRoot, fmt.Sprintf("git branch -D %s", childBranch))
	}

	return result, nil
}

// CompletePush runs the final handoff from a worker's worktree: commit,
// push, and remove the worktree from the workspace root.
func (c *Coordinator) CompletePush(ctx context.Context, workerDir, branch, commitMessage string) error {
	commitCmd := fmt.Sprintf(`git add -A && git commit -m %s --allow-empty`, shellQuote(commitMessage))
	if _, err := c.run(ctx, workerDir, commitCmd); err != nil {
		return &orcherrors.InfrastructureError{Subkind: orcherrors.InfraGit, Message: "committing worker changes", Err: err}
	}

	pushCmd := fmt.Sprintf("git push -u origin %s", branch)
	if _, err := c.run(ctx, workerDir, pushCmd); err != nil {
		return &orcherrors.InfrastructureError{Subkind: orcherrors.InfraGit, Message: "pushing worker branch", Err: err}
	}

	removeCmd := fmt.Sprintf("git worktree remove %s --force", shellQuote(workerDir))
	if _, err := c.run(ctx, c.workspaceRoot, removeCmd); err != nil {
		if c.log != nil {
			c.log.Warn("worktree remove failed after successful push", logger.F("path", workerDir), logger.F("error", err))
		}
	}

	if c.log != nil {
		c.log.Info("worker completed and pushed", logger.F("branch", branch))
	}
	return nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
