package worktree

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/harrison/orchestrator/internal/orcherrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every command it receives and returns a canned
// response (or error) looked up by substring match, mirroring the teacher's
// test style for CommandRunner-dependent code (see git_checkpointer tests).
type fakeRunner struct {
	calls     []string
	responses map[string]string
	errors    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]string), errors: make(map[string]error)}
}

func (f *fakeRunner) Run(ctx context.Context, command string) (string, error) {
	f.calls = append(f.calls, command)
	for substr, err := range f.errors {
		if strings.Contains(command, substr) {
			return "", err
		}
	}
	for substr, resp := range f.responses {
		if strings.Contains(command, substr) {
			return resp, nil
		}
	}
	return "", nil
}

func TestCoordinator_DetectDefaultBranch_FromOriginHead(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["symbolic-ref"] = "refs/remotes/origin/main\n"

	c := New("/repo", runner, "", nil)
	branch, err := c.DetectDefaultBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestCoordinator_DetectDefaultBranch_FallsBackToMaster(t *testing.T) {
	runner := newFakeRunner()
	runner.errors["symbolic-ref"] = fmt.Errorf("no remote")
	runner.errors["refs/heads/main"] = fmt.Errorf("not found")
	// refs/heads/master succeeds (no error registered)

	c := New("/repo", runner, "", nil)
	branch, err := c.DetectDefaultBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCoordinator_DetectDefaultBranch_AllFail(t *testing.T) {
	runner := newFakeRunner()
	runner.errors["symbolic-ref"] = fmt.Errorf("no remote")
	runner.errors["refs/heads/main"] = fmt.Errorf("not found")
	runner.errors["refs/heads/master"] = fmt.Errorf("not found")

	c := New("/repo", runner, "", nil)
	_, err := c.DetectDefaultBranch(context.Background())
	require.Error(t, err)
	var infraErr *orcherrors.InfrastructureError
	assert.ErrorAs(t, err, &infraErr)
}

func TestCoordinator_CreateWorktree_ReturnsExistingDir(t *testing.T) {
	runner := newFakeRunner()
	// "test -d" succeeds (no error registered) => path already exists

	c := New("/repo", runner, "", nil)
	path, err := c.CreateWorktree(context.Background(), "my-task", "main")
	require.NoError(t, err)
	assert.Contains(t, path, "my-task")
	assert.Contains(t, path, ".worktrees")
}

func TestCoordinator_CreateWorktree_UsesConfiguredRelativeParent(t *testing.T) {
	runner := newFakeRunner()

	c := New("/repo", runner, ".orchestrator/worktrees", nil)
	path, err := c.CreateWorktree(context.Background(), "my-task", "main")
	require.NoError(t, err)
	assert.Equal(t, "/repo/.orchestrator/worktrees/my-task", path)
}

func TestCoordinator_CreateWorktree_UsesConfiguredAbsoluteParent(t *testing.T) {
	runner := newFakeRunner()

	c := New("/repo", runner, "/var/orchestrator-worktrees", nil)
	path, err := c.CreateWorktree(context.Background(), "my-task", "main")
	require.NoError(t, err)
	assert.Equal(t, "/var/orchestrator-worktrees/my-task", path)
}

func TestCoordinator_CreateWorktree_RetriesWithoutBOnExistingBranch(t *testing.T) {
	runner := newFakeRunner()
	runner.errors["test -d"] = fmt.Errorf("not found")
	runner.errors["git worktree add -b"] = fmt.Errorf("branch already exists")
	// plain "git worktree add" (no -b) succeeds

	c := New("/repo", runner, "", nil)
	path, err := c.CreateWorktree(context.Background(), "existing-branch", "main")
	require.NoError(t, err)
	assert.Contains(t, path, "existing-branch")
}

func TestCoordinator_PullMerge_Conflict(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["git status --porcelain"] = "" // clean, skip auto-commit
	runner.responses["git branch --show-current"] = "child-branch\n"
	runner.errors["git merge"] = fmt.Errorf("merge conflict")
	runner.responses["diff --name-only --diff-filter=U"] = "a.go\nb.go\n"

	c := New("/repo", runner, "", nil)
	result, err := c.PullMerge(context.Background(), "/repo/parent", "/repo/child", false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.HasConflicts)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, result.ConflictFiles)
}

func TestCoordinator_PullMerge_Clean(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["git status --porcelain"] = ""
	runner.responses["git branch --show-current"] = "child-branch\n"
	runner.responses["diff --name-only --cached"] = "file1.go\n"

	c := New("/repo", runner, "", nil)
	result, err := c.PullMerge(context.Background(), "/repo/parent", "/repo/child", true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.HasConflicts)
	assert.Contains(t, result.MergedFiles, "file1.go")

	found := false
	for _, call := range runner.calls {
		if strings.Contains(call, "worktree remove") {
			found = true
		}
	}
	assert.True(t, found, "expected cleanup to remove the child worktree")
}

func TestCoordinator_CompletePush(t *testing.T) {
	runner := newFakeRunner()
	c := New("/repo", runner, "", nil)

	err := c.CompletePush(context.Background(), "/repo/.worktrees/my-task", "my-task", "Complete task: my-task")
	require.NoError(t, err)

	var sawCommit, sawPush, sawRemove bool
	for _, call := range runner.calls {
		if strings.Contains(call, "git commit") {
			sawCommit = true
		}
		if strings.Contains(call, "git push") {
			sawPush = true
		}
		if strings.Contains(call, "worktree remove") {
			sawRemove = true
		}
	}
	assert.True(t, sawCommit)
	assert.True(t, sawPush)
	assert.True(t, sawRemove)
}
