package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFile(t *testing.T, root string) string {
	t.Helper()
	cfgPath := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"log_dir: "+filepath.Join(root, "logs")+"\nworktree:\n  workspace_root: "+root+"\nqueue:\n  state_path: "+filepath.Join(root, "state.json")+"\n"), 0644))
	return cfgPath
}

func TestEmergencyStopCommand_GlobalScopeRequiresNoID(t *testing.T) {
	root := t.TempDir()
	cmd := newEmergencyStopCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", configFile(t, root), "--scope", "global"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "cancelled 0 sub-task(s)")
}

func TestEmergencyStopCommand_WorkerScopeRequiresID(t *testing.T) {
	root := t.TempDir()
	cmd := newEmergencyStopCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", configFile(t, root), "--scope", "worker"})

	assert.Error(t, cmd.Execute())
}

func TestEmergencyStopCommand_UnknownScopeErrors(t *testing.T) {
	root := t.TempDir()
	cmd := newEmergencyStopCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", configFile(t, root), "--scope", "bogus", "x"})

	assert.Error(t, cmd.Execute())
}
