package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	require.NotNil(t, root)
	assert.Equal(t, "orchestrator", root.Use)
}

func TestRootCommandHasExpectedSubcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "deploy")
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "emergency-stop")
}

func TestRootCommandHelp(t *testing.T) {
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--help"})
	_ = root.Execute()

	assert.True(t, strings.Contains(buf.String(), "orchestrator"))
}

func TestLoadConfig_EmptyPathUsesBuildTimeRoot(t *testing.T) {
	dir := t.TempDir()
	OrchestratorRepoRoot = dir
	t.Cleanup(func() { OrchestratorRepoRoot = "" })

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
