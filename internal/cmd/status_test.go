package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand_PrintsEmptyTablesWhenNoState(t *testing.T) {
	root := t.TempDir()
	cfgPath := configFile(t, root)

	cmd := newStatusCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "PLAN")
	assert.Contains(t, buf.String(), "WORKER")
}
