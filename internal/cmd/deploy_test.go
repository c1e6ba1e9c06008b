package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeployCommand_UnknownTaskErrors(t *testing.T) {
	root := t.TempDir()
	cmd := newDeployCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", configFile(t, root), "task-404"})

	assert.Error(t, cmd.Execute())
}
