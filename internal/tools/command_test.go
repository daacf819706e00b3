package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	cmds, err := parseCommands(`[{"cmd":"ls","args":["-l"]},{"cmd":"pwd"}]`)
	require.NoError(t, err)
	assert.Equal(t, []Command{{Cmd: "ls", Args: []string{"-l"}}, {Cmd: "pwd"}}, cmds)

	cmds, err = parseCommands(`{"cmd":"echo","args":["hi"]}`)
	require.NoError(t, err)
	assert.Equal(t, []Command{{Cmd: "echo", Args: []string{"hi"}}}, cmds)

	cmds, err = parseCommands("echo hello world")
	require.NoError(t, err)
	assert.Equal(t, []Command{{Cmd: "echo", Args: []string{"hello", "world"}}}, cmds)

	_, err = parseCommands("")
	assert.Error(t, err)
	_, err = parseCommands(`[]`)
	assert.Error(t, err)
	_, err = parseCommands(`[{"args":["x"]}]`)
	assert.Error(t, err)
}

func TestCommandExecutorAllowList(t *testing.T) {
	c := &CommandExecutor{Allowed: []string{"echo"}}

	out, err := c.Run(context.Background(), `[{"cmd":"echo","args":["hello"]}]`)
	require.NoError(t, err)
	assert.Equal(t, "$ echo hello\nhello\n", out)

	_, err = c.Run(context.Background(), "rm -rf /tmp/nothing")
	assert.ErrorContains(t, err, "not allowed")
}
