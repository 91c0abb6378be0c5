package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pinsync", cmd.Use)
	assert.Contains(t, cmd.Long, "tracking branch")
	assert.Equal(t, ir.ToolVersion, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"resolve", "snapshot", "diff", "upload", "gate", "reconcile", "run", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	_, _, err := e.run("--format", "yaml", "gate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestBadConfigIsCommandError(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "unknown_section: true\n")
	_, _, err := e.run("gate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestMissingExplicitConfig(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.config = e.dir + "/nope.yaml"
	_, _, err := e.run("gate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
