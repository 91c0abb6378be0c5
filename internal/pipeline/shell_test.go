package pipeline

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/snapshot"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

var cell311 = ir.MatrixCell{ID: "3.11", Version: "3.11", UseConstraints: true}

func TestCellEnv(t *testing.T) {
	assert.Equal(t, []string{
		"PINSYNC_CELL=3.11",
		"PINSYNC_PYTHON_VERSION=3.11",
		"PINSYNC_CANARY=false",
		"PINSYNC_USE_CONSTRAINTS=true",
		"PINSYNC_CONSTRAINTS_FILE=constraints-3.11.txt",
	}, CellEnv(cell311))
}

func TestShellJob_PassAndFail(t *testing.T) {
	requireShell(t)
	ctx := context.Background()

	require.NoError(t, ShellJob{Command: `test "$PINSYNC_CELL" = 3.11`}.Run(ctx, cell311))

	err := ShellJob{Command: "echo boom >&2; exit 3"}.Run(ctx, cell311)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestShellJob_EmptyCommandPasses(t *testing.T) {
	assert.NoError(t, ShellJob{}.Run(context.Background(), cell311))
}

func TestShellJob_Cancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ShellJob{Command: "sleep 5"}.Run(ctx, cell311)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShellFreezer(t *testing.T) {
	requireShell(t)

	reqs, err := ShellFreezer{Command: `printf 'numpy==1.26.0\n-e /src/widgets\nattrs==23.1.0\n'`}.Freeze(context.Background(), cell311)
	require.NoError(t, err)

	snap := snapshot.Generate("3.11", reqs)
	assert.Equal(t, "attrs==23.1.0\nnumpy==1.26.0\n", string(snap.Bytes()))
}

func TestShellFreezer_Errors(t *testing.T) {
	_, err := ShellFreezer{}.Freeze(context.Background(), cell311)
	assert.Error(t, err)

	requireShell(t)
	_, err = ShellFreezer{Command: "exit 1"}.Freeze(context.Background(), cell311)
	assert.Error(t, err)

	_, err = ShellFreezer{Command: "echo 'not a pin'"}.Freeze(context.Background(), cell311)
	assert.True(t, snapshot.IsParseError(err))
}
