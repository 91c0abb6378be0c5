package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/store"
)

const freezeOutput = `numpy==1.26.0
-e git+https://github.com/acme/widgets@0123abc#egg=widgets
Attrs==23.1.0
widgets @ file:///home/runner/work/widgets
`

func TestSnapshot_FromStdin(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.stdin = freezeOutput

	out, _, err := e.run("snapshot", "max", "--input", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "3.11: 2 pins")

	data, err := os.ReadFile(e.snapshotPath("3.11"))
	require.NoError(t, err)
	assert.Equal(t, "Attrs==23.1.0\nnumpy==1.26.0\n", string(data))
}

func TestSnapshot_FromFileJSON(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	input := filepath.Join(e.dir, "freeze.txt")
	require.NoError(t, os.WriteFile(input, []byte(freezeOutput), 0644))

	out, _, err := e.run("--format", "json", "snapshot", "3.10", "-i", input)
	require.NoError(t, err)

	var resp struct {
		Data SnapshotResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "3.10", resp.Data.Cell)
	assert.Equal(t, e.snapshotPath("3.10"), resp.Data.Path)
	require.Len(t, resp.Data.Pins, 2)
	assert.Equal(t, "numpy", resp.Data.Pins[1].Name)
}

func TestSnapshot_FromFreezeCommand(t *testing.T) {
	requireTool(t, "sh")
	e := newCLIEnv(t, "http://127.0.0.1:1", `matrix:
  freeze: 'echo "numpy==1.26.0"; echo "pinsync-cell==$PINSYNC_CELL"'
`)

	_, _, err := e.run("snapshot", "3.9")
	require.NoError(t, err)

	data, err := os.ReadFile(e.snapshotPath("3.9"))
	require.NoError(t, err)
	assert.Equal(t, "numpy==1.26.0\npinsync-cell==3.9\n", string(data))
}

func TestSnapshot_UnparseableInput(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.stdin = "this is not pip freeze output\n"

	_, errOut, err := e.run("snapshot", "3.11", "--input", "-")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "E_SNAPSHOT")
	assert.NoFileExists(t, e.snapshotPath("3.11"))
}

func TestUpload_UsesCIRunID(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.stdin = freezeOutput
	_, _, err := e.run("snapshot", "3.11", "--input", "-")
	require.NoError(t, err)

	out, _, err := e.run("upload", "3.11")
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded constraints-3.11")
	assert.Contains(t, out, "for run 7001")
}

func TestUpload_MissingSnapshotFails(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")

	_, errOut, err := e.run("upload", "3.11", "--run-id", "local-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, errOut, "E_UPLOAD")
	assert.Contains(t, errOut, "no files found")
}

func TestUpload_NoRunID(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	delete(e.env, "GITHUB_RUN_ID")

	_, errOut, err := e.run("upload", "3.11")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "GITHUB_RUN_ID")
}

func TestUpload_RecordsJobStatus(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")

	_, _, err := e.run("upload", "3.10", "--job-status", "failure")
	require.Error(t, err)

	st, err := store.Open(filepath.Join(e.dir, "db", "artifacts.db"))
	require.NoError(t, err)
	defer st.Close()

	outcomes, err := st.ReadOutcomes(context.Background(), "7001")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ir.CellFailed, outcomes[0].Status)
	step, ok := outcomes[0].Step("upload")
	require.True(t, ok)
	assert.Contains(t, step.Error, "no files found")
}

func TestParseJobStatus(t *testing.T) {
	for in, want := range map[string]ir.CellStatus{
		"":          "",
		"success":   ir.CellPassed,
		"passed":    ir.CellPassed,
		"failure":   ir.CellFailed,
		"cancelled": ir.CellCancelled,
	} {
		got, err := parseJobStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseJobStatus("skipped")
	assert.Error(t, err)
}
