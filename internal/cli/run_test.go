package cli

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pipeline"
)

func pipelineConfig(t *testing.T, remote, job string) string {
	t.Helper()
	cfg := fmt.Sprintf(`matrix:
  cells: [min, "3.10", max]
  job: '%s'
  freeze: 'echo "numpy==1.26.0"; echo "cell==$PINSYNC_CELL"'
`, job)
	if remote != "" {
		cfg += fmt.Sprintf("tracking:\n  remote: %s\n  dir: %s\n", remote, t.TempDir())
	}
	return cfg
}

func TestRun_FailingCellStillPublishes(t *testing.T) {
	requireTool(t, "sh")
	remote := bareRemote(t)
	e := newCLIEnv(t, baselineServer(t, nil).URL, pipelineConfig(t, remote, `test "$PINSYNC_CELL" != "3.10"`))

	out, _, err := e.run("run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 3 cell(s) did not pass")
	assert.Contains(t, out, "3.10: failed")
	assert.Contains(t, out, "gate: allowed (push to main)")
	assert.Contains(t, out, "pushed ")

	for _, cell := range []string{"3.9", "3.10", "3.11"} {
		content, ok := showFile(t, remote, "constraints-main", ir.SnapshotFileName(cell))
		require.True(t, ok, "snapshot for %s not published", cell)
		assert.Equal(t, "cell=="+cell+"\nnumpy==1.26.0\n", content)
	}
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	requireTool(t, "sh")
	remote := bareRemote(t)
	e := newCLIEnv(t, baselineServer(t, nil).URL, pipelineConfig(t, remote, "true"))

	_, _, err := e.run("run")
	require.NoError(t, err)

	e.env["GITHUB_RUN_ID"] = "7002"
	out, _, err := e.run("run")
	require.NoError(t, err)
	assert.Contains(t, out, "no changes on constraints-main")
	assert.Contains(t, out, "constraints-3.11.txt: unchanged")
}

func TestRun_JSONReport(t *testing.T) {
	requireTool(t, "sh")
	e := newCLIEnv(t, baselineServer(t, nil).URL, pipelineConfig(t, "", "true"))
	e.env["GITHUB_EVENT_NAME"] = "pull_request"
	delete(e.env, "GITHUB_RUN_ID")

	out, _, err := e.run("--format", "json", "run")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   pipeline.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.RunID, "a local run id is generated")
	assert.Equal(t, 3, resp.Data.Summary.Passed)
	assert.False(t, resp.Data.Gate.Allowed)
	assert.Nil(t, resp.Data.Reconcile)
}

func TestRun_AllowedWithoutRemoteIsCommandError(t *testing.T) {
	requireTool(t, "sh")
	e := newCLIEnv(t, baselineServer(t, nil).URL, pipelineConfig(t, "", "true"))

	_, errOut, err := e.run("run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "no tracking remote")
}

func TestRun_UnresolvableMatrix(t *testing.T) {
	e := newCLIEnv(t, baselineServer(t, nil).URL, "build_info:\n  file: /nonexistent/build-info.cue\n")

	_, errOut, err := e.run("run", "max")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "E_RESOLVE")
}
