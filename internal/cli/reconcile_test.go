package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_PublishesUploadedSnapshots(t *testing.T) {
	remote := bareRemote(t)
	e := newCLIEnv(t, "http://127.0.0.1:1", "tracking:\n  remote: "+remote+"\n  dir: "+t.TempDir()+"\n")

	e.stdin = "numpy==1.26.0\n"
	_, _, err := e.run("snapshot", "3.11", "--input", "-")
	require.NoError(t, err)
	_, _, err = e.run("upload", "3.11")
	require.NoError(t, err)

	out, _, err := e.run("reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed ")
	assert.Contains(t, out, "constraints-3.11.txt: added")
	assert.Contains(t, out, "missing snapshots: 3.9")

	content, ok := showFile(t, remote, "constraints-main", "constraints-3.11.txt")
	require.True(t, ok)
	assert.Equal(t, "numpy==1.26.0\n", content)
}

func TestReconcile_DeniedRunDoesNothing(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.env["GITHUB_REF_NAME"] = "feature/x"

	out, _, err := e.run("reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped:")
}

func TestReconcile_NoRemote(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")

	_, errOut, err := e.run("reconcile")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "no tracking remote")
}
