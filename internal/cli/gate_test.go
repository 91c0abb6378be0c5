package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/gate"
)

func TestGate_PushToMainAllowed(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")

	out, _, err := e.run("gate")
	require.NoError(t, err)
	assert.Equal(t, "allowed: push to main\n", out)
}

func TestGate_ForkDenied(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.env["GITHUB_REPOSITORY"] = "mallory/widgets"

	out, _, err := e.run("--format", "json", "gate")
	require.NoError(t, err)

	var resp struct {
		Data gate.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Allowed)
	assert.Contains(t, resp.Data.Reason, "mallory/widgets")
}

func TestGate_StrictDenialExitsOne(t *testing.T) {
	e := newCLIEnv(t, "http://127.0.0.1:1", "")
	e.env["GITHUB_EVENT_NAME"] = "pull_request"

	out, _, err := e.run("gate", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "denied:")
}
