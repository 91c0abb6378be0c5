package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors:\n%s", strings.Join(result.Errors, "\n"))

			golden := filepath.Join("testdata", "golden", scenario.Name+".golden")
			if _, err := os.Stat(golden); err == nil {
				AssertGolden(t, scenario.Name, result)
			}
		})
	}
}

func TestRun_FailingCellStillPublishes(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "one_cell_fails.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, strings.Join(result.Errors, "\n"))

	want := map[string]string{
		"constraints-3.8.txt":  "attrs==22.2.0\n",
		"constraints-3.9.txt":  "attrs==23.1.0\nnumpy==1.25.2\n",
		"constraints-3.10.txt": "attrs==23.1.0\nnumpy==1.26.0\n",
		"constraints-3.11.txt": "attrs==23.1.0\nnumpy==1.26.0\n",
	}
	if diff := cmp.Diff(want, result.Tracking); diff != "" {
		t.Errorf("tracking branch mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, result.Commits, 1)
	assert.Equal(t, ir.TrackingBranch("main"), result.Commits[0].Branch)
	assert.Contains(t, result.Commits[0].Message, "Run id: run-0001")
	assert.Equal(t, 1, result.Report.Summary.Failed)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	changed := true
	scenario := &Scenario{
		Name:        "expect_the_wrong_thing",
		Description: "Fork pushes never commit, so this assertion fails",
		RunID:       "run-0099",
		Run:         RunSpec{EventName: "push", Repository: "mallory/widgets", RefName: "main"},
		Policy:      PolicySpec{Repository: "acme/widgets", Branches: []string{"main"}},
		Matrix:      MatrixSpec{Cells: []string{"3.11"}},
		Environments: map[string]string{
			"3.11": "numpy==1.26.0\n",
		},
		Assertions: []Assertion{{Type: AssertCommitted, Changed: &changed}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "changed=true")
	assert.Empty(t, result.Commits)
	assert.False(t, result.Report.Gate.Allowed)
}

func TestRun_PushConflictIsRecorded(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "push_conflict.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Contains(t, result.RunError, ir.TrackingBranch("main"))
	assert.Empty(t, result.Commits)
}

func TestTranscript_NoReport(t *testing.T) {
	r := NewResult()
	r.RunError = "resolve matrix: no cells declared\nmore detail"

	out := Transcript("broken", r)
	assert.Contains(t, out, "scenario: broken\n")
	assert.Contains(t, out, "report: none\n")
	assert.Contains(t, out, "error: resolve matrix: no cells declared\n")
	assert.NotContains(t, out, "more detail")
}
