package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/baseline"
	"github.com/roach88/pinsync/internal/buildinfo"
	"github.com/roach88/pinsync/internal/gate"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/matrix"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/snapshot"
	"github.com/roach88/pinsync/internal/store"
	"github.com/roach88/pinsync/internal/testutil"
)

// errNotInstalled is the freeze error of a cell without an environment.
var errNotInstalled = errors.New("interpreter not installed")

// Harness executes scenarios.
type Harness struct {
	logger *zap.Logger
}

// New creates a harness. A nil logger discards pipeline logs.
func New(logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a no-op logger.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(context.Background(), scenario)
}

// Run executes a scenario and evaluates its assertions.
//
// Each scenario gets a fresh in-memory store, tracking repository, snapshot
// directory and baseline server. The returned error covers setup failures
// only; pipeline errors are recorded in Result.RunError.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	dir, err := os.MkdirTemp("", "pinsync-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srv := httptest.NewServer(baselineHandler(scenario.Baselines))
	defer srv.Close()

	repo := testutil.NewMemoryRepo()
	repo.RejectPushes = scenario.RejectPush
	branch := ir.TrackingBranch(scenario.Run.RefName)
	if len(scenario.Tracking) > 0 {
		repo.Seed(branch, scenario.Tracking)
	}

	var diff bytes.Buffer
	p := &pipeline.Pipeline{
		Provider: buildinfo.Static(scenario.BuildInfo),
		Job:      &testutil.ScriptedJob{Failures: scenario.Jobs},
		Freezer:  environmentFreezer(scenario.Environments),
		Writer:   snapshot.NewWriter(dir),
		Differ: baseline.New(baseline.Options{
			URLTemplate: srv.URL + "/{cell}",
			Repository:  scenario.Run.Repository,
			Branch:      scenario.Run.RunContext().DiffBranch(),
			Out:         &diff,
			Logger:      h.logger,
		}),
		Store:       st,
		Repo:        repo,
		Policy:      gate.Policy(scenario.Policy),
		Concurrency: 1,
		RunIDs:      testutil.NewFixedRunIDGenerator(scenario.RunID),
		Logger:      h.logger,
	}

	report, runErr := p.Run(ctx, pipeline.Options{
		Run:    scenario.Run.RunContext(),
		Matrix: matrix.Request{Declared: scenario.Matrix.Cells, ForceCanary: scenario.Matrix.ForceCanary},
	})

	result := NewResult()
	result.Report = report
	if runErr != nil {
		result.RunError = runErr.Error()
	}
	result.Commits = repo.Commits()
	if files := repo.Files(branch); files != nil {
		result.Tracking = files
	}
	result.Diff = diff.String()

	for _, a := range scenario.Assertions {
		if err := evaluate(a, result, runErr); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func baselineHandler(baselines map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := baselines[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(content))
	})
}

func environmentFreezer(envs map[string]string) pipeline.Freezer {
	return pipeline.FreezerFunc(func(ctx context.Context, cell ir.MatrixCell) ([]snapshot.Requirement, error) {
		out, ok := envs[cell.ID]
		if !ok {
			return nil, errNotInstalled
		}
		return snapshot.ParseFreeze(strings.NewReader(out))
	})
}
