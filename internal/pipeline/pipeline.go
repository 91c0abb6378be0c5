package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/baseline"
	"github.com/roach88/pinsync/internal/buildinfo"
	"github.com/roach88/pinsync/internal/gate"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/matrix"
	"github.com/roach88/pinsync/internal/reconcile"
	"github.com/roach88/pinsync/internal/snapshot"
	"github.com/roach88/pinsync/internal/store"
)

// ErrNoRepository is returned when the gate allows publication but no
// tracking repository is configured.
var ErrNoRepository = errors.New("no tracking repository configured")

// Pipeline wires the stages together. All fields except Repo, Provider,
// RunIDs and Logger are required.
type Pipeline struct {
	Provider    buildinfo.Provider
	Job         matrix.Job
	Freezer     Freezer
	Writer      *snapshot.Writer
	Differ      *baseline.Differ
	Store       *store.Store
	Repo        reconcile.Repository
	Policy      gate.Policy
	Concurrency int
	RunIDs      RunIDGenerator
	Logger      *zap.Logger
}

// Options are the per-run inputs.
type Options struct {
	Run    ir.RunContext
	Matrix matrix.Request
}

// Report is the result of one run.
type Report struct {
	RunID     string            `json:"run_id"`
	Cells     []ir.MatrixCell   `json:"cells"`
	Outcomes  []ir.CellOutcome  `json:"outcomes"`
	Summary   matrix.Summary    `json:"summary"`
	Gate      gate.Decision     `json:"gate"`
	Reconcile *reconcile.Result `json:"reconcile,omitempty"`
}

// CellsFailed reports whether any cell's job did not pass.
func (r *Report) CellsFailed() bool {
	return r.Summary.Passed != r.Summary.Total
}

// Run executes one pipeline run. Only resolution errors, cancellation and
// reconciler failures are returned; everything per-cell is in the report.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rc := opts.Run
	if rc.RunID == "" {
		rc.RunID = p.runIDs().Generate()
	}
	log := p.logger().With(zap.String("run_id", rc.RunID))
	report := &Report{RunID: rc.RunID}

	cells, err := matrix.Resolve(ctx, opts.Matrix, p.Provider)
	if err != nil {
		return report, err
	}
	report.Cells = cells
	log.Info("matrix resolved", zap.Int("cells", len(cells)), zap.Bool("canary", opts.Matrix.ForceCanary))

	orch := matrix.New(p.Job,
		matrix.WithConcurrency(p.Concurrency),
		matrix.WithPostSteps(p.postSteps(rc.RunID, &snapshots{})...),
		matrix.WithLogger(log))
	report.Outcomes = orch.Dispatch(ctx, cells)
	report.Summary = matrix.Summarize(report.Outcomes)

	for _, o := range report.Outcomes {
		if err := p.Store.RecordOutcome(ctx, rc.RunID, o); err != nil {
			log.Warn("failed to record cell outcome", zap.String("cell", o.Cell.ID), zap.Error(err))
		}
		if s, ok := o.Step(StepUpload); ok && !s.OK() {
			log.Warn("snapshot upload failed", zap.String("cell", o.Cell.ID), zap.String("error", s.Error))
		}
	}
	log.Info("matrix finished",
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("cancelled", report.Summary.Cancelled))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run superseded: %w", err)
	}

	report.Gate = gate.Evaluate(p.Policy, rc)
	if !report.Gate.Allowed {
		log.Info("not permitted to publish", zap.String("reason", report.Gate.Reason))
		return report, nil
	}
	if p.Repo == nil {
		return report, ErrNoRepository
	}

	res, err := reconcile.New(p.Store, p.Repo, log).Run(ctx, reconcile.Request{
		Run:   rc,
		Cells: cells,
	})
	report.Reconcile = &res
	if err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) validate() error {
	switch {
	case p.Job == nil:
		return fmt.Errorf("pipeline: job is nil")
	case p.Freezer == nil:
		return fmt.Errorf("pipeline: freezer is nil")
	case p.Writer == nil:
		return fmt.Errorf("pipeline: snapshot writer is nil")
	case p.Differ == nil:
		return fmt.Errorf("pipeline: baseline differ is nil")
	case p.Store == nil:
		return fmt.Errorf("pipeline: artifact store is nil")
	}
	return nil
}

func (p *Pipeline) runIDs() RunIDGenerator {
	if p.RunIDs == nil {
		return UUIDv7Generator{}
	}
	return p.RunIDs
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
