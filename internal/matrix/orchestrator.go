package matrix

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pinsync/internal/ir"
)

// Job runs the opaque test/build step for one cell.
// A non-nil error marks the cell failed.
type Job interface {
	Run(ctx context.Context, cell ir.MatrixCell) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context, cell ir.MatrixCell) error

// Run calls f(ctx, cell).
func (f JobFunc) Run(ctx context.Context, cell ir.MatrixCell) error {
	return f(ctx, cell)
}

// PostStep is work attached to every cell after its job.
type PostStep struct {
	Name string

	// Always runs the step whatever the job outcome, including failure and
	// cancellation. Steps without Always run only after a passing job.
	Always bool

	// Run receives the outcome so far (job status plus earlier steps).
	Run func(ctx context.Context, outcome ir.CellOutcome) error
}

// Orchestrator dispatches one job per cell.
type Orchestrator struct {
	job    Job
	steps  []PostStep
	limit  int
	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency caps the number of cells running at once (0 = unlimited).
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.limit = n
	}
}

// WithPostSteps appends post steps, run in the given order for every cell.
func WithPostSteps(steps ...PostStep) Option {
	return func(o *Orchestrator) {
		o.steps = append(o.steps, steps...)
	}
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator for the given job.
func New(job Job, opts ...Option) *Orchestrator {
	o := &Orchestrator{job: job, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch runs every cell and waits for all of them to reach a terminal
// state. Outcomes are returned in the order of cells.
func (o *Orchestrator) Dispatch(ctx context.Context, cells []ir.MatrixCell) []ir.CellOutcome {
	outcomes := make([]ir.CellOutcome, len(cells))

	// A plain Group, not WithContext: one failure must not cancel the rest.
	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for i, cell := range cells {
		g.Go(func() error {
			outcomes[i] = o.runCell(ctx, cell)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runCell executes the job and post steps of one cell.
func (o *Orchestrator) runCell(ctx context.Context, cell ir.MatrixCell) ir.CellOutcome {
	log := o.logger.With(zap.String("cell", cell.ID))
	outcome := ir.CellOutcome{Cell: cell, Status: ir.CellPassed}

	log.Info("cell started",
		zap.String("version", cell.Version),
		zap.Bool("canary", cell.Canary),
		zap.Bool("use_constraints", cell.UseConstraints))

	if err := o.runJob(ctx, cell); err != nil {
		outcome.Error = err.Error()
		outcome.Status = ir.CellFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome.Status = ir.CellCancelled
		}
		log.Warn("cell job failed", zap.String("status", string(outcome.Status)), zap.Error(err))
	} else {
		log.Info("cell job passed")
	}

	// Always steps must still run after cancellation.
	stepCtx := context.WithoutCancel(ctx)
	for _, step := range o.steps {
		if !step.Always && !outcome.Passed() {
			outcome.Steps = append(outcome.Steps, ir.StepOutcome{Name: step.Name, Skipped: true})
			continue
		}

		so := ir.StepOutcome{Name: step.Name}
		if err := runStep(stepCtx, step, outcome); err != nil {
			so.Error = err.Error()
			log.Warn("post step failed", zap.String("step", step.Name), zap.Error(err))
		}
		outcome.Steps = append(outcome.Steps, so)
	}

	return outcome
}

// runJob calls the job, turning a panic into an error.
func (o *Orchestrator) runJob(ctx context.Context, cell ir.MatrixCell) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return o.job.Run(ctx, cell)
}

// runStep calls a post step, turning a panic into an error.
func runStep(ctx context.Context, step PostStep, outcome ir.CellOutcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()
	return step.Run(ctx, outcome)
}

// Summary counts outcomes by status.
type Summary struct {
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []ir.CellOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case ir.CellPassed:
			s.Passed++
		case ir.CellFailed:
			s.Failed++
		case ir.CellCancelled:
			s.Cancelled++
		}
	}
	return s
}
