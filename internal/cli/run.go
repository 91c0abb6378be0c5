package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/matrix"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/reconcile"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Canary bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [cell...]",
		Short: "Run the whole pipeline",
		Long: `Resolve the matrix, run matrix.job in every cell, capture, diff and
upload every cell's snapshot whatever the job outcome, then evaluate the
gate and reconcile the tracking branch.

Exit codes:
  0 - All cells passed (publication may have been denied by the gate)
  1 - A cell failed, the push was rejected, or the run was interrupted
  2 - Command error (bad config, unresolvable matrix, no tracking remote)

Examples:
  pinsync run
  pinsync run min max --format json
  pinsync run --canary`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Canary, "canary", false, "test every supported version without constraints")

	return cmd
}

func runPipeline(opts *RunOptions, args []string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := s.runContext()
	var diffOut io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		diffOut = io.Discard
	}
	differ, err := s.differ(rc, diffOut)
	if err != nil {
		return err
	}

	st, err := s.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := &pipeline.Pipeline{
		Provider:    s.provider(),
		Job:         pipeline.ShellJob{Command: s.cfg.Matrix.Job, Dir: s.cfg.Matrix.WorkDir},
		Freezer:     pipeline.ShellFreezer{Command: s.cfg.Matrix.Freeze, Dir: s.cfg.Matrix.WorkDir},
		Writer:      s.writer(),
		Differ:      differ,
		Store:       st,
		Repo:        s.repository(),
		Policy:      s.policy(),
		Concurrency: s.cfg.Matrix.Concurrency,
		RunIDs:      pipeline.UUIDv7Generator{},
		Logger:      s.logger,
	}

	declared := args
	if len(declared) == 0 {
		declared = s.cfg.Matrix.Cells
	}
	report, runErr := p.Run(ctx, pipeline.Options{
		Run:    rc,
		Matrix: matrix.Request{Declared: declared, ForceCanary: opts.Canary || s.cfg.Matrix.ForceCanary},
	})

	if runErr != nil {
		return s.runFailure(report, runErr)
	}
	if err := s.out.Success(report, renderReport(report)); err != nil {
		return err
	}
	if report.CellsFailed() {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d of %d cell(s) did not pass", report.Summary.Total-report.Summary.Passed, report.Summary.Total),
			Reported: opts.Format == "json",
		}
	}
	return nil
}

func (s *session) runFailure(report *pipeline.Report, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrNoRepository):
		return s.out.Fail(ExitCommandError, CodeConfig, "gate allowed publication but no tracking remote is configured", err)
	case reconcile.IsConflict(err):
		return s.reconcileFailure(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return s.out.Fail(ExitFailure, CodeCells, "run interrupted", err)
	case report == nil || len(report.Cells) == 0:
		return s.out.Fail(ExitCommandError, CodeResolve, "failed to start run", err)
	default:
		return s.out.Fail(ExitFailure, CodeReconcile, "reconcile failed", err)
	}
}

func renderReport(r *pipeline.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d passed, %d failed, %d cancelled\n",
		r.RunID, r.Summary.Passed, r.Summary.Failed, r.Summary.Cancelled)
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "  %s: %s", o.Cell, o.Status)
		for _, step := range o.Steps {
			if step.Error != "" {
				fmt.Fprintf(&b, "; %s: %s", step.Name, step.Error)
			}
		}
		b.WriteByte('\n')
	}
	verdict := "denied"
	if r.Gate.Allowed {
		verdict = "allowed"
	}
	fmt.Fprintf(&b, "gate: %s (%s)\n", verdict, r.Gate.Reason)
	if r.Reconcile != nil {
		b.WriteString(renderReconcile(*r.Reconcile))
	}
	return b.String()
}
