package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/gate"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/reconcile"
	"github.com/roach88/pinsync/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	RunID string
}

// ReconcileOutput is the JSON payload of the reconcile command.
type ReconcileOutput struct {
	Gate   gate.Decision     `json:"gate"`
	Result *reconcile.Result `json:"result,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Commit a run's snapshots to the tracking branch",
		Long: `Download every snapshot artifact of the run, overlay them on the
tracking branch constraints-<ref> and push a single commit if any file
changed beyond comments.

Runs the publication gate first; a denied run does nothing and exits 0.
A rejected push means another run updated the branch first. It is reported
as a conflict (exit 1) and never retried.

Examples:
  pinsync reconcile
  pinsync reconcile --run-id 7001 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id whose artifacts are reconciled (default $GITHUB_RUN_ID)")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rc := s.runContext()
	runID, err := s.runID(opts.RunID)
	if err != nil {
		return err
	}

	decision := gate.Evaluate(s.policy(), rc)
	if !decision.Allowed {
		return s.out.Success(ReconcileOutput{Gate: decision}, "skipped: "+decision.Reason)
	}

	repo := s.repository()
	if repo == nil {
		return s.out.Fail(ExitCommandError, CodeConfig, "no tracking remote configured (tracking.remote or PINSYNC_REMOTE)", nil)
	}

	cells, err := s.resolve(cmd, nil, s.cfg.Matrix.ForceCanary)
	if err != nil {
		return err
	}

	st, err := s.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	s.reportFailedUploads(cmd, st, runID)

	result, err := reconcile.New(st, repo, s.logger).Run(cmd.Context(), reconcile.Request{
		Run:   rc,
		RunID: runID,
		Cells: cells,
	})
	if err != nil {
		return s.reconcileFailure(err)
	}
	return s.out.Success(ReconcileOutput{Gate: decision, Result: &result}, renderReconcile(result))
}

// reportFailedUploads logs the upload failures recorded by the matrix jobs
// of the run, if they recorded any.
func (s *session) reportFailedUploads(cmd *cobra.Command, st *store.Store, runID string) {
	outcomes, err := st.ReadOutcomes(cmd.Context(), runID)
	if err != nil {
		s.logger.Warn("failed to read cell outcomes", zap.String("run_id", runID), zap.Error(err))
		return
	}
	for _, o := range outcomes {
		if step, ok := o.Step(pipeline.StepUpload); ok && step.Error != "" {
			s.logger.Warn("cell did not upload its snapshot",
				zap.String("cell", o.Cell.ID),
				zap.String("status", string(o.Status)),
				zap.String("error", step.Error))
		}
	}
}

func (s *session) reconcileFailure(err error) error {
	if reconcile.IsConflict(err) {
		return s.out.Fail(ExitFailure, CodeConflict, "tracking branch moved during reconcile", err)
	}
	return s.out.Fail(ExitFailure, CodeReconcile, "reconcile failed", err)
}

func renderReconcile(r reconcile.Result) string {
	var b strings.Builder
	if r.Changed {
		fmt.Fprintf(&b, "pushed %s to %s\n", shortCommit(r.Commit), r.Branch)
	} else {
		fmt.Fprintf(&b, "no changes on %s\n", r.Branch)
	}
	for _, f := range r.Files {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Status)
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "missing snapshots: %s\n", strings.Join(r.Missing, ", "))
	}
	return b.String()
}

func shortCommit(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
