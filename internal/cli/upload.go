package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/config"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/store"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	RunID     string
	JobStatus string // recorded with the upload outcome when set
}

// UploadResult is the JSON payload of the upload command.
type UploadResult struct {
	RunID    string `json:"run_id"`
	Artifact string `json:"artifact"`
	Size     int    `json:"size"`
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload <cell>",
		Short: "Upload a cell's snapshot as a run artifact",
		Long: `Upload the local snapshot file of one cell to the artifact store under
the name constraints-<cell>, replacing any earlier upload of the same run.

A cell without a snapshot file is an upload failure (exit 1), never a
silent skip.

Examples:
  pinsync upload 3.11
  pinsync upload 3.11 --run-id 7001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default $GITHUB_RUN_ID)")
	cmd.Flags().StringVar(&opts.JobStatus, "job-status", "", "record the cell's job status (passed|failed|cancelled, or success|failure)")

	return cmd
}

func runUpload(opts *UploadOptions, declared string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	runID, err := s.runID(opts.RunID)
	if err != nil {
		return err
	}
	cell, err := s.resolveOne(cmd, declared)
	if err != nil {
		return err
	}
	status, err := parseJobStatus(opts.JobStatus)
	if err != nil {
		return s.out.Fail(ExitCommandError, CodeUpload, "invalid --job-status", err)
	}

	artifact := store.Artifact{Name: ir.ArtifactName(cell.ID)}
	data, err := os.ReadFile(s.writer().Path(cell.ID))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("snapshot file missing", zap.String("cell", cell.ID))
	case err != nil:
		return s.out.Fail(ExitCommandError, CodeUpload, "failed to read snapshot", err)
	default:
		artifact.Files = []store.File{store.NewFile(ir.SnapshotFileName(cell.ID), data)}
	}

	st, err := s.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	putErr := st.Put(cmd.Context(), runID, artifact)
	if status != "" {
		outcome := ir.CellOutcome{Cell: cell, Status: status, Steps: []ir.StepOutcome{{Name: pipeline.StepUpload}}}
		if putErr != nil {
			outcome.Steps[0].Error = putErr.Error()
		}
		if err := st.RecordOutcome(cmd.Context(), runID, outcome); err != nil {
			s.logger.Warn("failed to record cell outcome", zap.String("cell", cell.ID), zap.Error(err))
		}
	}
	if putErr != nil {
		return s.out.Fail(ExitFailure, CodeUpload, "upload failed", putErr)
	}

	return s.out.Success(UploadResult{RunID: runID, Artifact: artifact.Name, Size: artifact.Size()},
		fmt.Sprintf("uploaded %s (%d bytes) for run %s", artifact.Name, artifact.Size(), runID))
}

// parseJobStatus accepts pinsync statuses and the CI job.status spelling.
func parseJobStatus(v string) (ir.CellStatus, error) {
	switch v {
	case "":
		return "", nil
	case "passed", "success":
		return ir.CellPassed, nil
	case "failed", "failure":
		return ir.CellFailed, nil
	case "cancelled":
		return ir.CellCancelled, nil
	}
	return "", fmt.Errorf("unknown job status %q", v)
}

// runID returns the explicit run id or the CI one.
func (s *session) runID(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if id := s.runContext().RunID; id != "" {
		return id, nil
	}
	return "", s.out.Fail(ExitCommandError, CodeConfig, "no run id: pass --run-id or set "+config.EnvRunID, nil)
}
