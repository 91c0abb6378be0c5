package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/snapshot"
)

// DiffResult is the JSON payload for one compared cell.
type DiffResult struct {
	Cell            string `json:"cell"`
	BaselineMissing bool   `json:"baseline_missing"`
	ChangedRows     int    `json:"changed_rows"`
	Rendered        string `json:"rendered"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [cell...]",
		Short: "Compare local snapshots with the published baseline",
		Long: `Compare each cell's local snapshot file with the snapshot published on
the baseline branch and print a side-by-side diff.

The diff is informational: a missing or unreachable baseline renders every
pin as added and never fails the command. Cells default to matrix.cells.

Examples:
  pinsync diff
  PINSYNC_CONSTRAINTS_BRANCH=main pinsync diff 3.11`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runDiff(opts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cells, err := s.resolve(cmd, args, false)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		out = io.Discard
	}
	d, err := s.differ(s.runContext(), out)
	if err != nil {
		return err
	}

	results := make([]DiffResult, 0, len(cells))
	for _, cell := range cells {
		snap, err := s.readSnapshot(cell.ID)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("no local snapshot", zap.String("cell", cell.ID))
			continue
		}
		if err != nil {
			return s.out.Fail(ExitCommandError, CodeSnapshot, "failed to read snapshot", err)
		}
		c := d.Run(cmd.Context(), snap)
		results = append(results, DiffResult{
			Cell:            cell.ID,
			BaselineMissing: c.BaselineMissing,
			ChangedRows:     c.ChangedRows(),
			Rendered:        c.String(),
		})
	}

	if opts.Format == "json" {
		return s.out.Success(results, "")
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local snapshots found.")
	}
	return nil
}

// readSnapshot loads a cell's snapshot file back into pins.
func (s *session) readSnapshot(cellID string) (ir.Snapshot, error) {
	data, err := os.ReadFile(s.writer().Path(cellID))
	if err != nil {
		return ir.Snapshot{}, err
	}
	reqs, err := snapshot.ParseFreeze(bytes.NewReader(data))
	if err != nil {
		return ir.Snapshot{}, err
	}
	return snapshot.Generate(cellID, reqs), nil
}
