package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/snapshot"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Input string // pip freeze output; "-" reads stdin
}

// SnapshotResult is the JSON payload of the snapshot command.
type SnapshotResult struct {
	Cell string   `json:"cell"`
	Path string   `json:"path"`
	Pins []ir.Pin `json:"pins"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot <cell>",
		Short: "Capture one cell's resolved dependency set",
		Long: `Capture the installed dependency set of one cell and write it to
constraints-<cell>.txt in the snapshot directory.

The installed set is read from --input, or from the output of matrix.freeze
when --input is not given. Editable and local direct-reference installs are
dropped; pins are sorted by normalized name.

Examples:
  pinsync snapshot 3.11
  python -m pip freeze | pinsync snapshot max --input -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", `pip freeze output to read ("-" for stdin)`)

	return cmd
}

func runSnapshot(opts *SnapshotOptions, declared string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cell, err := s.resolveOne(cmd, declared)
	if err != nil {
		return err
	}

	reqs, err := s.freeze(cmd, cell, opts.Input)
	if err != nil {
		return s.out.Fail(ExitFailure, CodeSnapshot, "failed to capture snapshot", err)
	}

	snap := snapshot.Generate(cell.ID, reqs)
	path, err := s.writer().Write(snap)
	if err != nil {
		s.logger.Error("snapshot write failed", zap.String("cell", cell.ID), zap.Error(err))
		return s.out.Fail(ExitFailure, CodeSnapshot, "failed to write snapshot", err)
	}
	s.logger.Debug("snapshot written", zap.String("cell", cell.ID), zap.String("path", path), zap.Int("pins", len(snap.Pins)))

	return s.out.Success(SnapshotResult{Cell: cell.ID, Path: path, Pins: snap.Pins},
		fmt.Sprintf("%s: %d pins -> %s", cell.ID, len(snap.Pins), path))
}

// resolveOne resolves a single declared cell, expanding aliases.
func (s *session) resolveOne(cmd *cobra.Command, declared string) (ir.MatrixCell, error) {
	cells, err := s.resolve(cmd, []string{declared}, false)
	if err != nil {
		return ir.MatrixCell{}, err
	}
	return cells[0], nil
}

func (s *session) freeze(cmd *cobra.Command, cell ir.MatrixCell, input string) ([]snapshot.Requirement, error) {
	switch input {
	case "":
		f := pipeline.ShellFreezer{Command: s.cfg.Matrix.Freeze, Dir: s.cfg.Matrix.WorkDir}
		return f.Freeze(cmd.Context(), cell)
	case "-":
		return snapshot.ParseFreeze(cmd.InOrStdin())
	default:
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return snapshot.ParseFreeze(f)
	}
}
