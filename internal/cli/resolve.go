package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/matrix"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Canary bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [cell...]",
		Short: "Resolve the matrix to concrete cells",
		Long: `Resolve the declared matrix cells against the build info.

Cells default to matrix.cells from the config. The aliases "min" and "max"
resolve to the lowest and highest supported versions. --canary (or
PINSYNC_FORCE_CANARY) expands to every supported version with constraints
disabled.

Examples:
  pinsync resolve
  pinsync resolve min 3.10 max
  pinsync resolve --canary --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Canary, "canary", false, "expand to every supported version without constraints")

	return cmd
}

func runResolve(opts *ResolveOptions, args []string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	cells, err := s.resolve(cmd, args, opts.Canary || s.cfg.Matrix.ForceCanary)
	if err != nil {
		return err
	}
	return s.out.Success(cells, renderCells(cells))
}

// resolve turns declared cells (or the configured ones) into matrix cells.
func (s *session) resolve(cmd *cobra.Command, declared []string, canary bool) ([]ir.MatrixCell, error) {
	if len(declared) == 0 {
		declared = s.cfg.Matrix.Cells
	}
	cells, err := matrix.Resolve(cmd.Context(), matrix.Request{
		Declared:    declared,
		ForceCanary: canary,
	}, s.provider())
	if err != nil {
		return nil, s.out.Fail(ExitCommandError, CodeResolve, "failed to resolve matrix", err)
	}
	return cells, nil
}

func renderCells(cells []ir.MatrixCell) string {
	var b strings.Builder
	for _, c := range cells {
		var flags []string
		if c.Canary {
			flags = append(flags, "canary")
		}
		if !c.UseConstraints {
			flags = append(flags, "no-constraints")
		}
		if len(flags) > 0 {
			fmt.Fprintf(&b, "%s [%s]\n", c, strings.Join(flags, ","))
		} else {
			fmt.Fprintf(&b, "%s\n", c)
		}
	}
	return b.String()
}
