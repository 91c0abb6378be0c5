package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/gate"
)

// GateOptions holds flags for the gate command.
type GateOptions struct {
	*RootOptions
	Strict bool
}

// NewGateCommand creates the gate command.
func NewGateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Decide whether this run may publish snapshots",
		Long: `Evaluate the publication gate against the CI run context.

A run may publish only when it belongs to the configured repository and was
triggered by a push to one of gate.branches or by a schedule. A denied run
exits 0 unless --strict is given, so it can be used as a CI condition.

Examples:
  pinsync gate
  pinsync gate --strict --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when publication is denied")

	return cmd
}

func runGate(opts *GateOptions, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rc := s.runContext()
	decision := gate.Evaluate(s.policy(), rc)
	s.logger.Debug("gate evaluated",
		zap.String("event", rc.EventName),
		zap.String("repository", rc.Repository),
		zap.String("ref", rc.RefName),
		zap.Bool("allowed", decision.Allowed),
	)

	if err := s.out.Success(decision, renderDecision(decision)); err != nil {
		return err
	}
	if !decision.Allowed && opts.Strict {
		return &ExitError{Code: ExitFailure, Message: "publication denied: " + decision.Reason, Reported: true}
	}
	return nil
}

func renderDecision(d gate.Decision) string {
	if d.Allowed {
		return "allowed: " + d.Reason
	}
	return "denied: " + d.Reason
}
