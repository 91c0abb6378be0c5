package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/reconcile"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

func fail(a Assertion, expected, actual string, args ...any) error {
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf(expected, args...), Actual: actual}
}

// evaluate checks one assertion against the result.
func evaluate(a Assertion, r *Result, runErr error) error {
	switch a.Type {
	case AssertCellStatus:
		o, ok := outcome(r, a.Cell)
		if !ok {
			return fail(a, "cell %s to exist", "no such cell", a.Cell)
		}
		if string(o.Status) != a.Status {
			return fail(a, "cell %s %s", string(o.Status), a.Cell, a.Status)
		}

	case AssertStep:
		o, ok := outcome(r, a.Cell)
		if !ok {
			return fail(a, "cell %s to exist", "no such cell", a.Cell)
		}
		s, ok := o.Step(a.Step)
		if !ok {
			return fail(a, "step %s on cell %s", "step not run", a.Step, a.Cell)
		}
		if a.Contains == "" && !s.OK() {
			return fail(a, "step %s ok", describeStep(s), a.Step)
		}
		if a.Contains != "" && !strings.Contains(s.Error, a.Contains) {
			return fail(a, "step %s error containing %q", describeStep(s), a.Step, a.Contains)
		}

	case AssertGate:
		if r.Report == nil || r.Report.Gate.Allowed != *a.Allowed {
			return fail(a, "allowed=%t", gateString(r), *a.Allowed)
		}

	case AssertCommitted:
		changed := r.Report != nil && r.Report.Reconcile != nil && r.Report.Reconcile.Changed && r.Report.Reconcile.Commit != ""
		if changed != *a.Changed {
			return fail(a, "changed=%t", fmt.Sprintf("changed=%t, %d commit(s)", changed, len(r.Commits)), *a.Changed)
		}

	case AssertTrackingFile:
		content, ok := r.Tracking[a.File]
		switch {
		case a.Content == nil && ok:
			return fail(a, "%s absent", fmt.Sprintf("%q", content), a.File)
		case a.Content != nil && !ok:
			return fail(a, "%s = %q", "absent", a.File, *a.Content)
		case a.Content != nil && content != *a.Content:
			return fail(a, "%s = %q", fmt.Sprintf("%q", content), a.File, *a.Content)
		}

	case AssertMissing:
		var missing []string
		if r.Report != nil && r.Report.Reconcile != nil {
			missing = r.Report.Reconcile.Missing
		}
		if !slices.Equal(missing, a.Cells) {
			return fail(a, "missing %v", fmt.Sprintf("%v", missing), a.Cells)
		}

	case AssertConflict:
		if !reconcile.IsConflict(runErr) {
			return fail(a, "push conflict", fmt.Sprintf("error: %v", runErr))
		}

	case AssertDiffContains:
		if !strings.Contains(r.Diff, a.Contains) {
			return fail(a, "diff output containing %q", r.Diff, a.Contains)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func outcome(r *Result, cellID string) (ir.CellOutcome, bool) {
	if r.Report == nil {
		return ir.CellOutcome{}, false
	}
	for _, o := range r.Report.Outcomes {
		if o.Cell.ID == cellID {
			return o, true
		}
	}
	return ir.CellOutcome{}, false
}

func describeStep(s ir.StepOutcome) string {
	switch {
	case s.Skipped:
		return "skipped"
	case s.Error != "":
		return "error: " + s.Error
	default:
		return "ok"
	}
}

func gateString(r *Result) string {
	if r.Report == nil {
		return "no report"
	}
	return fmt.Sprintf("allowed=%t (%s)", r.Report.Gate.Allowed, r.Report.Gate.Reason)
}
