package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a deterministic, human-readable log of a scenario run:
// cell outcomes, gate decision, reconcile result, pushed commits, final
// tracking branch content and baseline diff output.
func Transcript(name string, r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)

	if r.Report == nil {
		b.WriteString("report: none\n")
	} else {
		rep := r.Report
		fmt.Fprintf(&b, "run: %s\n", rep.RunID)

		b.WriteString("cells:\n")
		for _, o := range rep.Outcomes {
			steps := make([]string, len(o.Steps))
			for i, s := range o.Steps {
				state := "ok"
				switch {
				case s.Skipped:
					state = "skipped"
				case s.Error != "":
					state = "error"
				}
				steps[i] = s.Name + "=" + state
			}
			fmt.Fprintf(&b, "  %s: %s [%s]\n", o.Cell, o.Status, strings.Join(steps, " "))
		}

		verdict := "denied"
		if rep.Gate.Allowed {
			verdict = "allowed"
		}
		fmt.Fprintf(&b, "gate: %s (%s)\n", verdict, rep.Gate.Reason)

		if res := rep.Reconcile; res == nil {
			b.WriteString("reconcile: skipped\n")
		} else {
			state := "no changes"
			if res.Changed {
				state = "changed"
			}
			fmt.Fprintf(&b, "reconcile: %s on %s\n", state, res.Branch)
			for _, f := range res.Files {
				fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Status)
			}
			if len(res.Missing) > 0 {
				fmt.Fprintf(&b, "missing: %s\n", strings.Join(res.Missing, ", "))
			}
		}
	}
	if r.RunError != "" {
		fmt.Fprintf(&b, "error: %s\n", firstLine(r.RunError))
	}

	b.WriteString("commits:\n")
	for _, c := range r.Commits {
		fmt.Fprintf(&b, "--- %s on %s\n", c.ID, c.Branch)
		b.WriteString(c.Message)
	}

	b.WriteString("tracking:\n")
	names := make([]string, 0, len(r.Tracking))
	for name := range r.Tracking {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "+++ %s\n", name)
		b.WriteString(r.Tracking[name])
	}

	b.WriteString("diff:\n")
	b.WriteString(r.Diff)
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// RunWithGolden executes a scenario and compares its transcript with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's transcript with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(Transcript(name, result)))
}
