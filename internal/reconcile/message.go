package reconcile

import (
	"fmt"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
)

// CommitMessage builds the tracking-branch commit message for a run.
// Empty metadata fields are left out of the body.
func CommitMessage(runID string, rc ir.RunContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Updating constraints. Run id: %s\n", runID)

	body := []struct{ label, value string }{
		{"Source ref", rc.RefName},
		{"Source repository", rc.Repository},
		{"Source commit", rc.SHA},
		{"Run", rc.RunURL()},
	}

	wroteBlank := false
	for _, field := range body {
		if field.value == "" {
			continue
		}
		if !wroteBlank {
			b.WriteByte('\n')
			wroteBlank = true
		}
		fmt.Fprintf(&b, "%s: %s\n", field.label, field.value)
	}
	return b.String()
}
