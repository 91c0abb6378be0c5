package harness

import (
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Report is the pipeline report. RunError holds the error the pipeline
	// returned, if any (a push conflict, for instance).
	Report   *pipeline.Report `json:"report"`
	RunError string           `json:"run_error,omitempty"`

	// Commits are the pushed tracking branch commits.
	Commits []testutil.MemoryCommit `json:"-"`

	// Tracking is the tracking branch content after the run.
	Tracking map[string]string `json:"tracking"`

	// Diff is everything the baseline differ wrote.
	Diff string `json:"diff"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Tracking: map[string]string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
