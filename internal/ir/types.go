package ir

import (
	"fmt"
	"strings"
)

// DefaultConstraintsBranch is the source branch whose published snapshots are
// used as the comparison baseline when no override is given.
const DefaultConstraintsBranch = "develop"

// File naming conventions shared by the generator, store and reconciler.
const (
	snapshotPrefix       = "constraints-"
	snapshotExt          = ".txt"
	trackingBranchPrefix = "constraints-"

	// ArtifactPattern matches every per-cell snapshot artifact of a run.
	ArtifactPattern = snapshotPrefix + "*"
)

// MatrixCell is one instance of the job template, parameterized by one
// interpreter version.
type MatrixCell struct {
	ID             string `json:"id"`              // Cell identifier (e.g. "3.11")
	Alias          string `json:"alias,omitempty"` // Symbolic alias it was resolved from ("min", "max")
	Version        string `json:"version"`         // Resolved concrete version
	Canary         bool   `json:"canary"`          // Canary runs ignore pins entirely
	UseConstraints bool   `json:"use_constraints"` // False for canary cells
}

// String returns the cell identifier, annotated with its alias if any.
func (c MatrixCell) String() string {
	if c.Alias != "" {
		return fmt.Sprintf("%s (%s)", c.ID, c.Alias)
	}
	return c.ID
}

// Pin is a single resolved dependency. A package installed from a direct
// reference has a URL instead of a version.
type Pin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

// String renders the pin in constraints-file form: "name==version", or
// "name @ url" for a direct reference.
func (p Pin) String() string {
	if p.URL != "" {
		return p.Name + " @ " + p.URL
	}
	return p.Name + "==" + p.Version
}

// Snapshot is the ordered, filtered pin list for one matrix cell.
type Snapshot struct {
	CellID string `json:"cell_id"`
	Pins   []Pin  `json:"pins"`
}

// Lines returns the snapshot as "name==version" lines in order.
func (s Snapshot) Lines() []string {
	lines := make([]string, len(s.Pins))
	for i, p := range s.Pins {
		lines[i] = p.String()
	}
	return lines
}

// Bytes returns the snapshot file content: one line per pin, each line
// newline-terminated, no header or trailing metadata.
func (s Snapshot) Bytes() []byte {
	var b strings.Builder
	for _, p := range s.Pins {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// SnapshotFileName returns the file name that holds a cell's snapshot, both
// locally and at the root of the tracking branch.
func SnapshotFileName(cellID string) string {
	return snapshotPrefix + cellID + snapshotExt
}

// CellIDFromFileName is the inverse of SnapshotFileName.
// Returns false for names that do not follow the convention.
func CellIDFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt)
	if id == "" {
		return "", false
	}
	return id, true
}

// ArtifactName returns the artifact name under which a cell's snapshot is
// uploaded. It matches ArtifactPattern.
func ArtifactName(cellID string) string {
	return snapshotPrefix + cellID
}

// TrackingBranch returns the branch holding published snapshots for a source
// ref (one tracking branch per source branch name).
func TrackingBranch(ref string) string {
	return trackingBranchPrefix + ref
}

// CellStatus is the terminal state of a matrix cell's job.
type CellStatus string

const (
	CellPassed    CellStatus = "passed"
	CellFailed    CellStatus = "failed"
	CellCancelled CellStatus = "cancelled"
)

// StepOutcome records what happened to one post step of a cell.
type StepOutcome struct {
	Name    string `json:"name"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the step ran and succeeded.
func (s StepOutcome) OK() bool {
	return !s.Skipped && s.Error == ""
}

// CellOutcome is the two-outcome execution record of one cell, carried
// forward as data to the post steps and the fan-in stage.
type CellOutcome struct {
	Cell   MatrixCell    `json:"cell"`
	Status CellStatus    `json:"status"`
	Error  string        `json:"error,omitempty"`
	Steps  []StepOutcome `json:"steps,omitempty"`
}

// Passed reports whether the cell's job succeeded.
func (o CellOutcome) Passed() bool {
	return o.Status == CellPassed
}

// Step returns the outcome of the named post step.
func (o CellOutcome) Step(name string) (StepOutcome, bool) {
	for _, s := range o.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// RunContext is the read-only event metadata of one pipeline run.
// It is provided by the CI environment and passed explicitly to the gate and
// the reconciler.
type RunContext struct {
	EventName         string `json:"event_name"`         // "push", "schedule", "pull_request", ...
	Repository        string `json:"repository"`         // "owner/name"
	Actor             string `json:"actor"`              // Triggering user or bot
	RefName           string `json:"ref_name"`           // Source branch name
	SHA               string `json:"sha"`                // Source commit
	RunID             string `json:"run_id"`             // CI run identifier
	ServerURL         string `json:"server_url"`         // e.g. "https://github.com"
	ConstraintsBranch string `json:"constraints_branch"` // Baseline branch override
}

// DiffBranch returns the source branch whose published snapshots serve as the
// baseline for comparisons.
func (rc RunContext) DiffBranch() string {
	if b := strings.TrimSpace(rc.ConstraintsBranch); b != "" {
		return b
	}
	return DefaultConstraintsBranch
}

// RunURL returns a traceable link to the run, or "" if the context lacks the
// parts needed to build one.
func (rc RunContext) RunURL() string {
	if rc.ServerURL == "" || rc.Repository == "" || rc.RunID == "" {
		return ""
	}
	return strings.TrimSuffix(rc.ServerURL, "/") + "/" + rc.Repository + "/actions/runs/" + rc.RunID
}
