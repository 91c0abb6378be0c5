package reconcile

import (
	"context"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/store"
)

// Repository hands out working copies of tracking branches.
type Repository interface {
	Checkout(ctx context.Context, branch string) (Worktree, error)
}

// Worktree is a single-use working copy of one tracking branch.
type Worktree interface {
	// ReadFile returns a root-level file; false when it does not exist.
	ReadFile(name string) ([]byte, bool, error)
	WriteFile(name string, data []byte) error
	// Commit records all written files and returns the commit id.
	Commit(ctx context.Context, message string) (string, error)
	// Push publishes the commit. It is called at most once.
	Push(ctx context.Context) error
	Close() error
}

// Artifacts is the run artifact source.
type Artifacts interface {
	Download(ctx context.Context, runID, pattern string) ([]store.File, error)
}

// Request describes one fan-in.
type Request struct {
	Run ir.RunContext

	// RunID selects the run's artifacts. Empty uses Run.RunID.
	RunID string

	// Cells are the declared cells, used to report missing snapshots.
	Cells []ir.MatrixCell

	// Pattern selects artifacts by name. Empty uses ir.ArtifactPattern.
	Pattern string
}

// FileStatus describes what the fan-in did with one snapshot file.
type FileStatus string

const (
	FileAdded       FileStatus = "added"
	FileUpdated     FileStatus = "updated"
	FileUnchanged   FileStatus = "unchanged"
	FileCommentOnly FileStatus = "comment-only"
)

// FileChange is the per-file result of a fan-in.
type FileChange struct {
	Name   string     `json:"name"`
	Status FileStatus `json:"status"`
}

// Result is the outcome of a fan-in.
type Result struct {
	Branch  string       `json:"branch"`
	Changed bool         `json:"changed"`
	Commit  string       `json:"commit,omitempty"`
	Message string       `json:"message,omitempty"`
	Files   []FileChange `json:"files"`

	// Missing lists declared cells with no downloaded snapshot.
	Missing []string `json:"missing,omitempty"`
}

// Reconciler performs the fan-in.
type Reconciler struct {
	artifacts Artifacts
	repo      Repository
	logger    *zap.Logger
}

// New creates a Reconciler. A nil logger discards output.
func New(artifacts Artifacts, repo Repository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{artifacts: artifacts, repo: repo, logger: logger}
}

// Run downloads the run's snapshots, overlays them on the tracking branch and
// commits and pushes once if anything significant changed.
func (r *Reconciler) Run(ctx context.Context, req Request) (Result, error) {
	if req.Run.RefName == "" {
		return Result{}, fmt.Errorf("reconcile: source ref is empty")
	}
	runID := req.RunID
	if runID == "" {
		runID = req.Run.RunID
	}
	if runID == "" {
		return Result{}, fmt.Errorf("reconcile: run id is empty")
	}
	pattern := req.Pattern
	if pattern == "" {
		pattern = ir.ArtifactPattern
	}

	branch := ir.TrackingBranch(req.Run.RefName)
	log := r.logger.With(zap.String("branch", branch), zap.String("run_id", runID))
	result := Result{Branch: branch, Files: []FileChange{}}

	files, err := r.artifacts.Download(ctx, runID, pattern)
	if err != nil {
		return result, fmt.Errorf("reconcile: download artifacts: %w", err)
	}
	incoming := flatten(files, log)

	result.Missing = missingCells(req.Cells, incoming)
	for _, id := range result.Missing {
		log.Warn("no snapshot uploaded for declared cell", zap.String("cell", id))
	}

	if len(incoming) == 0 {
		log.Info("no snapshots to reconcile")
		return result, nil
	}

	wt, err := r.repo.Checkout(ctx, branch)
	if err != nil {
		return result, fmt.Errorf("reconcile: checkout %s: %w", branch, err)
	}
	defer func() {
		if err := wt.Close(); err != nil {
			log.Warn("failed to remove working copy", zap.Error(err))
		}
	}()

	names := make([]string, 0, len(incoming))
	for name := range incoming {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status, err := overlay(wt, name, incoming[name])
		if err != nil {
			return result, fmt.Errorf("reconcile: %s: %w", name, err)
		}
		result.Files = append(result.Files, FileChange{Name: name, Status: status})
		if status == FileAdded || status == FileUpdated {
			result.Changed = true
		}
		log.Debug("overlaid snapshot", zap.String("file", name), zap.String("status", string(status)))
	}

	if !result.Changed {
		log.Info("no changes")
		return result, nil
	}

	result.Message = CommitMessage(runID, req.Run)
	sha, err := wt.Commit(ctx, result.Message)
	if err != nil {
		return result, fmt.Errorf("reconcile: commit: %w", err)
	}

	if err := wt.Push(ctx); err != nil {
		if isRejected(err) {
			return result, &ConflictError{Branch: branch, Err: err}
		}
		return result, fmt.Errorf("reconcile: push %s: %w", branch, err)
	}

	result.Commit = sha
	log.Info("constraints updated", zap.String("commit", sha), zap.Int("files", len(result.Files)))
	return result, nil
}

// overlay writes the file over the branch copy when it differs significantly.
// Byte equality is decided by content digest.
func overlay(wt Worktree, name string, f store.File) (FileStatus, error) {
	current, exists, err := wt.ReadFile(name)
	if err != nil {
		return "", err
	}

	digest := f.Digest
	if digest == "" {
		digest = ir.ContentDigest(f.Content)
	}

	var status FileStatus
	switch {
	case !exists:
		status = FileAdded
	case ir.ContentDigest(current) == digest:
		return FileUnchanged, nil
	case SignificantlyEqual(current, f.Content):
		return FileCommentOnly, nil
	default:
		status = FileUpdated
	}

	if err := wt.WriteFile(name, f.Content); err != nil {
		return "", err
	}
	return status, nil
}

// flatten keys downloaded files by base name; artifacts are flat at the
// branch root. Files that are not named like a cell snapshot are skipped.
func flatten(files []store.File, log *zap.Logger) map[string]store.File {
	out := make(map[string]store.File, len(files))
	for _, f := range files {
		name := path.Base(f.Path)
		if _, ok := ir.CellIDFromFileName(name); !ok {
			log.Warn("ignoring artifact file that is not a cell snapshot", zap.String("file", f.Path))
			continue
		}
		out[name] = f
	}
	return out
}

func missingCells(cells []ir.MatrixCell, incoming map[string]store.File) []string {
	var missing []string
	for _, c := range cells {
		if _, ok := incoming[ir.SnapshotFileName(c.ID)]; !ok {
			missing = append(missing, c.ID)
		}
	}
	return missing
}
