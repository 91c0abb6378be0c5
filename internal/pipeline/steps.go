package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/matrix"
	"github.com/roach88/pinsync/internal/snapshot"
	"github.com/roach88/pinsync/internal/store"
)

// Post step names, as they appear in cell outcomes.
const (
	StepSnapshot = "snapshot"
	StepDiff     = "diff"
	StepUpload   = "upload"
)

// errNoSnapshot is the diff step error when the snapshot step produced nothing.
var errNoSnapshot = errors.New("no snapshot captured for this cell")

// Freezer reports a cell's resolved dependency environment.
type Freezer interface {
	Freeze(ctx context.Context, cell ir.MatrixCell) ([]snapshot.Requirement, error)
}

// FreezerFunc adapts a function to the Freezer interface.
type FreezerFunc func(ctx context.Context, cell ir.MatrixCell) ([]snapshot.Requirement, error)

// Freeze calls f(ctx, cell).
func (f FreezerFunc) Freeze(ctx context.Context, cell ir.MatrixCell) ([]snapshot.Requirement, error) {
	return f(ctx, cell)
}

// snapshots holds each cell's generated snapshot for the diff step.
// Every cell writes only its own key.
type snapshots struct {
	mu sync.Mutex
	m  map[string]ir.Snapshot
}

func (s *snapshots) set(snap ir.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]ir.Snapshot)
	}
	s.m[snap.CellID] = snap
}

func (s *snapshots) get(cellID string) (ir.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[cellID]
	return snap, ok
}

// postSteps returns the per-cell steps of a run. All of them run whatever
// the job outcome.
func (p *Pipeline) postSteps(runID string, snaps *snapshots) []matrix.PostStep {
	return []matrix.PostStep{
		{Name: StepSnapshot, Always: true, Run: func(ctx context.Context, o ir.CellOutcome) error {
			return p.captureSnapshot(ctx, o.Cell, snaps)
		}},
		{Name: StepDiff, Always: true, Run: func(ctx context.Context, o ir.CellOutcome) error {
			snap, ok := snaps.get(o.Cell.ID)
			if !ok {
				return errNoSnapshot
			}
			p.Differ.Run(ctx, snap)
			return nil
		}},
		{Name: StepUpload, Always: true, Run: func(ctx context.Context, o ir.CellOutcome) error {
			return p.uploadSnapshot(ctx, runID, o.Cell)
		}},
	}
}

// captureSnapshot freezes the cell environment and writes its snapshot file.
// A stale file from an earlier run is removed first so that a failed capture
// never uploads old content.
func (p *Pipeline) captureSnapshot(ctx context.Context, cell ir.MatrixCell, snaps *snapshots) error {
	path := p.Writer.Path(cell.ID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &snapshot.WriteError{Op: "remove", Path: path, Err: err}
	}

	reqs, err := p.Freezer.Freeze(ctx, cell)
	if err != nil {
		return fmt.Errorf("capture snapshot: %w", err)
	}

	snap := snapshot.Generate(cell.ID, reqs)
	if _, err := p.Writer.Write(snap); err != nil {
		return err
	}
	snaps.set(snap)
	return nil
}

// uploadSnapshot uploads whatever the snapshot step left on disk. A missing
// file becomes an empty upload, which the store rejects.
func (p *Pipeline) uploadSnapshot(ctx context.Context, runID string, cell ir.MatrixCell) error {
	artifact := store.Artifact{Name: ir.ArtifactName(cell.ID)}

	data, err := os.ReadFile(p.Writer.Path(cell.ID))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("upload: %w", err)
	default:
		artifact.Files = []store.File{store.NewFile(ir.SnapshotFileName(cell.ID), data)}
	}
	return p.Store.Put(ctx, runID, artifact)
}
