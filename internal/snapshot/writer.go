package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/pinsync/internal/ir"
)

// WriteError is a SnapshotWriteFailure: the destination could not be
// created or written. The owning test job is not failed by it; the cell's
// artifact simply never comes into existence.
type WriteError struct {
	Op   string // "mkdir", "write" or "remove"
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer stores snapshot files under a fixed directory.
type Writer struct {
	Dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// Path returns the destination path for a cell's snapshot.
func (w *Writer) Path(cellID string) string {
	return filepath.Join(w.Dir, ir.SnapshotFileName(cellID))
}

// Write creates the directory if needed and writes the snapshot file,
// replacing any previous content. Returns the written path.
func (w *Writer) Write(s ir.Snapshot) (string, error) {
	path := w.Path(s.CellID)
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", &WriteError{Op: "mkdir", Path: w.Dir, Err: err}
	}
	if err := os.WriteFile(path, s.Bytes(), 0o644); err != nil {
		return "", &WriteError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}
