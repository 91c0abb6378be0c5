package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// snapshotArtifact creates a single-file artifact the way a matrix cell uploads it.
func snapshotArtifact(cellID, content string) Artifact {
	return Artifact{
		Name:  "constraints-" + cellID,
		Files: []File{NewFile("constraints-"+cellID+".txt", []byte(content))},
	}
}
