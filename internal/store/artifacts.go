package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
)

// File is one file inside an artifact.
type File struct {
	Path    string `json:"path"`   // Slash-separated, relative
	Digest  string `json:"digest"` // ir.ContentDigest(Content)
	Content []byte `json:"-"`
}

// Artifact is a named set of files uploaded by one matrix cell.
type Artifact struct {
	Name  string `json:"name"`
	Files []File `json:"files"`
	Seq   int64  `json:"seq"` // Logical upload order, assigned by Put
}

// Size returns the total number of content bytes.
func (a Artifact) Size() int {
	n := 0
	for _, f := range a.Files {
		n += len(f.Content)
	}
	return n
}

// NewFile builds a File with its digest computed.
func NewFile(p string, content []byte) File {
	return File{Path: p, Digest: ir.ContentDigest(content), Content: content}
}

// UploadError is an UploadFailure: nothing (or nothing but empty files) would
// have been stored for a declared artifact name.
type UploadError struct {
	RunID  string
	Name   string
	Reason string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q (run %s): %s", e.Name, e.RunID, e.Reason)
}

// IsUploadError reports whether err is an upload failure.
func IsUploadError(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}

// Put uploads an artifact for a run, replacing any artifact with the same
// name previously uploaded in that run.
//
// Empty uploads are rejected with *UploadError: an artifact must contain at
// least one file and at least one content byte.
func (s *Store) Put(ctx context.Context, runID string, a Artifact) error {
	if err := validateArtifact(runID, a); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put artifact: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "artifacts")
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, name, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET seq = excluded.seq
	`, runID, a.Name, seq)
	if err != nil {
		return fmt.Errorf("put artifact: upsert: %w", err)
	}

	// Overwrite semantics: the new upload fully replaces the old file set.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM artifact_files WHERE run_id = ? AND name = ?
	`, runID, a.Name); err != nil {
		return fmt.Errorf("put artifact: clear files: %w", err)
	}

	for _, f := range a.Files {
		digest := f.Digest
		if digest == "" {
			digest = ir.ContentDigest(f.Content)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifact_files (run_id, name, path, digest, content)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, name, path) DO UPDATE SET
				digest = excluded.digest,
				content = excluded.content
		`, runID, a.Name, path.Clean(f.Path), digest, f.Content)
		if err != nil {
			return fmt.Errorf("put artifact: insert file %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put artifact: commit: %w", err)
	}
	return nil
}

func validateArtifact(runID string, a Artifact) error {
	reject := func(reason string) error {
		return &UploadError{RunID: runID, Name: a.Name, Reason: reason}
	}
	if runID == "" {
		return reject("run id is required")
	}
	if a.Name == "" {
		return reject("artifact name is required")
	}
	if len(a.Files) == 0 {
		return reject("no files found for upload")
	}
	for _, f := range a.Files {
		p := path.Clean(f.Path)
		if f.Path == "" || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return reject(fmt.Sprintf("invalid file path %q", f.Path))
		}
	}
	if a.Size() == 0 {
		return reject("all files are empty")
	}
	return nil
}

// List returns every artifact of a run whose name matches pattern
// (path.Match syntax), ordered by name.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) List(ctx context.Context, runID, pattern string) ([]Artifact, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("list artifacts: bad pattern %q: %w", pattern, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, seq
		FROM artifacts
		WHERE run_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Name, &a.Seq); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if ok, _ := path.Match(pattern, a.Name); ok {
			artifacts = append(artifacts, a)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	rows.Close()

	for i := range artifacts {
		files, err := s.readFiles(ctx, runID, artifacts[i].Name)
		if err != nil {
			return nil, err
		}
		artifacts[i].Files = files
	}

	if artifacts == nil {
		artifacts = []Artifact{}
	}
	return artifacts, nil
}

// readFiles returns the files of one artifact ordered by path.
func (s *Store) readFiles(ctx context.Context, runID, name string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, digest, content
		FROM artifact_files
		WHERE run_id = ? AND name = ?
		ORDER BY path COLLATE BINARY ASC
	`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("query artifact files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.Digest, &f.Content); err != nil {
			return nil, fmt.Errorf("scan artifact file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact files: %w", err)
	}
	return files, nil
}

// Download merges every matching artifact of a run into one flat file set,
// ordered by path. When two artifacts carry the same path, the one uploaded
// last wins, so duplicates never surface twice.
func (s *Store) Download(ctx context.Context, runID, pattern string) ([]File, error) {
	artifacts, err := s.List(ctx, runID, pattern)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Seq < artifacts[j].Seq
	})

	merged := make(map[string]File)
	for _, a := range artifacts {
		for _, f := range a.Files {
			merged[f.Path] = f
		}
	}

	files := make([]File, 0, len(merged))
	for _, f := range merged {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// PutSnapshot uploads a cell's snapshot under its conventional artifact and
// file names.
func (s *Store) PutSnapshot(ctx context.Context, runID string, snap ir.Snapshot) error {
	return s.Put(ctx, runID, Artifact{
		Name:  ir.ArtifactName(snap.CellID),
		Files: []File{NewFile(ir.SnapshotFileName(snap.CellID), snap.Bytes())},
	})
}
