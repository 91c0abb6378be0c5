// Package store provides SQLite-backed storage for the artifacts of a
// pipeline run.
//
// Each matrix cell uploads one artifact (its snapshot file) under a name
// derived from the cell identifier. The fan-in stage retrieves every artifact
// of the run whose name matches a glob.
//
// # Semantics
//
//   - Put overwrites an artifact of the same name within the same run, so a
//     retried upload never produces a second entry
//   - Put rejects empty uploads (no files, or only zero-byte files) with
//     *UploadError so a missing snapshot is observable
//   - Download merges matched artifacts into one flat file set; duplicate
//     paths collapse to the most recent upload (highest seq)
//   - All queries order deterministically (name/path COLLATE BINARY, seq)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: matrix cells upload concurrently, SQLite writes serially
package store
