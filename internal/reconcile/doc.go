// Package reconcile folds the per-cell snapshots of one run into the tracking
// branch of the source ref.
//
// The fan-in is idempotent: every downloaded snapshot overlays the file of
// the same name at the root of the tracking branch, and a commit is produced
// only when at least one file differs outside comment lines. Files for cells
// absent from the current run are left untouched. The push is attempted once;
// a rejection surfaces as *ConflictError.
package reconcile
