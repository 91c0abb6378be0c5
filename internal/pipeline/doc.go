// Package pipeline runs the whole constraints reconciliation in one process.
//
// Stages:
//
//	resolve   matrix cells from the declaration and build info
//	dispatch  one job per cell, fail-independent; then, for every cell and
//	          whatever its status, the snapshot, diff and upload post steps
//	barrier   wait for every cell to reach a terminal state
//	record    persist cell outcomes in the artifact store
//	gate      decide once whether this run may publish
//	reconcile fold the run's snapshots into the tracking branch
//
// Post steps talk only through the filesystem and the artifact store: the
// upload step reads the file the snapshot step wrote, so a failed write
// shows up downstream as a rejected upload and a missing cell.
package pipeline
