// Package baseline compares a freshly generated snapshot with the snapshot
// last published on the tracking branch.
//
// The comparison is purely observational. Fetch failures, timeouts and
// missing baselines all degrade to an empty baseline, and nothing in this
// package returns an error to the pipeline.
package baseline
