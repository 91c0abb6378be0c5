// Package gitrepo maintains a working copy of a tracking branch through the
// git command line.
//
// A checkout is a fresh single-use directory: the branch is fetched at depth
// one, or started as an orphan when the remote does not have it yet. The
// working copy is committed with a fixed identity and pushed exactly once.
// A rejected push is reported as *PushRejectedError and never retried.
package gitrepo
