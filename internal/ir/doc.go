// Package ir provides the shared domain types for pinsync.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - MatrixCell values are resolved before dispatch and never mutated
//   - Snapshot byte form is one "name==version" line per pin, nothing else
//   - RunContext is read-only event metadata, injected, never read from globals
//   - All JSON tags use snake_case
package ir
