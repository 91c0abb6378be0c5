// Package matrix resolves and dispatches the interpreter-version matrix.
//
// ARCHITECTURE:
//
// Resolution happens once, before dispatch:
// Symbolic aliases ("min", "max") are resolved against the build-info
// provider into concrete MatrixCells. Workers never consult version policy.
//
// Fail-independent fan-out:
// Dispatch runs one goroutine per cell. A failing or panicking job never
// cancels its siblings; each cell reaches its own terminal state and the
// outcome is carried forward as data.
//
// Post steps:
// Each PostStep declares whether it runs regardless of the job outcome
// (Always). Post-step errors are recorded on the cell outcome and logged;
// they never change the job status.
//
// Dispatch is a barrier: it returns only after every cell is terminal, with
// outcomes in cell order regardless of completion order.
package matrix
