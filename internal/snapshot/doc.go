// Package snapshot turns a resolved dependency environment into the
// deterministic pin list published for one matrix cell.
//
// Generation is a pure transformation:
//   - entries installed from an editable or local source checkout are removed
//     (fixed marker: "-e"/"--editable" prefix, or an "@ file:" direct reference)
//   - names are NFC normalized and pins sorted by PEP 503 normalized name
//   - identical environments produce byte-identical output
//
// Writing the result is the only side effect and lands at
// <dir>/constraints-<cell>.txt. Write failures are reported as *WriteError;
// callers treat them as best-effort telemetry and never fail the test job.
package snapshot
