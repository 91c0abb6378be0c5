// Package harness runs pipeline scenarios end to end against in-process
// fakes and compares their transcripts with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: one_cell_fails
//	description: "A failing cell still publishes its snapshot"
//	run_id: "run-0001"
//	run:
//	  event_name: push
//	  repository: acme/widgets
//	  ref_name: main
//	  sha: 0123abcd
//	policy:
//	  repository: acme/widgets
//	  branches: [main]
//	build_info: ["3.9", "3.10", "3.11"]
//	matrix:
//	  cells: [min, "3.10", max]
//	jobs:                      # cell -> failure message
//	  "3.10": "2 tests failed"
//	environments:              # cell -> pip freeze output
//	  "3.9": |
//	    numpy==1.26.0
//	baselines:                 # cell -> published snapshot
//	  "3.9": "numpy==1.25.0\n"
//	tracking:                  # tracking branch files before the run
//	  constraints-3.9.txt: "numpy==1.25.0\n"
//	assertions:
//	  - type: cell_status
//	    cell: "3.10"
//	    status: failed
//	  - type: committed
//	    changed: true
//
// A cell without an environment fails its freeze, which exercises the
// capture-failure path.
//
// # Assertion Types
//
//   - cell_status: a cell reached the given terminal status
//   - step: a post step of a cell succeeded, or failed with an error
//     containing the given text
//   - gate: the gate allowed or denied publication
//   - committed: whether the reconciler changed the tracking branch
//   - tracking_file: final content of one tracking branch file
//   - missing: exact list of declared cells without an uploaded snapshot
//   - conflict: the push was rejected
//   - diff_contains: the baseline diff output contains text
//
// # Deterministic Testing
//
// Cells run one at a time with a fixed run id, an in-memory artifact store
// and an in-memory tracking repository, so the transcript of a scenario is
// byte-identical between runs.
package harness
