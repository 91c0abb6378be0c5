package testutil

// FixedRunIDGenerator returns the same run id every time.
//
// Scenarios pin the run id so the commit message, and therefore the golden
// commit log, is byte-identical between runs:
//
//	run_id: "run-0001"
//
// If id is empty, Generate() returns "test-run-default".
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed run id generator.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
