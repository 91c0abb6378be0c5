package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pinsync/internal/ir"
)

// Scenario defines one end-to-end pipeline run and its expectations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// RunID is the fixed run id. Empty uses "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	Run       RunSpec    `yaml:"run"`
	Policy    PolicySpec `yaml:"policy"`
	BuildInfo []string   `yaml:"build_info,omitempty"`
	Matrix    MatrixSpec `yaml:"matrix"`

	// Jobs maps cell ids to a failure message; unlisted cells pass.
	Jobs map[string]string `yaml:"jobs,omitempty"`

	// Environments maps cell ids to pip freeze output.
	Environments map[string]string `yaml:"environments,omitempty"`

	// Baselines maps cell ids to the published snapshot served to the differ.
	Baselines map[string]string `yaml:"baselines,omitempty"`

	// Tracking is the tracking branch content before the run.
	Tracking map[string]string `yaml:"tracking,omitempty"`

	// RejectPush makes the tracking repository refuse every push.
	RejectPush bool `yaml:"reject_push,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// RunSpec is the CI event metadata of the scenario.
type RunSpec struct {
	EventName         string `yaml:"event_name"`
	Repository        string `yaml:"repository"`
	Actor             string `yaml:"actor,omitempty"`
	RefName           string `yaml:"ref_name"`
	SHA               string `yaml:"sha,omitempty"`
	ServerURL         string `yaml:"server_url,omitempty"`
	ConstraintsBranch string `yaml:"constraints_branch,omitempty"`
}

// RunContext converts the event metadata to an ir.RunContext without a run id.
func (r RunSpec) RunContext() ir.RunContext {
	return ir.RunContext{
		EventName:         r.EventName,
		Repository:        r.Repository,
		Actor:             r.Actor,
		RefName:           r.RefName,
		SHA:               r.SHA,
		ServerURL:         r.ServerURL,
		ConstraintsBranch: r.ConstraintsBranch,
	}
}

// PolicySpec is the publication policy.
type PolicySpec struct {
	Repository   string   `yaml:"repository"`
	Branches     []string `yaml:"branches"`
	DeniedActors []string `yaml:"denied_actors,omitempty"`
}

// MatrixSpec is the matrix declaration.
type MatrixSpec struct {
	Cells       []string `yaml:"cells"`
	ForceCanary bool     `yaml:"force_canary,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	Cell     string `yaml:"cell,omitempty"`     // cell_status, step
	Status   string `yaml:"status,omitempty"`   // cell_status
	Step     string `yaml:"step,omitempty"`     // step
	Contains string `yaml:"contains,omitempty"` // step (error text), diff_contains

	Allowed *bool `yaml:"allowed,omitempty"` // gate
	Changed *bool `yaml:"changed,omitempty"` // committed

	File    string  `yaml:"file,omitempty"`    // tracking_file
	Content *string `yaml:"content,omitempty"` // tracking_file; null means absent

	Cells []string `yaml:"cells,omitempty"` // missing
}

// Assertion type constants.
const (
	AssertCellStatus   = "cell_status"
	AssertStep         = "step"
	AssertGate         = "gate"
	AssertCommitted    = "committed"
	AssertTrackingFile = "tracking_file"
	AssertMissing      = "missing"
	AssertConflict     = "conflict"
	AssertDiffContains = "diff_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Matrix.Cells) == 0 && !s.Matrix.ForceCanary {
		return fmt.Errorf("matrix.cells is required unless force_canary is set")
	}
	if s.Run.RefName == "" {
		return fmt.Errorf("run.ref_name is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCellStatus:
		if a.Cell == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: cell and status are required for cell_status", index)
		}
		switch ir.CellStatus(a.Status) {
		case ir.CellPassed, ir.CellFailed, ir.CellCancelled:
		default:
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertStep:
		if a.Cell == "" || a.Step == "" {
			return fmt.Errorf("assertions[%d]: cell and step are required for step", index)
		}
	case AssertGate:
		if a.Allowed == nil {
			return fmt.Errorf("assertions[%d]: allowed is required for gate", index)
		}
	case AssertCommitted:
		if a.Changed == nil {
			return fmt.Errorf("assertions[%d]: changed is required for committed", index)
		}
	case AssertTrackingFile:
		if a.File == "" {
			return fmt.Errorf("assertions[%d]: file is required for tracking_file", index)
		}
	case AssertMissing, AssertConflict:
	case AssertDiffContains:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for diff_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
