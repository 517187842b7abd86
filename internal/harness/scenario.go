package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Step op constants.
const (
	OpEnsureReady = "ensure_ready"
	OpQuery       = "query"
	OpExec        = "exec"
	OpLoadCSV     = "load_csv"
	OpClose       = "close"
	OpReset       = "reset"
	OpState       = "state"
)

// Scenario is a scripted sequence of manager operations.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Steps run in order against one manager.
	Steps []Step `yaml:"steps"`

	// dir resolves relative load_csv paths. Empty means the working directory.
	dir string
}

// Step is one manager operation.
type Step struct {
	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// SQL is the statement for query and exec.
	SQL string `yaml:"sql,omitempty"`

	// Args are bound parameters for exec.
	Args []any `yaml:"args,omitempty"`

	// Path is the CSV file for load_csv, relative to the scenario file.
	Path string `yaml:"path,omitempty"`

	// Table is the target table for load_csv.
	Table string `yaml:"table,omitempty"`

	// Expect is checked after the step runs. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's expected outcome. Every field is optional.
type Expect struct {
	// Rows must equal the query result exactly, in order.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the number of rows returned (query) or loaded (load_csv).
	Count *int `yaml:"count,omitempty"`

	// Error is a substring of the step's error. The step must fail.
	Error string `yaml:"error,omitempty"`

	// State is the lifecycle state after the step.
	State string `yaml:"state,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Relative load_csv paths resolve against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid scenario: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// resolve returns p relative to the scenario directory.
func (s *Scenario) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpQuery, OpExec:
		if step.SQL == "" {
			return fmt.Errorf("steps[%d]: sql is required for %s", index, step.Op)
		}
	case OpLoadCSV:
		if step.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for load_csv", index)
		}
		if step.Table == "" {
			return fmt.Errorf("steps[%d]: table is required for load_csv", index)
		}
	case OpEnsureReady, OpClose, OpReset, OpState:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if len(step.Args) > 0 && step.Op != OpExec {
		return fmt.Errorf("steps[%d]: args are only valid for exec", index)
	}

	if e := step.Expect; e != nil {
		if e.Rows != nil && step.Op != OpQuery {
			return fmt.Errorf("steps[%d].expect: rows are only valid for query", index)
		}
		if e.Count != nil && step.Op != OpQuery && step.Op != OpLoadCSV {
			return fmt.Errorf("steps[%d].expect: count is only valid for query and load_csv", index)
		}
		if e.Count != nil && *e.Count < 0 {
			return fmt.Errorf("steps[%d].expect: count must be non-negative", index)
		}
		switch e.State {
		case "", "absent", "constructing", "ready":
		default:
			return fmt.Errorf("steps[%d].expect: unknown state %q", index, e.State)
		}
	}
	return nil
}
