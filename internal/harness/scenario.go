package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/world"
)

// Scenario is a scripted sequence of edits against a fresh game together
// with the facts that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Inventory is the starting inventory by material name.
	Inventory map[string]int64 `yaml:"inventory"`

	// MapRadius overrides the global region half-width.
	MapRadius int64 `yaml:"map_radius,omitempty"`

	// Steps are applied in order through the session.
	Steps []Step `yaml:"steps"`

	// Timeline lists the times the final inventory is sampled at for the
	// golden file.
	Timeline []int64 `yaml:"timeline,omitempty"`

	// Assertions are evaluated against the final game.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one edit. Exactly one of Build, Remove, Rotate, Module, Undo and
// Redo is set.
type Step struct {
	Time int64 `yaml:"time"`

	Build  *BuildStep  `yaml:"build,omitempty"`
	Remove *PathStep   `yaml:"remove,omitempty"`
	Rotate *RotateStep `yaml:"rotate,omitempty"`
	Module *ModuleStep `yaml:"module,omitempty"`
	Undo   bool        `yaml:"undo,omitempty"`
	Redo   bool        `yaml:"redo,omitempty"`

	// ExpectError is the edit error code the step must fail with. The
	// game is left unchanged and the scenario goes on.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// BuildStep places a preset (Type) or an instance of a module defined
// earlier in the scenario (Module).
type BuildStep struct {
	Type   string `yaml:"type,omitempty"`
	Module string `yaml:"module,omitempty"`
	// Path is the region to build in; empty for the global region.
	Path   string `yaml:"path,omitempty"`
	X      int64  `yaml:"x"`
	Y      int64  `yaml:"y"`
	Facing string `yaml:"facing,omitempty"`
	Flip   bool   `yaml:"flip,omitempty"`
}

// PathStep addresses one machine.
type PathStep struct {
	Path string `yaml:"path"`
}

// RotateStep turns the machine at Path to Facing.
type RotateStep struct {
	Path   string `yaml:"path"`
	Facing string `yaml:"facing"`
}

// ModuleStep defines a new empty module and places one instance of it.
type ModuleStep struct {
	Name   string `yaml:"name"`
	Radius int64  `yaml:"radius"`
	Path   string `yaml:"path,omitempty"`
	X      int64  `yaml:"x"`
	Y      int64  `yaml:"y"`
	Facing string `yaml:"facing,omitempty"`
}

// Assertion checks one fact about the final game.
type Assertion struct {
	// Type specifies the assertion type:
	// - "inventory_at": the inventory at Time equals Inventory exactly
	// - "machine_state": the machine at Path reports State
	// - "journal_count": the session journaled exactly Count edits
	// - "variations": the future holds Count module variations
	Type string `yaml:"type"`

	Time      int64            `yaml:"time,omitempty"`
	Inventory map[string]int64 `yaml:"inventory,omitempty"`

	Path  string `yaml:"path,omitempty"`
	State string `yaml:"state,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertInventoryAt  = "inventory_at"
	AssertMachineState = "machine_state"
	AssertJournalCount = "journal_count"
	AssertVariations   = "variations"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and every
// name, path and facing parses.
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
	if s.MapRadius < 0 {
		return fmt.Errorf("map_radius must not be negative")
	}
	if _, err := parseAmounts(s.Inventory); err != nil {
		return fmt.Errorf("inventory: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, t := range s.Timeline {
		if t < 0 {
			return fmt.Errorf("timeline[%d]: negative time %d", i, t)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s Step) error {
	actions := 0
	for _, set := range []bool{s.Build != nil, s.Remove != nil, s.Rotate != nil, s.Module != nil, s.Undo, s.Redo} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of build, remove, rotate, module, undo, redo is required, got %d", actions)
	}
	if s.Time < 0 {
		return fmt.Errorf("negative time %d", s.Time)
	}

	switch {
	case s.Build != nil:
		if (s.Build.Type == "") == (s.Build.Module == "") {
			return fmt.Errorf("build needs exactly one of type and module")
		}
		if _, err := world.ParsePath(s.Build.Path); err != nil {
			return err
		}
		if _, err := parseFacing(s.Build.Facing); err != nil {
			return err
		}
	case s.Remove != nil:
		if _, err := parseMachinePath(s.Remove.Path); err != nil {
			return err
		}
	case s.Rotate != nil:
		if _, err := parseMachinePath(s.Rotate.Path); err != nil {
			return err
		}
		if _, err := geom.ParseFacing(s.Rotate.Facing); err != nil {
			return err
		}
	case s.Module != nil:
		if s.Module.Name == "" {
			return fmt.Errorf("module name is required")
		}
		if _, err := world.ParsePath(s.Module.Path); err != nil {
			return err
		}
		if _, err := parseFacing(s.Module.Facing); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertInventoryAt:
		if _, err := parseAmounts(a.Inventory); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertMachineState:
		if _, err := parseMachinePath(a.Path); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		var st machine.OperatingState
		if err := st.UnmarshalText([]byte(a.State)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertJournalCount, AssertVariations:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}

func parseAmounts(in map[string]int64) (flow.Amounts, error) {
	out := flow.Amounts{}
	for name, n := range in {
		m, err := flow.ParseMaterial(name)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative amount of %s", name)
		}
		if n > 0 {
			out[m] = n
		}
	}
	return out, nil
}

// parseFacing treats an empty facing as +x.
func parseFacing(s string) (geom.Facing, error) {
	if s == "" {
		return geom.FacingPosX, nil
	}
	return geom.ParseFacing(s)
}

func parseMachinePath(s string) (world.Path, error) {
	p, err := world.ParsePath(s)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("path %q does not name a machine", s)
	}
	return p, nil
}
