package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/machine"
)

// TimelineSnapshot is the golden form of a scenario run: the inventory
// timeline and the operating state of every global machine. Canonical JSON
// drops empty inventories, so a sample with nothing in stock shows only its
// time.
type TimelineSnapshot struct {
	Scenario string                            `json:"scenario"`
	Timeline []Sample                          `json:"timeline"`
	States   map[string]machine.OperatingState `json:"states"`
}

// Snapshot returns the canonical golden bytes of a result.
func Snapshot(name string, result *Result) ([]byte, error) {
	return ir.Canonical(TimelineSnapshot{
		Scenario: name,
		Timeline: result.Timeline,
		States:   result.States,
	})
}

// RunWithGolden executes a scenario and compares its timeline against a
// golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the timeline doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
