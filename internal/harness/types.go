package harness

import (
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/machine"
)

// Sample is the inventory at one instant.
type Sample struct {
	Time      int64        `json:"time"`
	Inventory flow.Amounts `json:"inventory"`
}

// StepOutcome records what one step did.
type StepOutcome struct {
	Index int    `json:"index"`
	Edit  string `json:"edit"`
	// Error is the edit error code, empty when the edit was accepted.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions held.
	Pass bool `json:"pass"`

	// Steps records each step in order.
	Steps []StepOutcome `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Timeline is the final inventory at each scenario timeline time.
	Timeline []Sample `json:"timeline"`

	// States maps each global machine path to its operating state.
	States map[string]machine.OperatingState `json:"states"`

	// Digest identifies the final game state; replaying the journal must
	// reproduce it.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Steps:    []StepOutcome{},
		Errors:   []string{},
		Timeline: []Sample{},
		States:   make(map[string]machine.OperatingState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records a step outcome.
func (r *Result) AddStep(index int, edit, code string) {
	r.Steps = append(r.Steps, StepOutcome{Index: index, Edit: edit, Error: code})
}
