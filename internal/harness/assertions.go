package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/view"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext is what assertions read.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Game   *game.Game
	SaveID string
}

// assertInventoryAt checks the inventory at a time matches exactly; absent
// materials must be zero.
func assertInventoryAt(g *game.Game, a Assertion) error {
	want, err := parseAmounts(a.Inventory)
	if err != nil {
		return err
	}
	got := g.InventoryAt(a.Time)
	if got.Equal(want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertInventoryAt,
		Expected: fmt.Sprintf("inventory at %d = %s", a.Time, formatAmounts(want)),
		Actual:   formatAmounts(got),
	}
}

// assertMachineState checks the operating state of the machine at a path,
// which may lie inside module instances.
func assertMachineState(g *game.Game, a Assertion) error {
	p, err := parseMachinePath(a.Path)
	if err != nil {
		return err
	}
	var want machine.OperatingState
	if err := want.UnmarshalText([]byte(a.State)); err != nil {
		return err
	}

	placed, err := view.New(g).MachinesAtDepth(p.Parent())
	if err != nil {
		return &AssertionError{Type: AssertMachineState, Expected: a.Path, Actual: err.Error()}
	}
	for _, pl := range placed {
		if pl.Path.String() != p.String() {
			continue
		}
		if pl.State != want {
			return &AssertionError{
				Type:     AssertMachineState,
				Expected: fmt.Sprintf("%s %s", a.Path, want),
				Actual:   pl.State.String(),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertMachineState,
		Expected: fmt.Sprintf("%s %s", a.Path, want),
		Actual:   "no machine at path",
	}
}

// assertJournalCount checks how many edits the session journaled.
func assertJournalCount(actx *AssertionContext, a Assertion) error {
	entries, err := actx.Store.ReadJournal(actx.Ctx, actx.SaveID, 0)
	if err != nil {
		return err
	}
	if len(entries) == a.Count {
		return nil
	}
	kinds := make([]string, len(entries))
	for i, e := range entries {
		kinds[i] = string(e.Edit.Kind)
	}
	return &AssertionError{
		Type:     AssertJournalCount,
		Expected: fmt.Sprintf("%d journaled edits", a.Count),
		Actual:   fmt.Sprintf("%d [%s]", len(entries), strings.Join(kinds, " ")),
	}
}

func assertVariations(g *game.Game, a Assertion) error {
	if n := g.Future().NumVariations(); n != a.Count {
		return &AssertionError{
			Type:     AssertVariations,
			Expected: fmt.Sprintf("%d module variations", a.Count),
			Actual:   fmt.Sprint(n),
		}
	}
	return nil
}

func formatAmounts(a flow.Amounts) string {
	var parts []string
	for _, m := range flow.Materials() {
		if n := a[m]; n != 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", m, n))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertInventoryAt:
			err = assertInventoryAt(actx.Game, a)
		case AssertMachineState:
			err = assertMachineState(actx.Game, a)
		case AssertJournalCount:
			err = assertJournalCount(actx, a)
		case AssertVariations:
			err = assertVariations(actx.Game, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errors
}
