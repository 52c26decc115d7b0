// Package machine defines the closed set of machine variants and the
// per-variant rules that turn observed input flows into a future, output
// flows and momentary visuals.
//
// Type is a sum type: exactly one of Distributor, Assembler or Module is
// set, selected by Kind. Every operation dispatches with a single switch.
package machine

import (
	"errors"
	"fmt"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

// MaxInputs bounds the number of inputs of any machine.
const MaxInputs = 8

// Kind selects the variant of a Type.
type Kind uint8

const (
	KindDistributor Kind = iota + 1
	KindAssembler
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindDistributor:
		return "distributor"
	case KindAssembler:
		return "assembler"
	case KindModule:
		return "module"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type describes one machine variant.
type Type struct {
	Kind   Kind
	Name   string
	Radius int64

	Distributor *Distributor
	Assembler   *Assembler
	Module      *Module
}

// Inputs holds the observed flow at each input slot; nil means nothing
// arrives there.
type Inputs []*flow.MaterialFlow

// Future is the derived steady state of one machine. Exactly one field is
// set, matching the Kind of the Type that produced it.
type Future struct {
	StartTime int64

	Distributor *DistributorFuture
	Assembler   *AssemblerFuture
	Module      *ModuleFuture
}

// NumInputs returns the number of input slots.
func (t *Type) NumInputs() int {
	return len(t.InputLocations())
}

// NumOutputs returns the number of output slots.
func (t *Type) NumOutputs() int {
	return len(t.OutputLocations())
}

// InputLocations returns the input locations relative to the machine center.
func (t *Type) InputLocations() []geom.Location {
	switch t.Kind {
	case KindDistributor:
		return t.Distributor.Inputs
	case KindAssembler:
		out := make([]geom.Location, len(t.Assembler.Inputs))
		for i, in := range t.Assembler.Inputs {
			out[i] = in.Location
		}
		return out
	case KindModule:
		out := make([]geom.Location, len(t.Module.Inputs))
		for i, p := range t.Module.Inputs {
			out[i] = p.Location
		}
		return out
	}
	panic(badKind(t))
}

// OutputLocations returns the output locations relative to the machine center.
func (t *Type) OutputLocations() []geom.Location {
	switch t.Kind {
	case KindDistributor:
		return t.Distributor.Outputs
	case KindAssembler:
		out := make([]geom.Location, len(t.Assembler.Outputs))
		for i, o := range t.Assembler.Outputs {
			out[i] = o.Location
		}
		return out
	case KindModule:
		out := make([]geom.Location, len(t.Module.Outputs))
		for i, p := range t.Module.Outputs {
			out[i] = p.Location
		}
		return out
	}
	panic(badKind(t))
}

// InputMaterials returns the material each input requires. MaterialNone
// means the slot accepts any single material.
func (t *Type) InputMaterials() []flow.Material {
	out := make([]flow.Material, t.NumInputs())
	if t.Kind == KindAssembler {
		for i, in := range t.Assembler.Inputs {
			out[i] = in.Material
		}
	}
	return out
}

// Future derives the machine future from its inputs. When the machine cannot
// operate the returned future is nil and the state says why.
func (t *Type) Future(in Inputs, start int64) (*Future, OperatingState) {
	if len(in) != t.NumInputs() {
		panic(Violation(t, fmt.Sprintf("got %d inputs, want %d", len(in), t.NumInputs())))
	}
	var (
		f     *Future
		state OperatingState
	)
	switch t.Kind {
	case KindDistributor:
		f, state = t.Distributor.future(in, start)
	case KindAssembler:
		f, state = t.Assembler.future(in, start)
	case KindModule:
		f, state = t.Module.future(in, start)
	default:
		panic(badKind(t))
	}
	if f != nil {
		f.StartTime = start
	}
	return f, state
}

// OutputFlows returns the flow leaving each output slot. Every returned
// flow starts at or after the future's start time.
func (t *Type) OutputFlows(in Inputs, f *Future) []*flow.MaterialFlow {
	var out []*flow.MaterialFlow
	switch t.Kind {
	case KindDistributor:
		out = t.Distributor.outputFlows(f.Distributor)
	case KindAssembler:
		out = t.Assembler.outputFlows(f.Assembler)
	case KindModule:
		out = t.Module.outputFlows(f.Module)
	default:
		panic(badKind(t))
	}
	for i, o := range out {
		if o != nil && o.Pattern.StartTime < f.StartTime {
			panic(Violation(t, fmt.Sprintf("output %d starts at %d before start time %d", i, o.Pattern.StartTime, f.StartTime)))
		}
	}
	return out
}

// MomentaryVisuals reports what the machine shows at time at. A nil future
// means the machine is not operating; only the state is reported.
func (t *Type) MomentaryVisuals(in Inputs, f *Future, state OperatingState, at int64) Visuals {
	if f == nil {
		return Visuals{State: state}
	}
	switch t.Kind {
	case KindDistributor:
		return t.Distributor.visuals(in, f.Distributor, at)
	case KindAssembler:
		return t.Assembler.visuals(in, f.Assembler, at)
	case KindModule:
		return t.Module.visuals(in, f.Module, at)
	}
	panic(badKind(t))
}

// Square returns the footprint of the type placed at the given center.
func (t *Type) Square(center geom.Vec2) geom.Square {
	return geom.Square{Center: center, Radius: t.Radius}
}

var (
	// ErrBadGeometry reports an input or output off the perimeter grid.
	ErrBadGeometry = errors.New("location is not a perimeter slot")
	// ErrCollision reports two locations sharing one slot.
	ErrCollision = errors.New("locations collide")
	// ErrBadRecipe reports a recipe that cannot run.
	ErrBadRecipe = errors.New("invalid recipe")
)

// Validate checks the geometry invariants every variant must satisfy: each
// location is a perimeter slot, inputs travel inward, outputs travel
// outward, and no two locations share a slot.
func (t *Type) Validate() error {
	if t.Radius < 1 {
		return fmt.Errorf("%s: radius %d: %w", t.Name, t.Radius, ErrBadGeometry)
	}
	set := 0
	for _, v := range []bool{t.Distributor != nil, t.Assembler != nil, t.Module != nil} {
		if v {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one variant must be set, got %d", t.Name, set)
	}
	ins, outs := t.InputLocations(), t.OutputLocations()
	if len(ins) > MaxInputs {
		return fmt.Errorf("%s: %d inputs exceeds %d", t.Name, len(ins), MaxInputs)
	}
	seen := map[geom.Vec2]bool{}
	check := func(l geom.Location, inward bool, what string, i int) error {
		out, ok := geom.OutwardFacing(l.Position, t.Radius)
		if !ok || !geom.IsPerimeterSlot(l.Position, t.Radius) {
			return fmt.Errorf("%s: %s %d at %s: %w", t.Name, what, i, l.Position, ErrBadGeometry)
		}
		want := out
		if inward {
			want = out.Reverse()
		}
		if l.Facing != want {
			return fmt.Errorf("%s: %s %d faces %s, want %s: %w", t.Name, what, i, l.Facing, want, ErrBadGeometry)
		}
		if seen[l.Position] {
			return fmt.Errorf("%s: %s %d at %s: %w", t.Name, what, i, l.Position, ErrCollision)
		}
		seen[l.Position] = true
		return nil
	}
	for i, l := range ins {
		if err := check(l, true, "input", i); err != nil {
			return err
		}
	}
	for i, l := range outs {
		if err := check(l, false, "output", i); err != nil {
			return err
		}
	}
	switch t.Kind {
	case KindDistributor:
		if len(outs) == 0 || len(ins) == 0 {
			return fmt.Errorf("%s: distributor needs inputs and outputs: %w", t.Name, ErrBadRecipe)
		}
	case KindAssembler:
		return t.Assembler.validate(t.Name)
	}
	return nil
}

// Violation formats an internal invariant failure naming the machine type
// and the violated property. Callers panic with it.
func Violation(t *Type, property string) string {
	return fmt.Sprintf("machine invariant violated: %s %q: %s", t.Kind, t.Name, property)
}

func badKind(t *Type) string {
	return Violation(t, "unknown kind")
}
