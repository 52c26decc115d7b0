package machine

import (
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

// ModulePort connects a perimeter location of a module to a location of a
// machine inside it.
type ModulePort struct {
	// Location is on the module perimeter, in the module frame.
	Location geom.Location
	// Inner is the inner machine's input or output location, in the module frame.
	Inner geom.Location
	// Machine and Slot identify the inner machine and its slot.
	Machine int
	Slot    int
}

// Module is a machine backed by a custom region. Its ports are derived
// from the region contents.
type Module struct {
	Index   int
	Inputs  []ModulePort
	Outputs []ModulePort
}

// CanonicalInput is a module input quantized to a canonical rate. The zero
// value means no input.
type CanonicalInput struct {
	Material flow.Material `json:"material"`
	Rate     int64         `json:"rate"`
}

// Present reports whether the input carries material.
func (c CanonicalInput) Present() bool {
	return c.Material != flow.MaterialNone
}

// CanonicalInputs is a comparable memo key for module futures.
type CanonicalInputs [MaxInputs]CanonicalInput

// Flows returns the inner-frame input flows, starting at time 0.
func (c CanonicalInputs) Flows(n int) []*flow.MaterialFlow {
	out := make([]*flow.MaterialFlow, n)
	for i := 0; i < n; i++ {
		if c[i].Present() {
			out[i] = &flow.MaterialFlow{Pattern: flow.NewPattern(0, c[i].Rate), Material: c[i].Material}
		}
	}
	return out
}

// ModuleFuture is the steady state of a module instance. The inner region
// runs in a frame whose time 0 is Start.
type ModuleFuture struct {
	Start     int64
	Canonical CanonicalInputs
	// PortOutputs are the inner flows reaching each output port, in the
	// inner frame. The future engine fills them from the region variation.
	PortOutputs []*flow.MaterialFlow
}

// Canonicalize quantizes observed inputs.
func Canonicalize(in Inputs) CanonicalInputs {
	var c CanonicalInputs
	for i, f := range in {
		if f == nil || i >= MaxInputs {
			continue
		}
		if rate, ok := flow.RoundDownToCanonical(f.Pattern.Rate); ok {
			c[i] = CanonicalInput{Material: f.Material, Rate: rate}
		}
	}
	return c
}

func (m *Module) future(in Inputs, start int64) (*Future, OperatingState) {
	begin := start
	for _, f := range in {
		if f == nil || f.Pattern.Rate == 0 {
			continue
		}
		at, _ := f.Pattern.FirstDisbursementTimeGEQ(start)
		begin = max(begin, at)
	}
	return &Future{Module: &ModuleFuture{
		Start:     begin + flow.TimeToMoveMaterial,
		Canonical: Canonicalize(in),
	}}, Operating
}

// InnerInputs returns the flow each inner input port sees, in the outer frame.
func (f *ModuleFuture) InnerInputs(n int) []*flow.MaterialFlow {
	out := f.Canonical.Flows(n)
	for i, fl := range out {
		if fl != nil {
			d := fl.Delayed(f.Start)
			out[i] = &d
		}
	}
	return out
}

// OutputDelay is the shift from the inner frame to outer output times.
func (f *ModuleFuture) OutputDelay() int64 {
	return f.Start + flow.TimeToMoveMaterial
}

func (m *Module) outputFlows(f *ModuleFuture) []*flow.MaterialFlow {
	out := make([]*flow.MaterialFlow, len(m.Outputs))
	for i := range m.Outputs {
		if i < len(f.PortOutputs) && f.PortOutputs[i] != nil {
			d := f.PortOutputs[i].Delayed(f.OutputDelay())
			out[i] = &d
		}
	}
	return out
}

func (m *Module) visuals(in Inputs, f *ModuleFuture, at int64) Visuals {
	v := Visuals{State: Operating}
	if at < f.Start {
		v.State = WaitingForInput
	}

	// entry: an outer unit crosses to the inner input and waits there until
	// the inner machine takes it
	inner := f.InnerInputs(len(m.Inputs))
	for i, port := range m.Inputs {
		if in[i] == nil || inner[i] == nil {
			continue
		}
		outer, into := in[i].Pattern, inner[i].Pattern
		src, dst := geom.Frac(port.Location.Position), geom.Frac(port.Inner.Position)
		for k, n := into.NumDisbursedBefore(at), 0; n < maxDrawnPerSlot; k, n = k+1, n+1 {
			due, _ := into.NthDisbursementTime(k)
			u := outer.NumDisbursedBefore(due-flow.TimeToMoveMaterial+1) - 1
			if u < 0 {
				continue
			}
			crossed, _ := outer.NthDisbursementTime(u)
			if crossed >= at {
				break
			}
			if pos, ok := arriveThenHold(src, dst, crossed, due, at); ok {
				v.draw(pos, in[i].Material)
			}
		}
	}

	// exit: an inner unit waits at the inner output and crosses to the port
	outs := m.outputFlows(f)
	for j, port := range m.Outputs {
		if outs[j] == nil {
			continue
		}
		p := outs[j].Pattern
		src, dst := geom.Frac(port.Inner.Position), geom.Frac(port.Location.Position)
		for k, n := p.NumDisbursedBefore(at), 0; n < maxDrawnPerSlot; k, n = k+1, n+1 {
			leave, _ := p.NthDisbursementTime(k)
			left := leave - flow.TimeToMoveMaterial
			if left >= at {
				break
			}
			if pos, ok := holdThenLeave(src, dst, left, leave, at); ok {
				v.draw(pos, outs[j].Material)
			}
		}
	}
	return v
}
