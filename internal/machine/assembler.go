package machine

import (
	"fmt"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

// AssemblerInput is one ingredient slot of a recipe.
type AssemblerInput struct {
	Location geom.Location
	Material flow.Material
	Cost     int64
}

// AssemblerOutput is one product slot of a recipe.
type AssemblerOutput struct {
	Location geom.Location
	Material flow.Material
	Amount   int64
}

// Assembler consumes Cost units of every input per cycle and produces
// Amount units of every output when the cycle finishes. A mine is an
// assembler without inputs.
type Assembler struct {
	Inputs   []AssemblerInput
	Outputs  []AssemblerOutput
	Duration int64
}

// AssemblerFuture is the steady state of an assembler.
type AssemblerFuture struct {
	// Assemblies disburses once at the start of every cycle.
	Assemblies flow.Pattern
	Outputs    []flow.Pattern
}

func (a *Assembler) validate(name string) error {
	if a.Duration < 1 {
		return fmt.Errorf("%s: duration %d: %w", name, a.Duration, ErrBadRecipe)
	}
	if len(a.Outputs) == 0 {
		return fmt.Errorf("%s: no outputs: %w", name, ErrBadRecipe)
	}
	for i, in := range a.Inputs {
		if in.Cost < 1 || !in.Material.Valid() {
			return fmt.Errorf("%s: input %d: %w", name, i, ErrBadRecipe)
		}
	}
	for i, out := range a.Outputs {
		if out.Amount < 1 || !out.Material.Valid() {
			return fmt.Errorf("%s: output %d: %w", name, i, ErrBadRecipe)
		}
		// amount per cycle at full speed must not outrun a single output
		if out.Amount*flow.RateDivisor > flow.StandardRate*a.Duration {
			return fmt.Errorf("%s: output %d rate exceeds %d: %w", name, i, flow.StandardRate, ErrBadRecipe)
		}
	}
	return nil
}

// maxRate is the cycle rate when inputs are never the bottleneck.
func (a *Assembler) maxRate() int64 {
	return flow.RateDivisor / a.Duration
}

func (a *Assembler) future(in Inputs, start int64) (*Future, OperatingState) {
	rate := a.maxRate()
	for i, slot := range a.Inputs {
		f := in[i]
		if f == nil || f.Pattern.Rate == 0 {
			return nil, InputMissing
		}
		if f.Material != slot.Material {
			return nil, InputIncompatible
		}
		rate = min(rate, f.Pattern.Rate/slot.Cost)
	}
	if rate == 0 {
		return nil, InputTooInfrequent
	}
	begin := start
	if len(a.Inputs) > 0 {
		begin = flow.MinTime
		for i, slot := range a.Inputs {
			p := in[i].Pattern
			ready, _ := p.NthDisbursementTime(p.NumDisbursedBefore(start) + slot.Cost - 1)
			begin = max(begin, ready+flow.TimeToMoveMaterial)
		}
	}
	f := &AssemblerFuture{Assemblies: flow.NewPattern(begin, rate)}
	first := begin + a.Duration + flow.TimeToMoveMaterial
	for _, out := range a.Outputs {
		f.Outputs = append(f.Outputs, flow.NewPattern(first, rate*out.Amount))
	}
	return &Future{Assembler: f}, Operating
}

func (a *Assembler) outputFlows(f *AssemblerFuture) []*flow.MaterialFlow {
	out := make([]*flow.MaterialFlow, len(a.Outputs))
	for i, slot := range a.Outputs {
		out[i] = &flow.MaterialFlow{Pattern: f.Outputs[i], Material: slot.Material}
	}
	return out
}

// consumed returns the range [lo, hi) of disbursement indices of input p
// that cycle c uses: the cost most recent units that arrived at least
// TimeToMoveMaterial before the cycle starts.
func consumed(p flow.Pattern, cost, cycleStart int64) (int64, int64) {
	hi := p.NumDisbursedBefore(cycleStart - flow.TimeToMoveMaterial + 1)
	return hi - cost, hi
}

func (a *Assembler) visuals(in Inputs, f *AssemblerFuture, at int64) Visuals {
	v := Visuals{State: Operating}
	cycles := f.Assemblies
	firstCycle, _ := cycles.NthDisbursementTime(0)
	if at <= firstCycle {
		v.State = WaitingForInput
	}
	center := geom.FracVec{}

	// ingredients travel to the center and wait there for their cycle
	for i, slot := range a.Inputs {
		p := in[i].Pattern
		src := geom.Frac(slot.Location.Position)
		for c, n := cycles.NumDisbursedBefore(at), 0; n < maxDrawnPerSlot; c, n = c+1, n+1 {
			begin, _ := cycles.NthDisbursementTime(c)
			lo, hi := consumed(p, slot.Cost, begin)
			earliest, _ := p.NthDisbursementTime(max(lo, 0))
			if earliest >= at {
				break
			}
			for u := max(lo, 0); u < hi; u++ {
				arrived, _ := p.NthDisbursementTime(u)
				if pos, ok := arriveThenHold(src, center, arrived, begin, at); ok {
					v.draw(pos, slot.Material)
				}
			}
		}
	}

	if c := cycles.NumDisbursedBefore(at) - 1; c >= 0 {
		begin, _ := cycles.NthDisbursementTime(c)
		if at <= begin+a.Duration {
			v.Progress = &AssemblyProgress{Elapsed: at - begin, Duration: a.Duration}
		}
	}

	// products wait at the center and leave on schedule
	for k, slot := range a.Outputs {
		out := f.Outputs[k]
		dst := geom.Frac(slot.Location.Position)
		for n, drawn := out.NumDisbursedBefore(at), 0; drawn < maxDrawnPerSlot; n, drawn = n+1, drawn+1 {
			leave, _ := out.NthDisbursementTime(n)
			begin, _ := cycles.NthDisbursementTime(n / slot.Amount)
			finish := begin + a.Duration
			if finish >= at {
				break
			}
			if pos, ok := holdThenLeave(center, dst, finish, leave, at); ok {
				v.draw(pos, slot.Material)
			}
		}
	}
	return v
}
