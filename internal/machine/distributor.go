package machine

import (
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

// Distributor moves whole units from its inputs to its outputs round robin
// without transforming them. Conveyors, splitters and mergers are
// distributors.
type Distributor struct {
	Inputs  []geom.Location
	Outputs []geom.Location
}

// DistributorFuture is the steady state of a distributor.
type DistributorFuture struct {
	Material      flow.Material
	PerOutputRate int64
	// FirstOutput is the first disbursement of output 0; output k starts
	// Latency·k later.
	FirstOutput int64
	Latency     int64
	// InputsBefore counts merged input disbursements before the start time;
	// the next one is the first unit this distributor handles.
	InputsBefore int64
	TotalRate    int64
}

func (d *Distributor) future(in Inputs, start int64) (*Future, OperatingState) {
	material := flow.MaterialNone
	var total int64
	for _, f := range in {
		if f == nil || f.Pattern.Rate == 0 {
			continue
		}
		if material == flow.MaterialNone {
			material = f.Material
		} else if material != f.Material {
			return nil, InputIncompatible
		}
		total += f.Pattern.Rate
	}
	if material == flow.MaterialNone {
		return nil, InputMissing
	}
	n := int64(len(d.Outputs))
	rate := min(flow.StandardRate, total/n)
	if rate == 0 {
		return nil, InputTooInfrequent
	}
	first := flow.MinTime
	for _, f := range in {
		if f == nil || f.Pattern.Rate == 0 {
			continue
		}
		at, _ := f.Pattern.FirstDisbursementTimeGEQ(start)
		first = max(first, at)
	}
	return &Future{Distributor: &DistributorFuture{
		Material:      material,
		PerOutputRate: rate,
		FirstOutput:   first + flow.TimeToMoveMaterial,
		Latency:       flow.CeilDiv(flow.RateDivisor, rate*n),
		InputsBefore:  flow.MergedBefore(inputPatterns(in), start),
		TotalRate:     total,
	}}, Operating
}

func (d *Distributor) outputPattern(f *DistributorFuture, k int) flow.Pattern {
	return flow.NewPattern(f.FirstOutput+int64(k)*f.Latency, f.PerOutputRate)
}

func (d *Distributor) outputFlows(f *DistributorFuture) []*flow.MaterialFlow {
	out := make([]*flow.MaterialFlow, len(d.Outputs))
	for k := range d.Outputs {
		out[k] = &flow.MaterialFlow{Pattern: d.outputPattern(f, k), Material: f.Material}
	}
	return out
}

// source pairs disbursement n of output k with the merged input disbursement
// that feeds it. Output events are numbered n·N+k across all outputs, and
// that combined index is scaled by the ratio of input to output rate.
func (d *Distributor) source(inputs []flow.Pattern, f *DistributorFuture, k int, n int64) (int64, int, bool) {
	outputs := int64(len(d.Outputs))
	m := n*outputs + int64(k)
	p := f.InputsBefore + flow.FloorDiv(m*f.TotalRate, outputs*f.PerOutputRate)
	return flow.MergedNth(inputs, p)
}

func (d *Distributor) visuals(in Inputs, f *DistributorFuture, at int64) Visuals {
	v := Visuals{State: Operating}
	if at <= f.FirstOutput-flow.TimeToMoveMaterial {
		v.State = WaitingForInput
	}
	inputs := inputPatterns(in)
	center := geom.FracVec{}
	for k, loc := range d.Outputs {
		out := d.outputPattern(f, k)
		dst := geom.Frac(loc.Position)
		for n, drawn := out.NumDisbursedBefore(at), 0; drawn < maxDrawnPerSlot; n, drawn = n+1, drawn+1 {
			leave, _ := out.NthDisbursementTime(n)
			arrive, slot, ok := d.source(inputs, f, k, n)
			src := center
			if ok && arrive < leave {
				src = geom.Frac(d.Inputs[slot].Position)
			} else {
				arrive = leave - flow.TimeToMoveMaterial
			}
			if arrive >= at {
				break
			}
			if p, ok := through(src, center, dst, arrive, leave, at); ok {
				v.draw(p, f.Material)
			}
		}
	}
	return v
}

func inputPatterns(in Inputs) []flow.Pattern {
	out := make([]flow.Pattern, len(in))
	for i, f := range in {
		if f != nil {
			out[i] = f.Pattern
		}
	}
	return out
}
