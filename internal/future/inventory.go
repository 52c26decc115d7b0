package future

import (
	"slices"

	"github.com/roach88/flowgrid/internal/flow"
)

// Interval is the half-open tick range [Start, End). End is flow.MaxTime
// for a flow that never stops.
type Interval struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Intersect returns the overlap of two intervals and whether it is
// non-empty.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	out := Interval{Start: max(iv.Start, o.Start), End: min(iv.End, o.End)}
	return out, out.Start < out.End
}

func (iv Interval) shifted(d int64) Interval {
	out := Interval{Start: iv.Start + d, End: iv.End}
	if iv.End != flow.MaxTime {
		out.End += d
	}
	return out
}

// Entry is one flow reaching the inventory during an interval.
type Entry struct {
	Interval Interval     `json:"interval"`
	Pattern  flow.Pattern `json:"pattern"`
}

// Inventory lists, per material, the flows that leave the factory.
type Inventory map[flow.Material][]Entry

// add records a flow that is dumped from its first disbursement onwards.
func (inv Inventory) add(f flow.MaterialFlow) {
	if f.Pattern.IsZero() {
		return
	}
	inv[f.Material] = append(inv[f.Material], Entry{
		Interval: Interval{Start: f.Pattern.StartTime, End: flow.MaxTime},
		Pattern:  f.Pattern,
	})
}

// merge appends every entry of o delayed by d.
func (inv Inventory) merge(o Inventory, d int64) {
	for m, entries := range o {
		for _, e := range entries {
			inv[m] = append(inv[m], Entry{
				Interval: e.Interval.shifted(d),
				Pattern:  e.Pattern.Delayed(d),
			})
		}
	}
}

// AccumulationBetween counts the units of every material that arrive in
// [a, b).
func (inv Inventory) AccumulationBetween(a, b int64) flow.Amounts {
	out := flow.Amounts{}
	if b <= a {
		return out
	}
	for m, entries := range inv {
		var n int64
		for _, e := range entries {
			if iv, ok := e.Interval.Intersect(Interval{Start: a, End: b}); ok {
				n += e.Pattern.NumDisbursedBetween(iv.Start, iv.End)
			}
		}
		if n != 0 {
			out[m] = n
		}
	}
	return out
}

// Rates returns the combined steady-state rate per material.
func (inv Inventory) Rates() flow.Amounts {
	out := flow.Amounts{}
	for m, entries := range inv {
		for _, e := range entries {
			out[m] += e.Pattern.Rate
		}
	}
	return out
}

// Materials lists the materials present, in material order.
func (inv Inventory) Materials() []flow.Material {
	out := make([]flow.Material, 0, len(inv))
	for m := range inv {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
