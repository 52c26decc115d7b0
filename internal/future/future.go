// Package future computes the steady state of every machine on a map.
//
// Each region is walked once in topological order. A machine sees the flows
// its upstream machines produce, derives its future and passes its outputs
// on. Outputs without a downstream machine are dumped into the inventory, or
// leave through a port when the region belongs to a module.
//
// Module instances do not walk their region themselves. Their inputs are
// rounded down to canonical rates and the inner region is computed once per
// distinct (module, canonical inputs) pair. The memo lives in the Future
// and dies with it.
package future

import (
	"fmt"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/topology"
	"github.com/roach88/flowgrid/internal/world"
)

// MachineFuture is the computed state of one machine.
type MachineFuture struct {
	Inputs machine.Inputs
	// Future is nil when the machine does not operate.
	Future  *machine.Future
	State   machine.OperatingState
	Outputs []*flow.MaterialFlow
	// Variation is the inner region future of a module instance, in the
	// inner frame.
	Variation *RegionFuture
}

// Operating reports whether the machine has a future.
func (mf *MachineFuture) Operating() bool {
	return mf.Future != nil
}

// Dump is an output flow that leaves the region for the inventory.
type Dump struct {
	Machine int
	Slot    int
	Flow    flow.MaterialFlow
}

// RegionFuture is the computed state of one region.
type RegionFuture struct {
	Machines []MachineFuture
	Edges    topology.Edges
	Ordering topology.Ordering
	Dumped   []Dump
	// PortOutputs holds, for a module region, the flow reaching each output
	// port.
	PortOutputs []*flow.MaterialFlow
	// Inventory includes the inventory of nested module instances.
	Inventory Inventory
}

// Future is the computed state of a whole map.
type Future struct {
	Root *RegionFuture
	// Variations memoizes module regions by module index and canonical
	// inputs.
	Variations map[int]map[machine.CanonicalInputs]*RegionFuture

	m     *world.Map
	types *world.Types
}

// Compute derives the future of m. The result is a pure function of m and
// the types.
func Compute(m *world.Map, types *world.Types) *Future {
	f := &Future{
		Variations: make(map[int]map[machine.CanonicalInputs]*RegionFuture),
		m:          m,
		types:      types,
	}
	f.Root = f.region(&m.Global, nil, nil)
	return f
}

// Variation returns the memoized region future of module i for the given
// canonical inputs.
func (f *Future) Variation(i int, in machine.CanonicalInputs) (*RegionFuture, bool) {
	rf, ok := f.Variations[i][in]
	return rf, ok
}

// NumVariations counts memoized module region futures.
func (f *Future) NumVariations() int {
	n := 0
	for _, vs := range f.Variations {
		n += len(vs)
	}
	return n
}

func (f *Future) variation(mod *machine.Type, in machine.CanonicalInputs) *RegionFuture {
	i := mod.Module.Index
	if rf, ok := f.Variations[i][in]; ok {
		return rf
	}
	if f.Variations[i] == nil {
		f.Variations[i] = make(map[machine.CanonicalInputs]*RegionFuture)
	}
	rf := f.region(&f.m.Modules[i].Region, mod, in.Flows(len(mod.Module.Inputs)))
	f.Variations[i][in] = rf
	return rf
}

// region walks one region. For a module region, mod is the module type and
// portInputs the inner-frame flow entering each input port.
func (f *Future) region(r *world.Region, mod *machine.Type, portInputs []*flow.MaterialFlow) *RegionFuture {
	edges := topology.Connect(f.types.Nodes(r))
	rf := &RegionFuture{
		Machines:  make([]MachineFuture, len(r.Machines)),
		Edges:     edges,
		Ordering:  topology.Sort(edges),
		Inventory: Inventory{},
	}

	types := make([]*machine.Type, len(r.Machines))
	for i, mc := range r.Machines {
		types[i] = f.types.Get(mc.Type)
		rf.Machines[i].Inputs = make(machine.Inputs, types[i].NumInputs())
	}

	// port slots keyed by the inner output they drain
	ports := make(map[topology.Target]int)
	if mod != nil {
		for p, port := range mod.Module.Inputs {
			rf.Machines[port.Machine].Inputs[port.Slot] = portInputs[p]
		}
		for p, port := range mod.Module.Outputs {
			ports[topology.Target{Machine: port.Machine, Slot: port.Slot}] = p
		}
		rf.PortOutputs = make([]*flow.MaterialFlow, len(mod.Module.Outputs))
	}

	for i, cyclic := range rf.Ordering.InCycle {
		if cyclic {
			rf.Machines[i].State = machine.InCycle
		}
	}

	for _, i := range rf.Ordering.Order {
		mf := &rf.Machines[i]
		typ := types[i]
		fut, state := typ.Future(mf.Inputs, r.Machines[i].State.LastDisturbedTime)
		mf.State = state
		if fut == nil {
			continue
		}
		if typ.Kind == machine.KindModule {
			mf.Variation = f.variation(typ, fut.Module.Canonical)
			fut.Module.PortOutputs = mf.Variation.PortOutputs
			rf.Inventory.merge(mf.Variation.Inventory, fut.Module.Start)
		}
		mf.Future = fut
		mf.Outputs = typ.OutputFlows(mf.Inputs, fut)

		for s, out := range mf.Outputs {
			if out == nil {
				continue
			}
			if t := edges[i][s]; t != nil && !rf.Ordering.InCycle[t.Machine] {
				rf.Machines[t.Machine].Inputs[t.Slot] = out
				continue
			}
			if p, ok := ports[topology.Target{Machine: i, Slot: s}]; ok {
				rf.PortOutputs[p] = out
				continue
			}
			rf.Dumped = append(rf.Dumped, Dump{Machine: i, Slot: s, Flow: *out})
			rf.Inventory.add(*out)
		}
	}
	return rf
}

// Check recomputes the future of the map and panics if it differs from f.
func (f *Future) Check() {
	fresh := Compute(f.m, f.types)
	if err := equalRegions(f.Root, fresh.Root, "/"); err != nil {
		panic(fmt.Sprintf("future: stored future is stale: %v", err))
	}
}

// Equal reports whether two futures derive the same flows everywhere.
func Equal(a, b *Future) error {
	return equalRegions(a.Root, b.Root, "/")
}

func equalRegions(a, b *RegionFuture, at string) error {
	if len(a.Machines) != len(b.Machines) {
		return fmt.Errorf("%s: %d machines vs %d", at, len(a.Machines), len(b.Machines))
	}
	for i := range a.Machines {
		ma, mb := &a.Machines[i], &b.Machines[i]
		if ma.State != mb.State {
			return fmt.Errorf("%s#%d: state %s vs %s", at, i, ma.State, mb.State)
		}
		if !equalFlows(ma.Inputs, mb.Inputs) {
			return fmt.Errorf("%s#%d: inputs differ", at, i)
		}
		if !equalFlows(ma.Outputs, mb.Outputs) {
			return fmt.Errorf("%s#%d: outputs differ", at, i)
		}
		if (ma.Variation == nil) != (mb.Variation == nil) {
			return fmt.Errorf("%s#%d: variation presence differs", at, i)
		}
		if ma.Variation != nil {
			if err := equalRegions(ma.Variation, mb.Variation, fmt.Sprintf("%s#%d/", at, i)); err != nil {
				return err
			}
		}
	}
	if len(a.Dumped) != len(b.Dumped) {
		return fmt.Errorf("%s: %d dumped flows vs %d", at, len(a.Dumped), len(b.Dumped))
	}
	for i := range a.Dumped {
		da, db := a.Dumped[i], b.Dumped[i]
		if da.Machine != db.Machine || da.Slot != db.Slot || !da.Flow.Equal(db.Flow) {
			return fmt.Errorf("%s: dumped flow %d differs", at, i)
		}
	}
	return nil
}

func equalFlows(a, b []*flow.MaterialFlow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if (a[i] == nil) != (b[i] == nil) {
			return false
		}
		if a[i] != nil && !a[i].Equal(*b[i]) {
			return false
		}
	}
	return true
}
