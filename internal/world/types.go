package world

import (
	"fmt"

	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/topology"
)

// Types resolves TypeIDs of one map to machine types. Module types are
// derived from their regions; presets come from the catalog.
type Types struct {
	presets []*machine.Type
	modules []*machine.Type
}

// NewTypes derives the module types of m. Presets are shared, not copied.
func NewTypes(presets []*machine.Type, m *Map) (*Types, error) {
	ts := &Types{presets: presets, modules: make([]*machine.Type, len(m.Modules))}
	state := make([]uint8, len(m.Modules)) // 0 new, 1 in progress, 2 done
	var resolve func(i int) error
	resolve = func(i int) error {
		switch state[i] {
		case 1:
			return fmt.Errorf("module #%d instantiates itself", i)
		case 2:
			return nil
		}
		state[i] = 1
		def := &m.Modules[i]
		for _, mc := range def.Region.Machines {
			if err := ts.check(mc.Type, len(m.Modules)); err != nil {
				return fmt.Errorf("module #%d: %w", i, err)
			}
			if mc.Type.Kind == KindModule {
				if err := resolve(mc.Type.Index); err != nil {
					return err
				}
			}
		}
		ts.modules[i] = deriveModule(i, def, ts)
		state[i] = 2
		return nil
	}
	for i := range m.Modules {
		if err := resolve(i); err != nil {
			return nil, err
		}
	}
	for _, mc := range m.Global.Machines {
		if err := ts.check(mc.Type, len(m.Modules)); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func (ts *Types) check(id TypeID, modules int) error {
	switch id.Kind {
	case KindPreset:
		if id.Index < 0 || id.Index >= len(ts.presets) {
			return fmt.Errorf("unknown preset %d", id.Index)
		}
	case KindModule:
		if id.Index < 0 || id.Index >= modules {
			return fmt.Errorf("unknown module %d", id.Index)
		}
	}
	return nil
}

// Get returns the machine type for id.
func (ts *Types) Get(id TypeID) *machine.Type {
	if id.Kind == KindModule {
		return ts.modules[id.Index]
	}
	return ts.presets[id.Index]
}

// Presets returns the preset table.
func (ts *Types) Presets() []*machine.Type {
	return ts.presets
}

// Nodes returns the input and output locations of every machine in r, in
// the region frame.
func (ts *Types) Nodes(r *Region) []topology.Node {
	nodes := make([]topology.Node, len(r.Machines))
	for i, mc := range r.Machines {
		typ := ts.Get(mc.Type)
		iso := mc.State.Position
		for _, l := range typ.InputLocations() {
			nodes[i].Inputs = append(nodes[i].Inputs, iso.ApplyLocation(l))
		}
		for _, l := range typ.OutputLocations() {
			nodes[i].Outputs = append(nodes[i].Outputs, iso.ApplyLocation(l))
		}
	}
	return nodes
}

// deriveModule finds the ports of a module from its contents.
//
// An input port is a perimeter slot whose inward ray first meets an
// unconnected inner input travelling the same way. An output port is a
// perimeter slot reached by the outward ray of an unconnected inner output
// before it meets any machine. Both rays must have positive length.
func deriveModule(index int, def *ModuleDef, ts *Types) *machine.Type {
	nodes := ts.Nodes(&def.Region)
	edges := topology.Connect(nodes)
	squares := make([]geom.Square, len(def.Region.Machines))
	for i, mc := range def.Region.Machines {
		squares[i] = ts.Get(mc.Type).Square(mc.Center())
	}
	fed := make(map[topology.Target]bool)
	for _, outs := range edges {
		for _, t := range outs {
			if t != nil {
				fed[*t] = true
			}
		}
	}
	inputsAt := make(map[geom.Location]topology.Target)
	for m, n := range nodes {
		for s, l := range n.Inputs {
			inputsAt[l] = topology.Target{Machine: m, Slot: s}
		}
	}
	blocked := func(p geom.Vec2) bool {
		for _, sq := range squares {
			if sq.Contains(p) {
				return true
			}
		}
		return false
	}

	mod := &machine.Module{Index: index}
	r := def.Radius
	for _, slot := range geom.PerimeterSlots(r) {
		if len(mod.Inputs) == machine.MaxInputs {
			break
		}
		inward := slot.Facing.Reverse()
		step := inward.Vec()
		for k := int64(1); k <= 2*r; k++ {
			p := slot.Position.Add(step.Scale(k))
			if t, ok := inputsAt[geom.Location{Position: p, Facing: inward}]; ok {
				l := nodes[t.Machine].Inputs[t.Slot]
				if !fed[t] {
					mod.Inputs = append(mod.Inputs, machine.ModulePort{
						Location: geom.Location{Position: slot.Position, Facing: inward},
						Inner:    l,
						Machine:  t.Machine,
						Slot:     t.Slot,
					})
				}
				break
			}
			if blocked(p) {
				break
			}
		}
	}

	claimed := make(map[geom.Vec2]bool)
	for _, p := range mod.Inputs {
		claimed[p.Location.Position] = true
	}
	for m, n := range nodes {
		for s, l := range n.Outputs {
			if edges[m][s] != nil {
				continue
			}
			step := l.Facing.Vec()
			for k := int64(1); k <= 2*r; k++ {
				p := l.Position.Add(step.Scale(k))
				if out, ok := geom.OutwardFacing(p, r); ok || abs(p.X) >= r || abs(p.Y) >= r {
					if ok && out == l.Facing && geom.IsPerimeterSlot(p, r) && !claimed[p] {
						claimed[p] = true
						mod.Outputs = append(mod.Outputs, machine.ModulePort{
							Location: geom.Location{Position: p, Facing: l.Facing},
							Inner:    l,
							Machine:  m,
							Slot:     s,
						})
					}
					break
				}
				if blocked(p) {
					break
				}
			}
		}
	}

	return &machine.Type{
		Kind:   machine.KindModule,
		Name:   def.Name,
		Radius: def.Radius,
		Module: mod,
	}
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
