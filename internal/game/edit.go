package game

import (
	"fmt"
	"strings"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/future"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/world"
)

// change mutates a clone of the map. It runs after validation and must not
// fail except through an EditError it detects on the clone.
type change func(m *world.Map) error

// transaction is the shared edit path. cost is what the player pays
// (negative amounts refund); touched is the module definition whose contents
// change, or -1 for the global region.
func (g *Game) transaction(what string, p world.Path, time int64, cost flow.Amounts, touched int, apply change) error {
	if time < g.LastChangeTime {
		return &EditError{
			Code:    ErrCodeTimeReversed,
			Message: fmt.Sprintf("edit at %d precedes last change at %d", time, g.LastChangeTime),
			Path:    p,
		}
	}
	have := g.InventoryAt(time)
	if !have.Covers(positive(cost)) {
		return newInsufficient(p, positive(cost), have)
	}

	next := g.Map.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	if touched >= 0 {
		disturbInstances(&next, touched, time)
	}
	next = world.Canonicalize(next)
	types, err := world.NewTypes(g.catalog.Types(), &next)
	if err != nil {
		return &EditError{Code: ErrCodeRecursiveModule, Message: "map does not resolve", Path: p, Err: err}
	}
	fut := future.Compute(&next, types)

	g.commit(next, types, fut, time, have.Sub(cost))
	g.logger.Info("edit applied",
		"edit", what,
		"path", p.String(),
		"time", time,
		"machines", len(next.Global.Machines),
		"modules", len(next.Modules),
		"variations", fut.NumVariations())
	return nil
}

// positive drops refunds from a cost.
func positive(a flow.Amounts) flow.Amounts {
	out := flow.Amounts{}
	for m, n := range a {
		if n > 0 {
			out[m] = n
		}
	}
	return out
}

// disturbInstances marks every global instance whose definition contains
// module def as disturbed at time.
func disturbInstances(m *world.Map, def int, time int64) {
	for i := range m.Global.Machines {
		mc := &m.Global.Machines[i]
		if mc.Type.Kind != world.KindModule {
			continue
		}
		if mc.Type.Index == def || m.Contains(mc.Type.Index, def) {
			mc.State.LastDisturbedTime = time
		}
	}
}

// typeCost is the build cost of one machine of type id. A module costs
// the sum of its contents.
func (g *Game) typeCost(m *world.Map, id world.TypeID) flow.Amounts {
	memo := map[int]flow.Amounts{}
	var cost func(id world.TypeID) flow.Amounts
	cost = func(id world.TypeID) flow.Amounts {
		if id.Kind == world.KindPreset {
			p, _ := g.catalog.Preset(id.Index)
			return p.Cost
		}
		if c, ok := memo[id.Index]; ok {
			return c
		}
		total := flow.Amounts{}
		for _, mc := range m.Modules[id.Index].Region.Machines {
			total = total.Add(cost(mc.Type))
		}
		memo[id.Index] = total
		return total
	}
	return cost(id)
}

// copies is how many physical machines one placement in ref amounts to.
func copies(m *world.Map, ref world.RegionRef) int64 {
	if ref.Global() {
		return 1
	}
	return m.Instances(ref.Module)
}

func (g *Game) checkType(p world.Path, m *world.Map, ref world.RegionRef, id world.TypeID) error {
	switch id.Kind {
	case world.KindPreset:
		if _, ok := g.catalog.Preset(id.Index); !ok {
			return &EditError{Code: ErrCodeUnknownType, Message: fmt.Sprintf("no preset %d", id.Index), Path: p}
		}
	case world.KindModule:
		if id.Index < 0 || id.Index >= len(m.Modules) {
			return &EditError{Code: ErrCodeUnknownType, Message: fmt.Sprintf("no module %d", id.Index), Path: p}
		}
		if !ref.Global() && (id.Index == ref.Module || m.Contains(id.Index, ref.Module)) {
			return &EditError{
				Code:    ErrCodeRecursiveModule,
				Message: fmt.Sprintf("module %q would contain itself", m.Modules[ref.Module].Name),
				Path:    p,
			}
		}
	default:
		return &EditError{Code: ErrCodeUnknownType, Message: fmt.Sprintf("type kind %d", id.Kind), Path: p}
	}
	return nil
}

func (g *Game) radius(m *world.Map, id world.TypeID) int64 {
	if id.Kind == world.KindModule {
		return m.Modules[id.Index].Radius
	}
	p, _ := g.catalog.Preset(id.Index)
	return p.Type.Radius
}

// checkPlacement verifies a square of the given radius at pos fits in the
// region and overlaps no machine other than skip.
func (g *Game) checkPlacement(p world.Path, m *world.Map, ref world.RegionRef, pos geom.Vec2, radius int64, skip int) error {
	if len(ref.Region.Machines) >= world.MaxComponentsPerRegion && skip < 0 {
		return &EditError{
			Code:    ErrCodeRegionFull,
			Message: fmt.Sprintf("region holds %d machines", world.MaxComponentsPerRegion),
			Path:    p,
		}
	}
	sq := geom.Square{Center: pos, Radius: radius}
	if bound := m.Bound(ref, g.mapRadius); !sq.Within(bound) {
		return &EditError{
			Code:    ErrCodeOutOfBounds,
			Message: fmt.Sprintf("radius %d at %s leaves the region of half-width %d", radius, pos, bound),
			Path:    p,
		}
	}
	for i, other := range ref.Region.Machines {
		if i == skip {
			continue
		}
		if sq.Overlaps(geom.Square{Center: other.Center(), Radius: g.radius(m, other.Type)}) {
			return &EditError{
				Code:    ErrCodeOverlap,
				Message: fmt.Sprintf("overlaps the machine at %s", other.Center()),
				Path:    p,
			}
		}
	}
	return nil
}

// BuildMachine places a machine of type id at pos in the region reached by
// p, paying its cost once per physical copy.
func (g *Game) BuildMachine(p world.Path, id world.TypeID, pos geom.Isomorphism, time int64) error {
	ref, err := g.Map.Resolve(p)
	if err != nil {
		return newInvalidPath(p, err)
	}
	if err := g.checkType(p, &g.Map, ref, id); err != nil {
		return err
	}
	pos = pos.Normalize()
	if err := g.checkPlacement(p, &g.Map, ref, pos.Translation, g.radius(&g.Map, id), -1); err != nil {
		return err
	}
	cost := g.typeCost(&g.Map, id).Scale(copies(&g.Map, ref))

	return g.transaction("build "+g.typeName(id), p, time, cost, ref.Module, func(m *world.Map) error {
		r, err := m.Resolve(p)
		if err != nil {
			return newInvalidPath(p, err)
		}
		r.Region.Machines = append(r.Region.Machines, world.Machine{
			Type:  id,
			State: world.MachineState{Position: pos, LastDisturbedTime: time},
		})
		return nil
	})
}

// RemoveMachine removes the machine reached by p and refunds its cost.
func (g *Game) RemoveMachine(p world.Path, time int64) error {
	ref, i, err := g.Map.ResolveMachine(p)
	if err != nil {
		return newInvalidPath(p, err)
	}
	id := ref.Region.Machines[i].Type
	refund := g.typeCost(&g.Map, id).Scale(copies(&g.Map, ref))

	return g.transaction("remove "+g.typeName(id), p, time, flow.Amounts{}.Sub(refund), ref.Module, func(m *world.Map) error {
		r, j, err := m.ResolveMachine(p)
		if err != nil {
			return newInvalidPath(p, err)
		}
		r.Region.Machines = append(r.Region.Machines[:j:j], r.Region.Machines[j+1:]...)
		return nil
	})
}

// RotateMachine turns the machine reached by p so that its local +x axis
// points along facing.
func (g *Game) RotateMachine(p world.Path, facing geom.Facing, time int64) error {
	if !facing.Valid() {
		return &EditError{Code: ErrCodeInvalidPath, Message: fmt.Sprintf("invalid facing %s", facing), Path: p}
	}
	ref, i, err := g.Map.ResolveMachine(p)
	if err != nil {
		return newInvalidPath(p, err)
	}
	id := ref.Region.Machines[i].Type

	return g.transaction("rotate "+g.typeName(id), p, time, flow.Amounts{}, ref.Module, func(m *world.Map) error {
		r, j, err := m.ResolveMachine(p)
		if err != nil {
			return newInvalidPath(p, err)
		}
		st := &r.Region.Machines[j].State
		st.Position = st.Position.Rotated(uint8(facing))
		st.LastDisturbedTime = time
		return nil
	})
}

// BuildNewModule defines an empty module and places one instance of it at
// pos in the region reached by p.
func (g *Game) BuildNewModule(p world.Path, name string, radius int64, pos geom.Isomorphism, time int64) error {
	name = strings.TrimSpace(name)
	if name == "" || radius < 2 {
		return &EditError{
			Code:    ErrCodeInvalidModule,
			Message: fmt.Sprintf("module needs a name and radius of at least 2, got %q radius %d", name, radius),
			Path:    p,
		}
	}
	ref, err := g.Map.Resolve(p)
	if err != nil {
		return newInvalidPath(p, err)
	}
	pos = pos.Normalize()
	if err := g.checkPlacement(p, &g.Map, ref, pos.Translation, radius, -1); err != nil {
		return err
	}

	return g.transaction("define module "+name, p, time, flow.Amounts{}, ref.Module, func(m *world.Map) error {
		// resolve after appending, which may move the module table
		m.Modules = append(m.Modules, world.ModuleDef{Name: name, Radius: radius})
		r, err := m.Resolve(p)
		if err != nil {
			return newInvalidPath(p, err)
		}
		r.Region.Machines = append(r.Region.Machines, world.Machine{
			Type:  world.Module(len(m.Modules) - 1),
			State: world.MachineState{Position: pos, LastDisturbedTime: time},
		})
		return nil
	})
}

func (g *Game) typeName(id world.TypeID) string {
	if id.Kind == world.KindModule {
		if id.Index >= 0 && id.Index < len(g.Map.Modules) {
			return g.Map.Modules[id.Index].Name
		}
		return id.String()
	}
	if p, ok := g.catalog.Preset(id.Index); ok {
		return p.Type.Name
	}
	return id.String()
}
