// Package view is the read-only face of a game for renderers. Everything it
// returns is in world coordinates and absolute time: positions pass through
// the chain of module instances from the global region down, and machines
// inside a module instance see time relative to that instance's start.
package view

import (
	"fmt"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/future"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/world"
)

// View reads one game. It must not outlive the next edit of that game.
type View struct {
	g *game.Game
}

// New returns a view of g.
func New(g *game.Game) *View {
	return &View{g: g}
}

// Placed is a machine with its absolute placement.
type Placed struct {
	Path    world.Path    `json:"path"`
	Machine world.Machine `json:"machine"`
	Type    string        `json:"type"`
	// Transform maps the machine frame to world coordinates.
	Transform geom.Isomorphism `json:"transform"`
	// StartTime is the machine's last disturbance in absolute time.
	StartTime int64                  `json:"start_time"`
	State     machine.OperatingState `json:"state"`
}

// MachineVisuals is what one machine shows at an instant, in world
// coordinates.
type MachineVisuals struct {
	Path      world.Path                `json:"path"`
	Type      string                    `json:"type"`
	State     machine.OperatingState    `json:"state"`
	Materials []machine.VisualMaterial  `json:"materials"`
	Progress  *machine.AssemblyProgress `json:"progress,omitempty"`
}

// frame is a region reached through module instances together with the
// future that drives it.
type frame struct {
	path      world.Path
	region    *world.Region
	transform geom.Isomorphism
	// offset is the absolute time of the region's time 0.
	offset int64
	// future is nil inside a module instance that does not operate; its
	// machines then report idle.
	future *future.RegionFuture
	idle   machine.OperatingState
}

func (f frame) state(i int) machine.OperatingState {
	if mf := f.machine(i); mf != nil {
		return mf.State
	}
	return f.idle
}

func (f frame) machine(i int) *future.MachineFuture {
	if f.future == nil || i >= len(f.future.Machines) {
		return nil
	}
	return &f.future.Machines[i]
}

// enter descends into the module instance at index i of f.
func (v *View) enter(f frame, i int) (frame, error) {
	m := &v.g.Map
	mc := &f.region.Machines[i]
	if mc.Type.Kind != world.KindModule || mc.Type.Index >= len(m.Modules) {
		return frame{}, fmt.Errorf("%w: machine at %s is not a module", world.ErrInvalidPath, mc.Center())
	}
	inner := frame{
		path:      f.path.Append(mc.Center()),
		region:    &m.Modules[mc.Type.Index].Region,
		transform: f.transform.Compose(mc.State.Position),
		offset:    f.offset,
		idle:      f.state(i),
	}
	if mf := f.machine(i); mf != nil && mf.Future != nil && mf.Future.Module != nil {
		inner.offset = f.offset + mf.Future.Module.Start
		inner.future = mf.Variation
	}
	return inner, nil
}

func (v *View) root() frame {
	return frame{
		region:    &v.g.Map.Global,
		transform: geom.Identity,
		future:    v.g.Future().Root,
	}
}

// resolve follows a region path.
func (v *View) resolve(p world.Path) (frame, error) {
	f := v.root()
	for depth, step := range p {
		i, ok := f.region.Find(step)
		if !ok {
			return frame{}, fmt.Errorf("%w: no machine at %s (step %d of %s)", world.ErrInvalidPath, step, depth, p)
		}
		next, err := v.enter(f, i)
		if err != nil {
			return frame{}, err
		}
		f = next
	}
	return f, nil
}

func (v *View) typeName(id world.TypeID) string {
	if t := v.g.Types().Get(id); t != nil {
		return t.Name
	}
	return id.String()
}

// MachinesAtDepth lists the machines of the region reached by p with their
// world transform and absolute start time.
func (v *View) MachinesAtDepth(p world.Path) ([]Placed, error) {
	f, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	out := make([]Placed, len(f.region.Machines))
	for i, mc := range f.region.Machines {
		out[i] = Placed{
			Path:      f.path.Append(mc.Center()),
			Machine:   mc,
			Type:      v.typeName(mc.Type),
			Transform: f.transform.Compose(mc.State.Position),
			StartTime: f.offset + mc.State.LastDisturbedTime,
			State:     f.state(i),
		}
	}
	return out, nil
}

// MomentaryVisuals reports every machine on the map at absolute time t,
// module contents included. Machines inside a module instance that does not
// operate report the instance's state and draw nothing.
func (v *View) MomentaryVisuals(t int64) []MachineVisuals {
	var out []MachineVisuals
	v.visit(v.root(), func(f frame, i int) {
		mc := f.region.Machines[i]
		typ := v.g.Types().Get(mc.Type)
		mv := MachineVisuals{
			Path:  f.path.Append(mc.Center()),
			Type:  typ.Name,
			State: f.state(i),
		}
		if mf := f.machine(i); mf != nil {
			vis := typ.MomentaryVisuals(mf.Inputs, mf.Future, mf.State, t-f.offset)
			toWorld := f.transform.Compose(mc.State.Position)
			mv.State = vis.State
			mv.Progress = vis.Progress
			mv.Materials = make([]machine.VisualMaterial, len(vis.Materials))
			for k, vm := range vis.Materials {
				mv.Materials[k] = machine.VisualMaterial{Position: toWorld.ApplyFrac(vm.Position), Material: vm.Material}
			}
		}
		out = append(out, mv)
	})
	return out
}

// visit calls fn for every machine below f in region order, parents before
// their contents.
func (v *View) visit(f frame, fn func(f frame, i int)) {
	for i, mc := range f.region.Machines {
		fn(f, i)
		if mc.Type.Kind != world.KindModule {
			continue
		}
		inner, err := v.enter(f, i)
		if err != nil {
			panic(fmt.Sprintf("view: canonical map has a bad module reference: %v", err))
		}
		v.visit(inner, fn)
	}
}

// InventoryAt returns the inventory at absolute time t.
func (v *View) InventoryAt(t int64) flow.Amounts {
	return v.g.InventoryAt(t)
}

// SmallestModuleContaining returns the path of the innermost module
// instance, starting from the region at p, whose square contains the square
// of the given radius around world position pos. It returns p itself when
// no instance in that region contains it.
func (v *View) SmallestModuleContaining(p world.Path, pos geom.Vec2, radius int64) (world.Path, error) {
	f, err := v.resolve(p)
	if err != nil {
		return nil, err
	}
	for {
		local := f.transform.Inverse().Apply(pos)
		found := -1
		for i, mc := range f.region.Machines {
			if mc.Type.Kind != world.KindModule {
				continue
			}
			r := v.g.Map.Modules[mc.Type.Index].Radius
			if (geom.Square{Center: local.Sub(mc.Center()), Radius: radius}).Within(r) {
				found = i
				break
			}
		}
		if found < 0 {
			return f.path, nil
		}
		if f, err = v.enter(f, found); err != nil {
			return nil, err
		}
	}
}
