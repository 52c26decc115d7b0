package world

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/flowgrid/internal/geom"
)

// ErrInvalidPath reports a path that does not lead through module
// instances to an existing machine or region.
var ErrInvalidPath = errors.New("invalid path")

// Path selects a region or machine by the centers of module instances
// from the global region down. The empty path is the global region.
type Path []geom.Vec2

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = v.String()
	}
	return "/" + strings.Join(parts, "/")
}

// ParsePath parses the form produced by Path.String. Steps are written
// "(x,y)" and separated by slashes; "/" and "" are the global region.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" {
		return nil, nil
	}
	var p Path
	for _, part := range strings.Split(strings.TrimPrefix(s, "/"), "/") {
		var v geom.Vec2
		if _, err := fmt.Sscanf(part, "(%d,%d)", &v.X, &v.Y); err != nil {
			return nil, fmt.Errorf("parse path %q: step %q: %w", s, part, err)
		}
		p = append(p, v)
	}
	return p, nil
}

// Parent returns the path without its last step.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final step of a non-empty path.
func (p Path) Last() geom.Vec2 {
	return p[len(p)-1]
}

// Append returns p extended by one step, never aliasing p.
func (p Path) Append(step geom.Vec2) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, step)
}

// RegionRef is a region reached through a path.
type RegionRef struct {
	Region *Region
	// Module is the index of the module definition owning the region, or
	// -1 for the global region.
	Module int
	// Transform maps region coordinates to global coordinates through one
	// instance chosen by the path.
	Transform geom.Isomorphism
	// Chain lists the module instances traversed, outermost first.
	Chain []*Machine
}

// Global reports whether the region is the global region.
func (r RegionRef) Global() bool {
	return r.Module < 0
}

// Resolve follows a region path.
func (m *Map) Resolve(p Path) (RegionRef, error) {
	ref := RegionRef{Region: &m.Global, Module: -1, Transform: geom.Identity}
	for depth, step := range p {
		i, ok := ref.Region.Find(step)
		if !ok {
			return RegionRef{}, fmt.Errorf("%w: no machine at %s (step %d of %s)", ErrInvalidPath, step, depth, p)
		}
		mc := &ref.Region.Machines[i]
		if mc.Type.Kind != KindModule || mc.Type.Index >= len(m.Modules) {
			return RegionRef{}, fmt.Errorf("%w: machine at %s is not a module (step %d of %s)", ErrInvalidPath, step, depth, p)
		}
		ref.Transform = ref.Transform.Compose(mc.State.Position)
		ref.Chain = append(ref.Chain, mc)
		ref.Module = mc.Type.Index
		ref.Region = &m.Modules[mc.Type.Index].Region
	}
	return ref, nil
}

// ResolveMachine follows a machine path: the parent region plus the index
// of the machine named by the last step.
func (m *Map) ResolveMachine(p Path) (RegionRef, int, error) {
	if len(p) == 0 {
		return RegionRef{}, 0, fmt.Errorf("%w: empty machine path", ErrInvalidPath)
	}
	ref, err := m.Resolve(p.Parent())
	if err != nil {
		return RegionRef{}, 0, err
	}
	i, ok := ref.Region.Find(p.Last())
	if !ok {
		return RegionRef{}, 0, fmt.Errorf("%w: no machine at %s in %s", ErrInvalidPath, p.Last(), p.Parent())
	}
	return ref, i, nil
}

// Bound returns the half-width of the square machines in the region must
// stay inside.
func (m *Map) Bound(ref RegionRef, mapRadius int64) int64 {
	if ref.Global() {
		return mapRadius
	}
	return m.Modules[ref.Module].Radius
}
