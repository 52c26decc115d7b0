package world

import (
	"slices"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize returns the canonical form of m:
//
//  1. every region is sorted by spatial id;
//  2. module definitions reachable from the global region are renumbered
//     in depth-first completion order, so a module only references lower
//     indices; unreachable definitions are dropped;
//  3. structurally identical definitions are merged;
//  4. module names are NFC normalized and disturbed times inside module
//     definitions are zeroed, since a definition has no absolute anchor.
//
// Canonicalize is idempotent. The input is not modified.
func Canonicalize(m Map) Map {
	src := m.Clone()
	src.Global.Sort()
	for i := range src.Modules {
		src.Modules[i].Region.Sort()
	}

	order := make([]int, 0, len(src.Modules))
	visited := make([]bool, len(src.Modules))
	var visit func(r *Region)
	visit = func(r *Region) {
		for _, mc := range r.Machines {
			if mc.Type.Kind != KindModule {
				continue
			}
			i := mc.Type.Index
			if i < 0 || i >= len(src.Modules) || visited[i] {
				continue
			}
			visited[i] = true
			visit(&src.Modules[i].Region)
			order = append(order, i)
		}
	}
	visit(&src.Global)

	// remap[old] is the final index of an old definition
	remap := make(map[int]int, len(order))
	out := Map{Modules: make([]ModuleDef, 0, len(order))}
	for _, old := range order {
		def := src.Modules[old]
		def.Name = norm.NFC.String(def.Name)
		for j := range def.Region.Machines {
			mc := &def.Region.Machines[j]
			mc.State.LastDisturbedTime = 0
			if mc.Type.Kind == KindModule {
				mc.Type.Index = remap[mc.Type.Index]
			}
		}
		if dup := slices.IndexFunc(out.Modules, func(o ModuleDef) bool { return sameDef(o, def) }); dup >= 0 {
			remap[old] = dup
			continue
		}
		remap[old] = len(out.Modules)
		out.Modules = append(out.Modules, def)
	}

	out.Global = src.Global
	for j := range out.Global.Machines {
		mc := &out.Global.Machines[j]
		if mc.Type.Kind == KindModule {
			mc.Type.Index = remap[mc.Type.Index]
		}
	}
	return out
}

func sameDef(a, b ModuleDef) bool {
	return a.Name == b.Name && a.Radius == b.Radius && slices.Equal(a.Region.Machines, b.Region.Machines)
}

// IsCanonical reports whether m is already in canonical form.
func IsCanonical(m Map) bool {
	return Canonicalize(m).Equal(m)
}
