// Package world holds the editable map: the global region, the custom
// module table, and the machines placed in each region.
//
// Module definitions reference each other only by index into Map.Modules.
// In canonical form a module references only lower indices, so the table
// is a DAG by construction.
package world

import (
	"fmt"
	"slices"

	"github.com/roach88/flowgrid/internal/geom"
)

// MaxComponentsPerRegion bounds the number of machines in one region.
const MaxComponentsPerRegion = 256

// TypeKind says which table a TypeID indexes.
type TypeKind uint8

const (
	KindPreset TypeKind = iota
	KindModule
)

func (k TypeKind) String() string {
	if k == KindModule {
		return "module"
	}
	return "preset"
}

// MarshalText implements encoding.TextMarshaler.
func (k TypeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TypeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "preset":
		*k = KindPreset
	case "module":
		*k = KindModule
	default:
		return fmt.Errorf("unknown type kind %q", string(b))
	}
	return nil
}

// TypeID names a machine type: a built-in preset or a custom module.
type TypeID struct {
	Kind  TypeKind `json:"kind"`
	Index int      `json:"index"`
}

// Preset returns the TypeID of preset i.
func Preset(i int) TypeID {
	return TypeID{Kind: KindPreset, Index: i}
}

// Module returns the TypeID of custom module i.
func Module(i int) TypeID {
	return TypeID{Kind: KindModule, Index: i}
}

func (id TypeID) String() string {
	return fmt.Sprintf("%s#%d", id.Kind, id.Index)
}

// MachineState is the placement of a machine in its region.
type MachineState struct {
	Position geom.Isomorphism `json:"position"`
	// LastDisturbedTime is relative to the start of the enclosing region.
	LastDisturbedTime int64 `json:"last_disturbed_time"`
}

// Machine is one placed machine.
type Machine struct {
	Type  TypeID       `json:"type"`
	State MachineState `json:"state"`
}

// Center returns the machine's position in its region.
func (m Machine) Center() geom.Vec2 {
	return m.State.Position.Translation
}

// Region is a flat collection of machines.
type Region struct {
	Machines []Machine `json:"machines"`
}

// Find returns the index of the machine centered at pos.
func (r *Region) Find(pos geom.Vec2) (int, bool) {
	for i, m := range r.Machines {
		if m.Center() == pos {
			return i, true
		}
	}
	return 0, false
}

// Sort orders machines by spatial id.
func (r *Region) Sort() {
	slices.SortStableFunc(r.Machines, func(a, b Machine) int {
		return a.Center().Compare(b.Center())
	})
}

func (r Region) clone() Region {
	return Region{Machines: slices.Clone(r.Machines)}
}

// ModuleDef is a named reusable region of a given radius.
type ModuleDef struct {
	Name   string `json:"name"`
	Radius int64  `json:"radius"`
	Region Region `json:"region"`
}

// Map is everything the player has built.
type Map struct {
	Global  Region      `json:"global"`
	Modules []ModuleDef `json:"modules"`
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	out := Map{Global: m.Global.clone()}
	if m.Modules != nil {
		out.Modules = make([]ModuleDef, len(m.Modules))
	}
	for i, d := range m.Modules {
		out.Modules[i] = ModuleDef{Name: d.Name, Radius: d.Radius, Region: d.Region.clone()}
	}
	return out
}

// Equal reports whether two maps are identical.
func (m Map) Equal(o Map) bool {
	if !slices.Equal(m.Global.Machines, o.Global.Machines) || len(m.Modules) != len(o.Modules) {
		return false
	}
	for i := range m.Modules {
		a, b := m.Modules[i], o.Modules[i]
		if a.Name != b.Name || a.Radius != b.Radius || !slices.Equal(a.Region.Machines, b.Region.Machines) {
			return false
		}
	}
	return true
}

// Contains reports whether module def, directly or through nested modules,
// instantiates module target.
func (m *Map) Contains(def, target int) bool {
	seen := make(map[int]bool)
	var walk func(int) bool
	walk = func(i int) bool {
		if seen[i] || i < 0 || i >= len(m.Modules) {
			return false
		}
		seen[i] = true
		for _, mc := range m.Modules[i].Region.Machines {
			if mc.Type.Kind != KindModule {
				continue
			}
			if mc.Type.Index == target || walk(mc.Type.Index) {
				return true
			}
		}
		return false
	}
	return walk(def)
}

// Instances counts how many times module i is physically present in the
// global region, including through nested modules.
func (m *Map) Instances(i int) int64 {
	memo := make(map[int]int64)
	var count func(r *Region) int64
	var inDef func(d int) int64
	inDef = func(d int) int64 {
		if n, ok := memo[d]; ok {
			return n
		}
		memo[d] = 0
		n := count(&m.Modules[d].Region)
		memo[d] = n
		return n
	}
	count = func(r *Region) int64 {
		var n int64
		for _, mc := range r.Machines {
			if mc.Type.Kind != KindModule {
				continue
			}
			if mc.Type.Index == i {
				n++
			}
			n += inDef(mc.Type.Index)
		}
		return n
	}
	return count(&m.Global)
}
