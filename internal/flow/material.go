package flow

import "fmt"

// Material is the closed set of things that move between machines. The zero
// value is not a material.
type Material uint8

const (
	MaterialNone Material = iota
	IronOre
	Iron
	CopperOre
	Copper
	Gear
	Wire
	Circuit
	// Garbage is what incompatible materials become when merged.
	Garbage
)

var materialNames = [...]string{
	MaterialNone: "none",
	IronOre:      "iron_ore",
	Iron:         "iron",
	CopperOre:    "copper_ore",
	Copper:       "copper",
	Gear:         "gear",
	Wire:         "wire",
	Circuit:      "circuit",
	Garbage:      "garbage",
}

// Materials lists every real material in declaration order.
func Materials() []Material {
	out := make([]Material, 0, len(materialNames)-1)
	for m := IronOre; int(m) < len(materialNames); m++ {
		out = append(out, m)
	}
	return out
}

// Valid reports whether m is a real material.
func (m Material) Valid() bool {
	return m > MaterialNone && int(m) < len(materialNames)
}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("material(%d)", uint8(m))
}

// ParseMaterial returns the material with the given snake_case name.
func ParseMaterial(name string) (Material, error) {
	for i, n := range materialNames {
		if i != int(MaterialNone) && n == name {
			return Material(i), nil
		}
	}
	return MaterialNone, fmt.Errorf("unknown material %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Material) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Material) UnmarshalText(b []byte) error {
	parsed, err := ParseMaterial(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Amounts is a count of units per material. Absent keys mean zero.
type Amounts map[Material]int64

// Clone returns a copy of a.
func (a Amounts) Clone() Amounts {
	out := make(Amounts, len(a))
	for m, n := range a {
		out[m] = n
	}
	return out
}

// Add returns a + b without modifying either.
func (a Amounts) Add(b Amounts) Amounts {
	out := a.Clone()
	for m, n := range b {
		out[m] += n
	}
	out.prune()
	return out
}

// Sub returns a - b without modifying either.
func (a Amounts) Sub(b Amounts) Amounts {
	out := a.Clone()
	for m, n := range b {
		out[m] -= n
	}
	out.prune()
	return out
}

// Scale returns a with every count multiplied by k.
func (a Amounts) Scale(k int64) Amounts {
	out := make(Amounts, len(a))
	for m, n := range a {
		out[m] = n * k
	}
	out.prune()
	return out
}

// Covers reports whether a holds at least b of every material.
func (a Amounts) Covers(b Amounts) bool {
	for m, n := range b {
		if a[m] < n {
			return false
		}
	}
	return true
}

// Shortfall returns what a lacks to cover b.
func (a Amounts) Shortfall(b Amounts) Amounts {
	out := Amounts{}
	for m, n := range b {
		if a[m] < n {
			out[m] = n - a[m]
		}
	}
	return out
}

// Equal reports whether a and b hold the same counts, treating absent keys
// as zero.
func (a Amounts) Equal(b Amounts) bool {
	for m, n := range a {
		if b[m] != n {
			return false
		}
	}
	for m, n := range b {
		if a[m] != n {
			return false
		}
	}
	return true
}

func (a Amounts) prune() {
	for m, n := range a {
		if n == 0 {
			delete(a, m)
		}
	}
}
