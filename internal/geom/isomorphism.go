package geom

import "fmt"

// Isomorphism is a rigid motion of the lattice: an optional mirror across
// the x axis, then Rotation counterclockwise quarter turns, then a
// translation. Isomorphisms form a group under Compose.
type Isomorphism struct {
	Translation Vec2  `json:"translation"`
	Rotation    uint8 `json:"rotation"`
	Flip        bool  `json:"flip"`
}

// Identity is the neutral isomorphism.
var Identity = Isomorphism{}

// Translate returns the pure translation by v.
func Translate(v Vec2) Isomorphism {
	return Isomorphism{Translation: v}
}

// At returns a translation to (x, y) followed by nothing else.
func At(x, y int64) Isomorphism {
	return Translate(Vec2{X: x, Y: y})
}

// Rotated returns g with its rotation replaced by k quarter turns.
func (g Isomorphism) Rotated(k uint8) Isomorphism {
	g.Rotation = k % 4
	return g
}

// Flipped returns g with its flip replaced by flip.
func (g Isomorphism) Flipped(flip bool) Isomorphism {
	g.Flip = flip
	return g
}

// ApplyLinear applies only the flip and rotation of g to v.
func (g Isomorphism) ApplyLinear(v Vec2) Vec2 {
	if g.Flip {
		v.Y = -v.Y
	}
	for i := uint8(0); i < g.Rotation%4; i++ {
		v = Vec2{X: -v.Y, Y: v.X}
	}
	return v
}

// Apply maps the point v.
func (g Isomorphism) Apply(v Vec2) Vec2 {
	return g.ApplyLinear(v).Add(g.Translation)
}

// ApplyFacing maps a direction.
func (g Isomorphism) ApplyFacing(f Facing) Facing {
	if g.Flip {
		f = (4 - f%4) % 4
	}
	return f.Rotate(g.Rotation)
}

// ApplyLocation maps a location, position and facing together.
func (g Isomorphism) ApplyLocation(l Location) Location {
	return Location{Position: g.Apply(l.Position), Facing: g.ApplyFacing(l.Facing)}
}

// Compose returns g∘b, the motion that applies b first and then g.
func (g Isomorphism) Compose(b Isomorphism) Isomorphism {
	rot := int(g.Rotation)
	if g.Flip {
		rot -= int(b.Rotation)
	} else {
		rot += int(b.Rotation)
	}
	return Isomorphism{
		Translation: g.Apply(b.Translation),
		Rotation:    uint8(((rot % 4) + 4) % 4),
		Flip:        g.Flip != b.Flip,
	}
}

// Inverse returns the isomorphism h with g.Compose(h) == Identity.
func (g Isomorphism) Inverse() Isomorphism {
	inv := Isomorphism{Flip: g.Flip}
	if g.Flip {
		inv.Rotation = g.Rotation % 4
	} else {
		inv.Rotation = (4 - g.Rotation%4) % 4
	}
	inv.Translation = inv.ApplyLinear(g.Translation).Neg()
	return inv
}

// Normalize reduces the rotation into 0..3.
func (g Isomorphism) Normalize() Isomorphism {
	g.Rotation %= 4
	return g
}

func (g Isomorphism) String() string {
	flip := ""
	if g.Flip {
		flip = " flip"
	}
	return fmt.Sprintf("%s rot%d%s", g.Translation, g.Rotation%4, flip)
}
