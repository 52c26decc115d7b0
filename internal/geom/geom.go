// Package geom provides the integer lattice used by every region: vectors,
// facings, grid isomorphisms and fixed-point visual positions.
//
// The lattice unit is half a tile. A machine of radius r centered at c covers
// the square [c-r, c+r] on both axes; its input and output locations sit on
// the boundary of that square.
package geom

import "fmt"

// Vec2 is a point or displacement on the lattice.
type Vec2 struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y int64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Neg returns -v.
func (v Vec2) Neg() Vec2 {
	return Vec2{X: -v.X, Y: -v.Y}
}

// Scale returns v multiplied by k.
func (v Vec2) Scale(k int64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) int64 {
	return v.X*o.X + v.Y*o.Y
}

// Less orders vectors by X, then Y. This is the spatial id order used to
// sort machines within a region.
func (v Vec2) Less(o Vec2) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	return v.Y < o.Y
}

// Compare returns -1, 0 or +1 following Less.
func (v Vec2) Compare(o Vec2) int {
	switch {
	case v.Less(o):
		return -1
	case o.Less(v):
		return 1
	default:
		return 0
	}
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Y)
}

// Facing is one of the four axis directions. Facing values increase
// counterclockwise.
type Facing uint8

const (
	FacingPosX Facing = iota
	FacingPosY
	FacingNegX
	FacingNegY
)

// Vec returns the unit vector pointing in direction f.
func (f Facing) Vec() Vec2 {
	switch f % 4 {
	case FacingPosX:
		return Vec2{X: 1}
	case FacingPosY:
		return Vec2{Y: 1}
	case FacingNegX:
		return Vec2{X: -1}
	default:
		return Vec2{Y: -1}
	}
}

// Reverse returns the opposite facing.
func (f Facing) Reverse() Facing {
	return (f + 2) % 4
}

// Rotate turns f counterclockwise by k quarter turns.
func (f Facing) Rotate(k uint8) Facing {
	return (f + Facing(k%4)) % 4
}

// Valid reports whether f is one of the four facings.
func (f Facing) Valid() bool {
	return f < 4
}

func (f Facing) String() string {
	switch f {
	case FacingPosX:
		return "+x"
	case FacingPosY:
		return "+y"
	case FacingNegX:
		return "-x"
	case FacingNegY:
		return "-y"
	default:
		return fmt.Sprintf("facing(%d)", uint8(f))
	}
}

// ParseFacing parses the form produced by Facing.String.
func ParseFacing(s string) (Facing, error) {
	for f := FacingPosX; f <= FacingNegY; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown facing %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Facing) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", f)
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Facing) UnmarshalText(b []byte) error {
	parsed, err := ParseFacing(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Location is a point on a machine perimeter together with the direction
// material travels through it. An output location of one machine connects to
// an input location of another exactly when the two are equal.
type Location struct {
	Position Vec2   `json:"position"`
	Facing   Facing `json:"facing"`
}

// Loc is shorthand for a Location at (x, y) travelling in direction f.
func Loc(x, y int64, f Facing) Location {
	return Location{Position: Vec2{X: x, Y: y}, Facing: f}
}

// Square is the axis-aligned footprint of a machine.
type Square struct {
	Center Vec2
	Radius int64
}

// Overlaps reports whether the interiors of s and o intersect. Touching
// edges do not overlap.
func (s Square) Overlaps(o Square) bool {
	reach := s.Radius + o.Radius
	return abs(s.Center.X-o.Center.X) < reach && abs(s.Center.Y-o.Center.Y) < reach
}

// Within reports whether s lies inside the square [-bound, bound]².
func (s Square) Within(bound int64) bool {
	return abs(s.Center.X)+s.Radius <= bound && abs(s.Center.Y)+s.Radius <= bound
}

// Contains reports whether p lies in the closed square.
func (s Square) Contains(p Vec2) bool {
	return abs(p.X-s.Center.X) <= s.Radius && abs(p.Y-s.Center.Y) <= s.Radius
}

// IsPerimeterSlot reports whether p is a valid location slot on the
// perimeter of a radius-r square centered at the origin. Slots sit at
// offsets k along a side with |k| < r and k ≡ r (mod 2); corners are
// excluded.
func IsPerimeterSlot(p Vec2, r int64) bool {
	switch {
	case abs(p.X) == r:
		return abs(p.Y) < r && parity(p.Y) == parity(r)
	case abs(p.Y) == r:
		return abs(p.X) < r && parity(p.X) == parity(r)
	default:
		return false
	}
}

// PerimeterSlots lists every slot of a radius-r square centered at the
// origin, side by side in facing order (+x, +y, -x, -y). The facing of each
// returned location points outward.
func PerimeterSlots(r int64) []Location {
	var out []Location
	for f := FacingPosX; f <= FacingNegY; f++ {
		normal := f.Vec()
		along := f.Rotate(1).Vec()
		for k := -r + 1; k < r; k++ {
			if parity(k) != parity(r) {
				continue
			}
			out = append(out, Location{Position: normal.Scale(r).Add(along.Scale(k)), Facing: f})
		}
	}
	return out
}

// OutwardFacing returns the facing that leaves a radius-r square at
// perimeter point p. It reports false for points off the perimeter and for
// corners.
func OutwardFacing(p Vec2, r int64) (Facing, bool) {
	switch {
	case p.X == r && abs(p.Y) < r:
		return FacingPosX, true
	case p.Y == r && abs(p.X) < r:
		return FacingPosY, true
	case p.X == -r && abs(p.Y) < r:
		return FacingNegX, true
	case p.Y == -r && abs(p.X) < r:
		return FacingNegY, true
	default:
		return 0, false
	}
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func parity(x int64) int64 {
	return x & 1
}
