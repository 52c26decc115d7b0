package geom

// SubUnit is the number of fixed-point steps per lattice unit in visual
// positions.
const SubUnit int64 = 1 << 16

// FracVec is a visual position in units of 1/SubUnit lattice units.
type FracVec struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Frac converts a lattice point to a visual position.
func Frac(v Vec2) FracVec {
	return FracVec{X: v.X * SubUnit, Y: v.Y * SubUnit}
}

// Lerp returns the point num/den of the way from a to b. Division floors, so
// num == 0 yields a and num == den yields b exactly.
func Lerp(a, b FracVec, num, den int64) FracVec {
	if den <= 0 || num >= den {
		return b
	}
	if num <= 0 {
		return a
	}
	return FracVec{
		X: a.X + floorDiv((b.X-a.X)*num, den),
		Y: a.Y + floorDiv((b.Y-a.Y)*num, den),
	}
}

// DistanceSquared returns the squared euclidean distance in sub-units².
func (p FracVec) DistanceSquared(o FracVec) int64 {
	dx, dy := p.X-o.X, p.Y-o.Y
	return dx*dx + dy*dy
}

// Near reports whether p lies within dist sub-units of o.
func (p FracVec) Near(o FracVec, dist int64) bool {
	return p.DistanceSquared(o) <= dist*dist
}

// ApplyFrac maps a visual position through g.
func (g Isomorphism) ApplyFrac(p FracVec) FracVec {
	if g.Flip {
		p.Y = -p.Y
	}
	for i := uint8(0); i < g.Rotation%4; i++ {
		p = FracVec{X: -p.Y, Y: p.X}
	}
	return FracVec{X: p.X + g.Translation.X*SubUnit, Y: p.Y + g.Translation.Y*SubUnit}
}

// Leeway is the distance, in sub-units, within which a material counts as
// "at" a location of a machine with the given radius.
func Leeway(radius int64) int64 {
	return min(radius, 4) * SubUnit / 16
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
