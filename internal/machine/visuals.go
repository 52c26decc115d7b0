package machine

import (
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

// maxDrawnPerSlot caps how many units one slot contributes to a frame.
const maxDrawnPerSlot = 256

// legTime is the longest a unit spends moving between a perimeter location
// and the machine center.
const legTime = flow.TimeToMoveMaterial / 2

// VisualMaterial is one unit drawn at a position relative to the machine
// center.
type VisualMaterial struct {
	Position geom.FracVec  `json:"position"`
	Material flow.Material `json:"material"`
}

// AssemblyProgress is the assembly glyph of a running cycle.
type AssemblyProgress struct {
	Elapsed  int64 `json:"elapsed"`
	Duration int64 `json:"duration"`
}

// Visuals is everything a machine shows at one instant.
type Visuals struct {
	State     OperatingState    `json:"state"`
	Materials []VisualMaterial  `json:"materials"`
	Progress  *AssemblyProgress `json:"progress,omitempty"`
}

func (v *Visuals) draw(p geom.FracVec, m flow.Material) {
	v.Materials = append(v.Materials, VisualMaterial{Position: p, Material: m})
}

// through places a unit that arrived at src at time from and leaves at dst
// at time to, passing through center. The unit moves for at most legTime
// after arriving, rests at center, and moves again for at most legTime
// before leaving. It is drawn on (from, to].
func through(src, center, dst geom.FracVec, from, to, at int64) (geom.FracVec, bool) {
	if at <= from || at > to {
		return geom.FracVec{}, false
	}
	span := to - from
	if span < 2 {
		return dst, at == to
	}
	h := min(legTime, span/2)
	switch {
	case at <= from+h:
		return geom.Lerp(src, center, at-from, h), true
	case at >= to-h:
		return geom.Lerp(center, dst, at-(to-h), h), true
	default:
		return center, true
	}
}

// arriveThenHold moves a unit from src to dst right after from and keeps it
// at dst until to. It is drawn on (from, to].
func arriveThenHold(src, dst geom.FracVec, from, to, at int64) (geom.FracVec, bool) {
	if at <= from || at > to {
		return geom.FracVec{}, false
	}
	h := min(legTime, to-from)
	if at <= from+h {
		return geom.Lerp(src, dst, at-from, h), true
	}
	return dst, true
}

// holdThenLeave keeps a unit at src and moves it to dst so that it arrives
// exactly at to. It is drawn on (from, to].
func holdThenLeave(src, dst geom.FracVec, from, to, at int64) (geom.FracVec, bool) {
	if at <= from || at > to {
		return geom.FracVec{}, false
	}
	h := min(legTime, to-from)
	if at >= to-h {
		return geom.Lerp(src, dst, at-(to-h), h), true
	}
	return src, true
}
