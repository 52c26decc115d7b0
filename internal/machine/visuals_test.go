package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

type lawCase struct {
	name  string
	typ   *Type
	in    Inputs
	start int64
}

func lawCases(t *testing.T) []lawCase {
	return []lawCase{
		{"mine", mine(), Inputs{}, 0},
		{"mine_late", mine(), Inputs{}, 777},
		{"conveyor", conveyor(), Inputs{mf(120, flow.StandardRate, flow.IronOre)}, 0},
		{"conveyor_slow", conveyor(), Inputs{mf(5, flow.StandardRate/7, flow.IronOre)}, 300},
		{"splitter", splitter(), Inputs{mf(0, flow.StandardRate, flow.Iron)}, 0},
		{"splitter_odd", splitter(), Inputs{mf(13, flow.StandardRate*2/3, flow.Iron)}, 100},
		{"merger", merger(), Inputs{mf(0, flow.StandardRate/2, flow.Iron), mf(30, flow.StandardRate/2, flow.Iron)}, 0},
		{"merger_saturated", merger(), Inputs{mf(0, flow.StandardRate, flow.Iron), mf(30, flow.StandardRate, flow.Iron)}, 0},
		{"merger_one_side", merger(), Inputs{nil, mf(40, flow.StandardRate/3, flow.Iron)}, 0},
		{"smelter", smelter(), Inputs{mf(120, flow.StandardRate, flow.IronOre)}, 0},
		{"smelter_starved", smelter(), Inputs{mf(7, flow.StandardRate/5, flow.IronOre)}, 50},
		{"module", wrappedConveyor(), Inputs{mf(180, flow.StandardRate, flow.IronOre)}, 0},
		{"module_rounded", wrappedConveyor(), Inputs{mf(33, 8000, flow.IronOre)}, 20},
	}
}

func futureFor(t *testing.T, c lawCase) *Future {
	if c.typ.Kind == KindModule {
		return moduleFuture(t, c.typ, c.in, c.start)
	}
	return mustFuture(t, c.typ, c.in, c.start)
}

func eventsIn(p flow.Pattern, from, to int64) []int64 {
	var out []int64
	for n := p.NumDisbursedBefore(from); ; n++ {
		at, ok := p.NthDisbursementTime(n)
		if !ok || at >= to {
			return out
		}
		out = append(out, at)
	}
}

// TestVisuals_OutputLaw checks that at every output disbursement exactly
// one unit sits on the output location, and one tick later none is near it.
func TestVisuals_OutputLaw(t *testing.T) {
	for _, c := range lawCases(t) {
		t.Run(c.name, func(t *testing.T) {
			f := futureFor(t, c)
			leeway := geom.Leeway(c.typ.Radius)
			outs := c.typ.OutputFlows(c.in, f)
			checked := 0
			for k, loc := range c.typ.OutputLocations() {
				require.NotNil(t, outs[k])
				at := geom.Frac(loc.Position)
				for _, tt := range eventsIn(outs[k].Pattern, 0, 6000) {
					v := c.typ.MomentaryVisuals(c.in, f, Operating, tt)
					exact := 0
					for _, m := range v.Materials {
						if m.Position == at {
							exact++
							assert.Equal(t, outs[k].Material, m.Material)
						}
					}
					require.Equal(t, 1, exact, "output %d at t=%d: %v", k, tt, v.Materials)

					after := c.typ.MomentaryVisuals(c.in, f, Operating, tt+1)
					for _, m := range after.Materials {
						require.False(t, m.Position.Near(at, leeway), "output %d at t=%d+1: %v", k, tt, m)
					}
					checked++
				}
			}
			assert.Positive(t, checked)
		})
	}
}

// TestVisuals_InputLaw checks no unit is drawn near an input location at
// the moment the upstream machine delivers to it.
func TestVisuals_InputLaw(t *testing.T) {
	for _, c := range lawCases(t) {
		t.Run(c.name, func(t *testing.T) {
			f := futureFor(t, c)
			leeway := geom.Leeway(c.typ.Radius)
			for i, loc := range c.typ.InputLocations() {
				if c.in[i] == nil {
					continue
				}
				at := geom.Frac(loc.Position)
				for _, tt := range eventsIn(c.in[i].Pattern, 0, 6000) {
					v := c.typ.MomentaryVisuals(c.in, f, Operating, tt)
					for _, m := range v.Materials {
						require.False(t, m.Position.Near(at, leeway), "input %d at t=%d: %v", i, tt, m)
					}
				}
			}
		})
	}
}

// TestVisuals_Bounded checks a frame stays inside the machine footprint and
// has a bounded number of units.
func TestVisuals_Bounded(t *testing.T) {
	for _, c := range lawCases(t) {
		t.Run(c.name, func(t *testing.T) {
			f := futureFor(t, c)
			r := c.typ.Radius * geom.SubUnit
			for tt := int64(0); tt < 4000; tt += 37 {
				v := c.typ.MomentaryVisuals(c.in, f, Operating, tt)
				assert.LessOrEqual(t, len(v.Materials), 32, "t=%d", tt)
				for _, m := range v.Materials {
					assert.LessOrEqual(t, abs64(m.Position.X), r)
					assert.LessOrEqual(t, abs64(m.Position.Y), r)
				}
			}
		})
	}
}

// TestVisuals_Continuous checks units never jump more than one leg step
// between consecutive ticks of the same frame sequence.
func TestVisuals_Continuous(t *testing.T) {
	typ := conveyor()
	in := Inputs{mf(120, flow.StandardRate, flow.IronOre)}
	f := mustFuture(t, typ, in, 0)
	// a single unit is in flight between 181 and 240
	var prev *geom.FracVec
	for tt := int64(181); tt <= 240; tt++ {
		v := typ.MomentaryVisuals(in, f, Operating, tt)
		require.Len(t, v.Materials, 1, "t=%d", tt)
		p := v.Materials[0].Position
		if prev != nil {
			assert.LessOrEqual(t, p.DistanceSquared(*prev), (2*geom.SubUnit/legTime+1)*(2*geom.SubUnit/legTime+1))
		}
		prev = &p
	}
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
