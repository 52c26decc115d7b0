package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/geom"
)

// straight returns a radius-2 conveyor node centered at (x, y) moving +x.
func straight(x, y int64) Node {
	return Node{
		Inputs:  []geom.Location{geom.Loc(x-2, y, geom.FacingPosX)},
		Outputs: []geom.Location{geom.Loc(x+2, y, geom.FacingPosX)},
	}
}

func source(x, y int64) Node {
	return Node{Outputs: []geom.Location{geom.Loc(x+2, y, geom.FacingPosX)}}
}

// turn returns a conveyor node rotated by rot quarter turns that enters on
// its local -x side and leaves on its local +y side.
func turn(x, y int64, rot uint8) Node {
	g := geom.At(x, y).Rotated(rot)
	return Node{
		Inputs:  []geom.Location{g.ApplyLocation(geom.Loc(-2, 0, geom.FacingPosX))},
		Outputs: []geom.Location{g.ApplyLocation(geom.Loc(0, 2, geom.FacingPosY))},
	}
}

// TestConnect_Chain checks coincident locations become edges.
func TestConnect_Chain(t *testing.T) {
	e := Connect([]Node{source(0, 0), straight(4, 0), straight(8, 0)})
	require.Len(t, e, 3)
	assert.Equal(t, &Target{Machine: 1, Slot: 0}, e[0][0])
	assert.Equal(t, &Target{Machine: 2, Slot: 0}, e[1][0])
	assert.Nil(t, e[2][0])
}

// TestConnect_FacingMustMatch checks opposite travel directions do not connect.
func TestConnect_FacingMustMatch(t *testing.T) {
	backwards := Node{Inputs: []geom.Location{geom.Loc(2, 0, geom.FacingNegX)}}
	e := Connect([]Node{source(0, 0), backwards})
	assert.Nil(t, e[0][0])
}

// TestConnect_InputClaimedOnce checks an input is fed by at most one output.
func TestConnect_InputClaimedOnce(t *testing.T) {
	a := Node{Outputs: []geom.Location{geom.Loc(2, 0, geom.FacingPosX)}}
	b := Node{Outputs: []geom.Location{geom.Loc(2, 0, geom.FacingPosX)}}
	e := Connect([]Node{a, b, straight(4, 0)})
	assert.NotNil(t, e[0][0])
	assert.Nil(t, e[1][0])
}

// TestSort_DAG checks upstream machines come first with index tie-breaks.
func TestSort_DAG(t *testing.T) {
	// machine 2 feeds 0, machine 1 is isolated
	nodes := []Node{straight(8, 0), straight(40, 40), source(4, 0)}
	ord := Sort(Connect(nodes))
	assert.Equal(t, []int{1, 2, 0}, ord.Order)
	assert.Empty(t, ord.Cycles)
	assert.Equal(t, []bool{false, false, false}, ord.InCycle)
}

// TestSort_LoopQuarantined checks a loop of four turns is marked in cycle
// while the machine downstream of it is still ordered.
func TestSort_LoopQuarantined(t *testing.T) {
	nodes := []Node{
		turn(0, 0, 0), // exits up into (0,4)
		turn(0, 4, 1), // exits left into (-4,4)
		turn(-4, 4, 2),
		turn(-4, 0, 3),
		source(-20, 0),
	}
	e := Connect(nodes)
	require.NotNil(t, e[0][0])
	assert.Equal(t, 1, e[0][0].Machine)
	assert.Equal(t, 2, e[1][0].Machine)
	assert.Equal(t, 3, e[2][0].Machine)
	assert.Equal(t, 0, e[3][0].Machine)

	ord := Sort(e)
	assert.Equal(t, []int{4}, ord.Order)
	assert.Equal(t, []bool{true, true, true, true, false}, ord.InCycle)
	require.Len(t, ord.Cycles, 1)
	assert.Equal(t, []int{0, 1, 2, 3}, ord.Cycles[0].Machines)
	assert.Equal(t, []int{0, 1, 2, 3, 0}, ord.Cycles[0].Path)
	assert.Contains(t, ord.Cycles[0].Message, "#0 → #1")
}

// TestSort_DownstreamOfCycle checks a machine fed only by a loop is ordered
// and not itself in the cycle.
func TestSort_DownstreamOfCycle(t *testing.T) {
	// a splitter-like node in the loop with a second output leaving it
	splitter := Node{
		Inputs: []geom.Location{geom.Loc(-2, 0, geom.FacingPosX)},
		Outputs: []geom.Location{
			geom.Loc(0, 2, geom.FacingPosY),
			geom.Loc(2, 0, geom.FacingPosX),
		},
	}
	nodes := []Node{
		splitter,
		turn(0, 4, 1),
		turn(-4, 4, 2),
		turn(-4, 0, 3),
		straight(4, 0),
	}
	ord := Sort(Connect(nodes))
	assert.Equal(t, []int{4}, ord.Order)
	assert.False(t, ord.InCycle[4])
	assert.True(t, ord.InCycle[0])
}

// TestSort_Empty checks an empty region.
func TestSort_Empty(t *testing.T) {
	ord := Sort(Connect(nil))
	assert.Empty(t, ord.Order)
	assert.Empty(t, ord.Cycles)
}
