package game

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/machine"
	"github.com/roach88/flowgrid/internal/world"
)

func newGame(t *testing.T, inv flow.Amounts, opts ...Option) *Game {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInventory(inv),
	}, opts...)
	return New(catalog.MustDefault(), opts...)
}

func preset(name string) world.TypeID {
	return world.Preset(catalog.MustDefault().MustLookup(name))
}

func rich() flow.Amounts {
	return flow.Amounts{flow.Iron: 1000, flow.Copper: 100, flow.Gear: 100, flow.Wire: 100}
}

// requireUnchanged runs edit and checks it fails without touching the game.
func requireUnchanged(t *testing.T, g *Game, edit func() error) error {
	t.Helper()
	before := g.State()
	err := edit()
	require.Error(t, err)
	assert.Equal(t, before, g.State())
	return err
}

// TestBuildMachine_PaysAndProduces checks a mine costs iron and fills the
// inventory afterwards.
func TestBuildMachine_PaysAndProduces(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 100})
	require.NoError(t, g.BuildMachine(nil, preset("iron_mine"), geom.Identity, 0))

	assert.Equal(t, flow.Amounts{flow.Iron: 90}, g.InventoryBeforeLastChange)
	assert.Equal(t, flow.Amounts{flow.Iron: 90, flow.IronOre: 58}, g.InventoryAt(3600))
	assert.Len(t, g.UndoStack, 1)
	assert.Equal(t, int64(0), g.Map.Global.Machines[0].State.LastDisturbedTime)
}

// TestBuildMachine_InventoryCarriesOver checks the inventory at the edit time
// is kept across the next edit.
func TestBuildMachine_InventoryCarriesOver(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 100})
	require.NoError(t, g.BuildMachine(nil, preset("iron_mine"), geom.Identity, 0))
	require.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.At(4, 0), 3600))

	assert.Equal(t, int64(3600), g.LastChangeTime)
	assert.Equal(t, flow.Amounts{flow.Iron: 89, flow.IronOre: 58}, g.InventoryBeforeLastChange)
	// the conveyor starts at 3600 and passes the first ore on at 3660
	assert.Equal(t, flow.Amounts{flow.Iron: 89, flow.IronOre: 59}, g.InventoryAt(3720))
}

// TestBuildMachine_Insufficient checks an unaffordable build is rejected.
func TestBuildMachine_Insufficient(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 3})
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, preset("iron_mine"), geom.Identity, 0)
	})
	assert.True(t, IsInsufficientInventory(err))
	var ee *EditError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, flow.Amounts{flow.Iron: 7}, ee.Missing)
}

// TestBuildMachine_Overlap checks squares may touch but not overlap.
func TestBuildMachine_Overlap(t *testing.T) {
	g := newGame(t, rich())
	require.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.Identity, 0))
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, preset("conveyor"), geom.At(2, 1), 0)
	})
	assert.True(t, IsOverlap(err))
	assert.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.At(4, 0), 0))
}

// TestBuildMachine_OutOfBounds checks the map edge.
func TestBuildMachine_OutOfBounds(t *testing.T) {
	g := newGame(t, rich(), WithMapRadius(10))
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, preset("conveyor"), geom.At(9, 0), 0)
	})
	assert.True(t, IsOutOfBounds(err))
	assert.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.At(8, 0), 0))
}

// TestBuildMachine_InvalidPath checks a path through nothing.
func TestBuildMachine_InvalidPath(t *testing.T) {
	g := newGame(t, rich())
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(world.Path{geom.V(5, 5)}, preset("conveyor"), geom.Identity, 0)
	})
	assert.True(t, IsInvalidPath(err))
	assert.ErrorIs(t, err, world.ErrInvalidPath)
}

// TestBuildMachine_UnknownType checks dangling type ids.
func TestBuildMachine_UnknownType(t *testing.T) {
	g := newGame(t, rich())
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, world.Preset(500), geom.Identity, 0)
	})
	assert.Equal(t, ErrCodeUnknownType, CodeOf(err))
	err = requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, world.Module(0), geom.Identity, 0)
	})
	assert.Equal(t, ErrCodeUnknownType, CodeOf(err))
}

// TestEdit_TimeReversed checks edits must not go back in time.
func TestEdit_TimeReversed(t *testing.T) {
	g := newGame(t, rich())
	require.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.Identity, 100))
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, preset("conveyor"), geom.At(10, 0), 50)
	})
	assert.Equal(t, ErrCodeTimeReversed, CodeOf(err))
}

// TestEdit_RegionFull checks the machine limit per region.
func TestEdit_RegionFull(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 1000})
	for i := int64(0); i < world.MaxComponentsPerRegion; i++ {
		x, y := -120+(i%32)*6, -120+(i/32)*6
		require.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.At(x, y), 0))
	}
	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(nil, preset("conveyor"), geom.At(100, 100), 0)
	})
	assert.Equal(t, ErrCodeRegionFull, CodeOf(err))
}

// TestRemoveMachine_Refunds checks removal gives the cost back.
func TestRemoveMachine_Refunds(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 5})
	require.NoError(t, g.BuildMachine(nil, preset("splitter"), geom.At(4, 0), 0))
	assert.Equal(t, flow.Amounts{flow.Iron: 3}, g.InventoryAt(10))
	require.NoError(t, g.RemoveMachine(world.Path{geom.V(4, 0)}, 10))
	assert.Equal(t, flow.Amounts{flow.Iron: 5}, g.InventoryAt(10))
	assert.Empty(t, g.Map.Global.Machines)

	err := requireUnchanged(t, g, func() error { return g.RemoveMachine(world.Path{geom.V(4, 0)}, 20) })
	assert.True(t, IsInvalidPath(err))
}

// TestRotateMachine checks rotation replaces the orientation and disturbs
// the machine.
func TestRotateMachine(t *testing.T) {
	g := newGame(t, rich())
	require.NoError(t, g.BuildMachine(nil, preset("splitter"), geom.At(4, 0), 0))
	require.NoError(t, g.RotateMachine(world.Path{geom.V(4, 0)}, geom.FacingPosY, 1000))
	st := g.Map.Global.Machines[0].State
	assert.Equal(t, geom.At(4, 0).Rotated(1), st.Position)
	assert.Equal(t, int64(1000), st.LastDisturbedTime)
	assert.Equal(t, int64(998), g.InventoryAt(1000)[flow.Iron])
}

// mineAndSplitter builds a mine feeding a splitter at time 0.
func mineAndSplitter(t *testing.T) *Game {
	g := newGame(t, rich())
	require.NoError(t, g.BuildMachine(nil, preset("iron_mine"), geom.Identity, 0))
	require.NoError(t, g.BuildMachine(nil, preset("splitter"), geom.At(4, 0), 0))
	return g
}

// TestUndo_AfterRotation checks undo restores the map and the inventory
// timeline as if the rotation never happened.
func TestUndo_AfterRotation(t *testing.T) {
	g := mineAndSplitter(t)
	before := g.State()
	want := mineAndSplitter(t).InventoryAt(10000)

	require.NoError(t, g.RotateMachine(world.Path{geom.V(4, 0)}, geom.FacingPosY, 1000))
	rotated := g.Future().Root
	assert.Len(t, rotated.Dumped, 1, "the turned splitter no longer takes the mine's output")

	require.NoError(t, g.Undo())
	assert.True(t, world.Canonicalize(g.Map).Equal(world.Canonicalize(before.Map)))
	assert.Equal(t, want, g.InventoryAt(10000))
	assert.Len(t, g.RedoStack, 1)
	assert.Len(t, g.UndoStack, 2)
}

// TestUndoRedo checks the two stacks mirror each other.
func TestUndoRedo(t *testing.T) {
	g := newGame(t, rich())
	empty := g.State()
	require.NoError(t, g.BuildMachine(nil, preset("conveyor"), geom.Identity, 10))
	built := g.State()

	require.NoError(t, g.Undo())
	assert.Equal(t, empty.Map, g.Map)
	assert.Equal(t, empty.InventoryBeforeLastChange, g.InventoryBeforeLastChange)
	assert.Equal(t, empty.LastChangeTime, g.LastChangeTime)

	require.NoError(t, g.Redo())
	assert.Equal(t, built.Map, g.Map)
	assert.Equal(t, built.InventoryBeforeLastChange, g.InventoryBeforeLastChange)
	assert.Empty(t, g.RedoStack)

	require.NoError(t, g.Undo())
	require.NoError(t, g.BuildMachine(nil, preset("splitter"), geom.Identity, 20))
	assert.Empty(t, g.RedoStack, "a new edit clears redo")
}

// TestUndoRedo_Empty checks empty stacks.
func TestUndoRedo_Empty(t *testing.T) {
	g := newGame(t, rich())
	assert.Equal(t, ErrCodeNothingToUndo, CodeOf(g.Undo()))
	assert.Equal(t, ErrCodeNothingToRedo, CodeOf(g.Redo()))
}

// TestBuildNewModule_Nested checks editing a module definition charges and
// disturbs every instance.
func TestBuildNewModule_Nested(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 100})
	require.NoError(t, g.BuildNewModule(nil, "box", 4, geom.Identity, 0))
	require.Len(t, g.Map.Modules, 1)
	assert.Equal(t, world.Module(0), g.Map.Global.Machines[0].Type)

	inside := world.Path{geom.V(0, 0)}
	require.NoError(t, g.BuildMachine(inside, preset("conveyor"), geom.Identity, 100))
	assert.Equal(t, flow.Amounts{flow.Iron: 99}, g.InventoryAt(100))
	assert.Len(t, g.Map.Modules[0].Region.Machines, 1)
	assert.Equal(t, int64(100), g.Map.Global.Machines[0].State.LastDisturbedTime)
	assert.Zero(t, g.Map.Modules[0].Region.Machines[0].State.LastDisturbedTime)

	// a second copy costs what the first one holds
	require.NoError(t, g.BuildMachine(nil, world.Module(0), geom.At(20, 0), 200))
	assert.Equal(t, flow.Amounts{flow.Iron: 98}, g.InventoryAt(200))

	err := requireUnchanged(t, g, func() error {
		return g.BuildMachine(inside, preset("conveyor"), geom.Identity.Rotated(1), 300)
	})
	assert.True(t, IsOverlap(err))
}

// TestBuildNewModule_Costs checks per-instance pricing of inner edits.
func TestBuildNewModule_Costs(t *testing.T) {
	g := newGame(t, flow.Amounts{flow.Iron: 100})
	require.NoError(t, g.BuildNewModule(nil, "box", 8, geom.Identity, 0))
	require.NoError(t, g.BuildMachine(nil, world.Module(0), geom.At(20, 0), 0))
	assert.Equal(t, int64(2), g.Map.Instances(0))

	require.NoError(t, g.BuildMachine(world.Path{geom.V(20, 0)}, preset("splitter"), geom.At(-4, 0), 10))
	assert.Equal(t, flow.Amounts{flow.Iron: 96}, g.InventoryAt(10))
	for _, mc := range g.Map.Global.Machines {
		assert.Equal(t, int64(10), mc.State.LastDisturbedTime)
	}

	require.NoError(t, g.RemoveMachine(world.Path{geom.V(0, 0)}, 20))
	assert.Equal(t, flow.Amounts{flow.Iron: 98}, g.InventoryAt(20))
}

// TestBuildNewModule_Invalid checks bad definitions and recursion.
func TestBuildNewModule_Invalid(t *testing.T) {
	g := newGame(t, rich())
	err := requireUnchanged(t, g, func() error { return g.BuildNewModule(nil, "  ", 4, geom.Identity, 0) })
	assert.Equal(t, ErrCodeInvalidModule, CodeOf(err))
	err = requireUnchanged(t, g, func() error { return g.BuildNewModule(nil, "tiny", 1, geom.Identity, 0) })
	assert.Equal(t, ErrCodeInvalidModule, CodeOf(err))

	require.NoError(t, g.BuildNewModule(nil, "outer", 16, geom.Identity, 0))
	require.NoError(t, g.BuildNewModule(world.Path{geom.V(0, 0)}, "inner", 4, geom.Identity, 0))
	require.Len(t, g.Map.Modules, 2)
	// inner has the lower index in canonical form
	assert.Equal(t, "inner", g.Map.Modules[0].Name)

	err = requireUnchanged(t, g, func() error {
		return g.BuildMachine(world.Path{geom.V(0, 0), geom.V(0, 0)}, world.Module(1), geom.Identity, 0)
	})
	assert.Equal(t, ErrCodeRecursiveModule, CodeOf(err))
	err = requireUnchanged(t, g, func() error {
		return g.BuildMachine(world.Path{geom.V(0, 0)}, world.Module(1), geom.At(8, 8), 0)
	})
	assert.Equal(t, ErrCodeRecursiveModule, CodeOf(err))
}

// TestModule_LatencyInSeries checks two wrapped conveyors in a row.
func TestModule_LatencyInSeries(t *testing.T) {
	g := newGame(t, rich())
	require.NoError(t, g.BuildMachine(nil, preset("iron_mine"), geom.At(-6, 0), 0))
	require.NoError(t, g.BuildNewModule(nil, "wrapped", 4, geom.Identity, 0))
	require.NoError(t, g.BuildMachine(world.Path{geom.V(0, 0)}, preset("conveyor"), geom.Identity, 0))
	require.NoError(t, g.BuildMachine(nil, world.Module(0), geom.At(8, 0), 0))

	root := g.Future().Root
	require.Len(t, root.Dumped, 1)
	assert.Equal(t, flow.NewPattern(480, flow.StandardRate), root.Dumped[0].Flow.Pattern)
	assert.Equal(t, 1, g.Future().NumVariations())
}

// TestCanonicalize_NoOpOnCanonicalMap checks the explicit call.
func TestCanonicalize_NoOpOnCanonicalMap(t *testing.T) {
	g := mineAndSplitter(t)
	before := g.State()
	require.NoError(t, g.Canonicalize())
	assert.Equal(t, before, g.State())

	g.Map.Global.Machines[0], g.Map.Global.Machines[1] = g.Map.Global.Machines[1], g.Map.Global.Machines[0]
	require.NoError(t, g.Canonicalize())
	assert.True(t, world.IsCanonical(g.Map))
	assert.NotPanics(t, g.Future().Check)
}

// TestRestore checks a state round trip recomputes the same future.
func TestRestore(t *testing.T) {
	g := mineAndSplitter(t)
	require.NoError(t, g.RotateMachine(world.Path{geom.V(4, 0)}, geom.FacingNegY, 500))

	h, err := Restore(catalog.MustDefault(), g.State(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	assert.Equal(t, g.State(), h.State())
	assert.Equal(t, g.InventoryAt(9000), h.InventoryAt(9000))
	require.NoError(t, h.Undo())
	assert.Equal(t, machine.Operating, h.Future().Root.Machines[1].State)

	bad := g.State()
	bad.Map.Global.Machines[0], bad.Map.Global.Machines[1] = bad.Map.Global.Machines[1], bad.Map.Global.Machines[0]
	_, err = Restore(catalog.MustDefault(), bad)
	assert.Error(t, err)
}

// TestApply dispatches serialized edits.
func TestApply(t *testing.T) {
	g := newGame(t, rich())
	edits := []Edit{
		{Kind: EditBuild, Time: 0, Type: preset("iron_mine"), Position: geom.Identity},
		{Kind: EditBuild, Time: 0, Type: preset("splitter"), Position: geom.At(4, 0)},
		{Kind: EditRotate, Time: 100, Path: world.Path{geom.V(4, 0)}, Facing: geom.FacingNegY},
		{Kind: EditUndo},
		{Kind: EditRedo},
		{Kind: EditRemove, Time: 200, Path: world.Path{geom.V(4, 0)}},
		{Kind: EditModule, Time: 300, Name: "box", Radius: 4, Position: geom.At(20, 20)},
	}
	for _, e := range edits {
		require.NoError(t, g.Apply(e), e.String())
	}
	assert.Len(t, g.Map.Global.Machines, 2)
	assert.Len(t, g.Map.Modules, 1)
	assert.Error(t, g.Apply(Edit{Kind: "teleport"}))
}
