package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/geom"
)

func conveyor() *Type {
	return &Type{Kind: KindDistributor, Name: "conveyor", Radius: 2, Distributor: &Distributor{
		Inputs:  []geom.Location{geom.Loc(-2, 0, geom.FacingPosX)},
		Outputs: []geom.Location{geom.Loc(2, 0, geom.FacingPosX)},
	}}
}

func splitter() *Type {
	return &Type{Kind: KindDistributor, Name: "splitter", Radius: 2, Distributor: &Distributor{
		Inputs:  []geom.Location{geom.Loc(-2, 0, geom.FacingPosX)},
		Outputs: []geom.Location{geom.Loc(0, 2, geom.FacingPosY), geom.Loc(0, -2, geom.FacingNegY)},
	}}
}

func merger() *Type {
	return &Type{Kind: KindDistributor, Name: "merger", Radius: 2, Distributor: &Distributor{
		Inputs:  []geom.Location{geom.Loc(0, -2, geom.FacingPosY), geom.Loc(0, 2, geom.FacingNegY)},
		Outputs: []geom.Location{geom.Loc(2, 0, geom.FacingPosX)},
	}}
}

func mine() *Type {
	return &Type{Kind: KindAssembler, Name: "iron_mine", Radius: 2, Assembler: &Assembler{
		Outputs:  []AssemblerOutput{{Location: geom.Loc(2, 0, geom.FacingPosX), Material: flow.IronOre, Amount: 1}},
		Duration: 60,
	}}
}

func smelter() *Type {
	return &Type{Kind: KindAssembler, Name: "iron_smelter", Radius: 2, Assembler: &Assembler{
		Inputs:   []AssemblerInput{{Location: geom.Loc(-2, 0, geom.FacingPosX), Material: flow.IronOre, Cost: 3}},
		Outputs:  []AssemblerOutput{{Location: geom.Loc(2, 0, geom.FacingPosX), Material: flow.Iron, Amount: 2}},
		Duration: 600,
	}}
}

// wrappedConveyor is a radius-4 module holding one conveyor at its center.
func wrappedConveyor() *Type {
	return &Type{Kind: KindModule, Name: "wrapped", Radius: 4, Module: &Module{
		Index: 0,
		Inputs: []ModulePort{{
			Location: geom.Loc(-4, 0, geom.FacingPosX),
			Inner:    geom.Loc(-2, 0, geom.FacingPosX),
		}},
		Outputs: []ModulePort{{
			Location: geom.Loc(4, 0, geom.FacingPosX),
			Inner:    geom.Loc(2, 0, geom.FacingPosX),
		}},
	}}
}

func mf(start, rate int64, m flow.Material) *flow.MaterialFlow {
	return &flow.MaterialFlow{Pattern: flow.NewPattern(start, rate), Material: m}
}

func mustFuture(t *testing.T, typ *Type, in Inputs, start int64) *Future {
	t.Helper()
	f, state := typ.Future(in, start)
	require.Equal(t, Operating, state)
	require.NotNil(t, f)
	return f
}

// moduleFuture attaches the inner conveyor's port output, as the future
// engine would.
func moduleFuture(t *testing.T, typ *Type, in Inputs, start int64) *Future {
	f := mustFuture(t, typ, in, start)
	innerIn := Inputs(f.Module.Canonical.Flows(1))
	if innerIn[0] == nil {
		return f
	}
	cf := mustFuture(t, conveyor(), innerIn, 0)
	f.Module.PortOutputs = conveyor().OutputFlows(innerIn, cf)
	return f
}

// TestValidate_Presets checks the fixtures satisfy the geometry contract.
func TestValidate_Presets(t *testing.T) {
	for _, typ := range []*Type{conveyor(), splitter(), merger(), mine(), smelter(), wrappedConveyor()} {
		assert.NoError(t, typ.Validate(), typ.Name)
	}
}

// TestValidate_RejectsBadGeometry checks off-grid, mis-facing and colliding
// locations are rejected.
func TestValidate_RejectsBadGeometry(t *testing.T) {
	bad := conveyor()
	bad.Distributor.Inputs[0] = geom.Loc(-2, 1, geom.FacingPosX)
	assert.ErrorIs(t, bad.Validate(), ErrBadGeometry)

	facing := conveyor()
	facing.Distributor.Inputs[0] = geom.Loc(-2, 0, geom.FacingNegX)
	assert.ErrorIs(t, facing.Validate(), ErrBadGeometry)

	clash := conveyor()
	clash.Distributor.Outputs = append(clash.Distributor.Outputs, geom.Loc(-2, 0, geom.FacingNegX))
	assert.ErrorIs(t, clash.Validate(), ErrCollision)

	fast := mine()
	fast.Assembler.Outputs[0].Amount = 2
	assert.ErrorIs(t, fast.Validate(), ErrBadRecipe)
}

// TestMine_Output checks a mine produces one ore per transport interval
// after one cycle and one hop.
func TestMine_Output(t *testing.T) {
	typ := mine()
	f := mustFuture(t, typ, Inputs{}, 0)
	outs := typ.OutputFlows(Inputs{}, f)
	require.Len(t, outs, 1)
	assert.Equal(t, flow.NewPattern(120, flow.StandardRate), outs[0].Pattern)
	assert.Equal(t, flow.IronOre, outs[0].Material)
}

// TestSmelter_Output checks assembly start and product rate.
func TestSmelter_Output(t *testing.T) {
	in := Inputs{mf(120, flow.StandardRate, flow.IronOre)}
	typ := smelter()
	f := mustFuture(t, typ, in, 0)
	assert.Equal(t, flow.NewPattern(300, 4320), f.Assembler.Assemblies)
	outs := typ.OutputFlows(in, f)
	assert.Equal(t, flow.NewPattern(960, 8640), outs[0].Pattern)
	assert.Equal(t, flow.Iron, outs[0].Material)
}

// TestAssembler_Failures checks the operating states of a starved smelter.
func TestAssembler_Failures(t *testing.T) {
	typ := smelter()
	_, state := typ.Future(Inputs{nil}, 0)
	assert.Equal(t, InputMissing, state)
	_, state = typ.Future(Inputs{mf(0, flow.StandardRate, flow.Copper)}, 0)
	assert.Equal(t, InputIncompatible, state)
	_, state = typ.Future(Inputs{mf(0, 2, flow.IronOre)}, 0)
	assert.Equal(t, InputTooInfrequent, state)
}

// TestDistributor_Conveyor checks a conveyor adds one hop of latency.
func TestDistributor_Conveyor(t *testing.T) {
	in := Inputs{mf(120, flow.StandardRate, flow.IronOre)}
	typ := conveyor()
	f := mustFuture(t, typ, in, 0)
	outs := typ.OutputFlows(in, f)
	assert.Equal(t, flow.NewPattern(180, flow.StandardRate), outs[0].Pattern)

	// a conveyor disturbed later waits for the next unit
	f = mustFuture(t, typ, in, 1000)
	outs = typ.OutputFlows(in, f)
	assert.Equal(t, flow.NewPattern(1080, flow.StandardRate), outs[0].Pattern)
}

// TestDistributor_Splitter checks outputs alternate at half rate.
func TestDistributor_Splitter(t *testing.T) {
	in := Inputs{mf(0, flow.StandardRate, flow.Iron)}
	typ := splitter()
	f := mustFuture(t, typ, in, 0)
	outs := typ.OutputFlows(in, f)
	require.Len(t, outs, 2)
	assert.Equal(t, flow.NewPattern(60, flow.StandardRate/2), outs[0].Pattern)
	assert.Equal(t, flow.NewPattern(120, flow.StandardRate/2), outs[1].Pattern)
}

// TestDistributor_Failures checks merger material rules.
func TestDistributor_Failures(t *testing.T) {
	typ := merger()
	_, state := typ.Future(Inputs{nil, nil}, 0)
	assert.Equal(t, InputMissing, state)
	_, state = typ.Future(Inputs{mf(0, 100, flow.Iron), mf(0, 100, flow.Copper)}, 0)
	assert.Equal(t, InputIncompatible, state)

	_, state = splitter().Future(Inputs{mf(0, 1, flow.Iron)}, 0)
	assert.Equal(t, InputTooInfrequent, state)

	f, state := typ.Future(Inputs{mf(0, 100, flow.Iron), nil}, 0)
	assert.Equal(t, Operating, state)
	assert.Equal(t, int64(100), f.Distributor.PerOutputRate)
}

// TestDistributor_MergerCapsRate checks the output never exceeds the
// standard rate.
func TestDistributor_MergerCapsRate(t *testing.T) {
	in := Inputs{mf(0, flow.StandardRate, flow.Iron), mf(30, flow.StandardRate, flow.Iron)}
	typ := merger()
	f := mustFuture(t, typ, in, 0)
	outs := typ.OutputFlows(in, f)
	assert.Equal(t, flow.NewPattern(90, flow.StandardRate), outs[0].Pattern)
}

// TestModule_Output checks a wrapped conveyor adds the boundary latency on
// both sides.
func TestModule_Output(t *testing.T) {
	in := Inputs{mf(180, flow.StandardRate, flow.IronOre)}
	typ := wrappedConveyor()
	f := moduleFuture(t, typ, in, 0)
	assert.Equal(t, int64(240), f.Module.Start)
	assert.Equal(t, CanonicalInput{Material: flow.IronOre, Rate: flow.StandardRate}, f.Module.Canonical[0])
	outs := typ.OutputFlows(in, f)
	assert.Equal(t, flow.NewPattern(360, flow.StandardRate), outs[0].Pattern)
}

// TestModule_CanonicalRounding checks inputs are quantized down and slow
// inputs vanish.
func TestModule_CanonicalRounding(t *testing.T) {
	c := Canonicalize(Inputs{mf(0, 8000, flow.Iron), mf(0, 100, flow.Iron), nil})
	assert.Equal(t, CanonicalInput{Material: flow.Iron, Rate: 7200}, c[0])
	assert.False(t, c[1].Present())
	assert.False(t, c[2].Present())
}

// TestModule_WaitingBeforeStart checks the module reports waiting until its
// start time.
func TestModule_WaitingBeforeStart(t *testing.T) {
	in := Inputs{mf(180, flow.StandardRate, flow.IronOre)}
	typ := wrappedConveyor()
	f := moduleFuture(t, typ, in, 0)
	assert.Equal(t, WaitingForInput, typ.MomentaryVisuals(in, f, Operating, 200).State)
	assert.Equal(t, Operating, typ.MomentaryVisuals(in, f, Operating, 240).State)
}

// TestMomentaryVisuals_NoFuture checks failed machines draw nothing.
func TestMomentaryVisuals_NoFuture(t *testing.T) {
	v := smelter().MomentaryVisuals(Inputs{nil}, nil, InputMissing, 100)
	assert.Equal(t, InputMissing, v.State)
	assert.Empty(t, v.Materials)
}

// TestAssembler_Progress checks the assembly glyph during a cycle.
func TestAssembler_Progress(t *testing.T) {
	in := Inputs{mf(120, flow.StandardRate, flow.IronOre)}
	typ := smelter()
	f := mustFuture(t, typ, in, 0)

	v := typ.MomentaryVisuals(in, f, Operating, 300)
	assert.Nil(t, v.Progress)
	assert.Equal(t, WaitingForInput, v.State)

	v = typ.MomentaryVisuals(in, f, Operating, 450)
	require.NotNil(t, v.Progress)
	assert.Equal(t, AssemblyProgress{Elapsed: 150, Duration: 600}, *v.Progress)
}

// TestOutputFlows_PanicsBeforeStart checks the start-time invariant is enforced.
func TestOutputFlows_PanicsBeforeStart(t *testing.T) {
	typ := conveyor()
	f := &Future{StartTime: 500, Distributor: &DistributorFuture{
		Material: flow.Iron, PerOutputRate: flow.StandardRate, FirstOutput: 100, Latency: 60,
	}}
	assert.Panics(t, func() { typ.OutputFlows(Inputs{nil}, f) })
}
