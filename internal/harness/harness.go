package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/view"
	"github.com/roach88/flowgrid/internal/world"
)

// saveID names the save every scenario runs in.
const saveID = "scenario"

// Harness is the test execution engine.
// It drives one session through a scenario's steps.
type Harness struct {
	store   *store.Store
	catalog *catalog.Catalog
	engine  *engine.Engine
	logger  *slog.Logger

	gameOpts []game.Option
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger handed to the session. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithCatalog runs the scenario against c instead of the default presets.
func WithCatalog(c *catalog.Catalog) Option {
	return func(h *Harness) {
		h.catalog = c
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create a fresh in-memory database and a session on an empty game
// 2. Apply each step, journaling accepted edits
// 3. Sample the inventory timeline and global machine states
// 4. Evaluate assertions
// 5. Replay the journal and compare the resulting digest
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		h.catalog = c
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	inventory, err := parseAmounts(scenario.Inventory)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	h.gameOpts = []game.Option{game.WithInventory(inventory)}
	if scenario.MapRadius > 0 {
		h.gameOpts = append(h.gameOpts, game.WithMapRadius(scenario.MapRadius))
	}

	ctx := context.Background()
	eng, err := engine.Create(ctx, st, h.catalog, scenario.Name, engine.NewFixedGenerator(saveID),
		engine.WithLogger(h.logger),
		engine.WithAutosaveEvery(0),
		engine.WithGameOptions(h.gameOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	h.engine = eng

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, err
	}

	v := view.New(eng.Game())
	for _, t := range scenario.Timeline {
		result.Timeline = append(result.Timeline, Sample{Time: t, Inventory: v.InventoryAt(t)})
	}
	placed, err := v.MachinesAtDepth(nil)
	if err != nil {
		return nil, err
	}
	for _, p := range placed {
		result.States[p.Path.String()] = p.State
	}
	result.Digest = eng.Info().Digest

	actx := &AssertionContext{Ctx: ctx, Store: st, Game: eng.Game(), SaveID: saveID}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if err := h.verifyReplay(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// executeSteps applies each step through the session. A step that fails
// unexpectedly is recorded as an error and the scenario continues.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		edit, err := h.edit(step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		err = h.engine.Apply(ctx, edit)
		code := string(game.CodeOf(err))
		if err != nil && code == "" {
			return fmt.Errorf("step %d (%s): %w", i, edit, err)
		}
		result.AddStep(i, edit.String(), code)

		switch {
		case code != step.ExpectError && step.ExpectError == "":
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, edit, err))
		case code != step.ExpectError:
			result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %q", i, edit, step.ExpectError, code))
		}

		h.logger.Info("scenario step completed",
			"step", i,
			"edit", edit.String(),
			"error", code,
		)
	}
	return nil
}

// edit turns a step into a session edit, resolving type and module names
// against the current game.
func (h *Harness) edit(s Step) (game.Edit, error) {
	e := game.Edit{Time: s.Time}
	switch {
	case s.Build != nil:
		e.Kind = game.EditBuild
		id, err := h.typeID(s.Build)
		if err != nil {
			return game.Edit{}, err
		}
		e.Type = id
		if e.Path, err = world.ParsePath(s.Build.Path); err != nil {
			return game.Edit{}, err
		}
		if e.Position, err = placement(s.Build.X, s.Build.Y, s.Build.Facing, s.Build.Flip); err != nil {
			return game.Edit{}, err
		}
	case s.Remove != nil:
		e.Kind = game.EditRemove
		p, err := parseMachinePath(s.Remove.Path)
		if err != nil {
			return game.Edit{}, err
		}
		e.Path = p
	case s.Rotate != nil:
		e.Kind = game.EditRotate
		p, err := parseMachinePath(s.Rotate.Path)
		if err != nil {
			return game.Edit{}, err
		}
		f, err := geom.ParseFacing(s.Rotate.Facing)
		if err != nil {
			return game.Edit{}, err
		}
		e.Path, e.Facing = p, f
	case s.Module != nil:
		e.Kind = game.EditModule
		e.Name, e.Radius = s.Module.Name, s.Module.Radius
		var err error
		if e.Path, err = world.ParsePath(s.Module.Path); err != nil {
			return game.Edit{}, err
		}
		if e.Position, err = placement(s.Module.X, s.Module.Y, s.Module.Facing, false); err != nil {
			return game.Edit{}, err
		}
	case s.Undo:
		e = game.Edit{Kind: game.EditUndo}
	case s.Redo:
		e = game.Edit{Kind: game.EditRedo}
	default:
		return game.Edit{}, fmt.Errorf("step has no action")
	}
	return e, nil
}

func (h *Harness) typeID(b *BuildStep) (world.TypeID, error) {
	if b.Type != "" {
		i, ok := h.catalog.Lookup(b.Type)
		if !ok {
			return world.TypeID{}, fmt.Errorf("unknown preset %q", b.Type)
		}
		return world.Preset(i), nil
	}
	modules := h.engine.Game().Map.Modules
	i := slices.IndexFunc(modules, func(d world.ModuleDef) bool { return d.Name == b.Module })
	if i < 0 {
		return world.TypeID{}, fmt.Errorf("unknown module %q", b.Module)
	}
	return world.Module(i), nil
}

func placement(x, y int64, facing string, flip bool) (geom.Isomorphism, error) {
	f, err := parseFacing(facing)
	if err != nil {
		return geom.Isomorphism{}, err
	}
	return geom.At(x, y).Rotated(uint8(f)).Flipped(flip), nil
}

// verifyReplay rebuilds the game from the journal and checks it arrives
// at the session's digest.
func (h *Harness) verifyReplay(ctx context.Context, result *Result) error {
	_, res, err := engine.Replay(ctx, h.store, h.catalog, saveID,
		append([]game.Option{game.WithLogger(h.logger)}, h.gameOpts...)...)
	if err != nil {
		if engine.IsReplayError(err) {
			result.AddError(err.Error())
			return nil
		}
		return fmt.Errorf("replay: %w", err)
	}
	if res.Digest != result.Digest {
		result.AddError(fmt.Sprintf("replay digest %s does not match session digest %s", res.Digest, result.Digest))
	}
	return nil
}
