// Package game owns the map, its future and the undo history, and performs
// every edit as one transaction: validate, snapshot the inventory, mutate,
// canonicalize, recompute.
//
// A Game is not safe for concurrent use. The engine package serializes
// access to it.
package game

import (
	"fmt"
	"log/slog"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/future"
	"github.com/roach88/flowgrid/internal/world"
)

// DefaultMapRadius is the half-width of the global region.
const DefaultMapRadius int64 = 128

// Snapshot is everything an undo entry restores.
type Snapshot struct {
	Map                       world.Map    `json:"map"`
	LastChangeTime            int64        `json:"last_change_time"`
	InventoryBeforeLastChange flow.Amounts `json:"inventory_before_last_change"`
}

// State is the persistent part of a game. Futures are derived and never
// stored.
type State struct {
	Map                       world.Map    `json:"map"`
	LastChangeTime            int64        `json:"last_change_time"`
	InventoryBeforeLastChange flow.Amounts `json:"inventory_before_last_change"`
	UndoStack                 []Snapshot   `json:"undo_stack"`
	RedoStack                 []Snapshot   `json:"redo_stack"`
}

// Game is the editable simulation.
type Game struct {
	Map                       world.Map
	LastChangeTime            int64
	InventoryBeforeLastChange flow.Amounts
	UndoStack                 []Snapshot
	RedoStack                 []Snapshot

	catalog   *catalog.Catalog
	mapRadius int64
	logger    *slog.Logger

	types  *world.Types
	future *future.Future
}

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the logger for edit events. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Game) {
		g.logger = l
	}
}

// WithMapRadius sets the half-width of the global region.
func WithMapRadius(r int64) Option {
	return func(g *Game) {
		g.mapRadius = r
	}
}

// WithInventory sets the starting inventory of a new game.
func WithInventory(a flow.Amounts) Option {
	return func(g *Game) {
		g.InventoryBeforeLastChange = a.Clone()
	}
}

// New returns an empty game.
func New(c *catalog.Catalog, opts ...Option) *Game {
	g := &Game{
		InventoryBeforeLastChange: flow.Amounts{},
		catalog:                   c,
		mapRadius:                 DefaultMapRadius,
		logger:                    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.recompute(); err != nil {
		panic(fmt.Sprintf("game: empty map does not compute: %v", err))
	}
	return g
}

// Restore rebuilds a game from persisted state. The map must already be
// canonical.
func Restore(c *catalog.Catalog, st State, opts ...Option) (*Game, error) {
	g := New(c, opts...)
	if !world.IsCanonical(st.Map) {
		return nil, fmt.Errorf("restore: map is not canonical")
	}
	g.Map = st.Map.Clone()
	g.LastChangeTime = st.LastChangeTime
	g.InventoryBeforeLastChange = st.InventoryBeforeLastChange.Clone()
	g.UndoStack = cloneSnapshots(st.UndoStack)
	g.RedoStack = cloneSnapshots(st.RedoStack)
	if err := g.recompute(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return g, nil
}

// State returns a deep copy of the persistent fields.
func (g *Game) State() State {
	return State{
		Map:                       g.Map.Clone(),
		LastChangeTime:            g.LastChangeTime,
		InventoryBeforeLastChange: g.InventoryBeforeLastChange.Clone(),
		UndoStack:                 cloneSnapshots(g.UndoStack),
		RedoStack:                 cloneSnapshots(g.RedoStack),
	}
}

func cloneSnapshots(in []Snapshot) []Snapshot {
	if in == nil {
		return nil
	}
	out := make([]Snapshot, len(in))
	for i, s := range in {
		out[i] = Snapshot{
			Map:                       s.Map.Clone(),
			LastChangeTime:            s.LastChangeTime,
			InventoryBeforeLastChange: s.InventoryBeforeLastChange.Clone(),
		}
	}
	return out
}

// Catalog returns the preset table.
func (g *Game) Catalog() *catalog.Catalog {
	return g.catalog
}

// MapRadius returns the half-width of the global region.
func (g *Game) MapRadius() int64 {
	return g.mapRadius
}

// Types returns the machine types of the current map.
func (g *Game) Types() *world.Types {
	return g.types
}

// Future returns the future of the current map.
func (g *Game) Future() *future.Future {
	return g.future
}

// InventoryAt returns the inventory at time t. Before the last change the
// inventory at the last change is returned, since history is not kept.
func (g *Game) InventoryAt(t int64) flow.Amounts {
	return g.InventoryBeforeLastChange.Add(g.future.Root.Inventory.AccumulationBetween(g.LastChangeTime, t))
}

// Canonicalize brings the map into canonical form. The map is canonical
// after every edit, so this only recomputes when it was modified directly.
func (g *Game) Canonicalize() error {
	if world.IsCanonical(g.Map) {
		return nil
	}
	g.Map = world.Canonicalize(g.Map)
	if !world.IsCanonical(g.Map) {
		panic("game: canonical form is not a fixed point")
	}
	return g.recompute()
}

func (g *Game) recompute() error {
	types, err := world.NewTypes(g.catalog.Types(), &g.Map)
	if err != nil {
		return err
	}
	g.types = types
	g.future = future.Compute(&g.Map, types)
	return nil
}

func (g *Game) snapshot() Snapshot {
	return Snapshot{
		Map:                       g.Map,
		LastChangeTime:            g.LastChangeTime,
		InventoryBeforeLastChange: g.InventoryBeforeLastChange,
	}
}

// commit installs a canonical map computed by an edit.
func (g *Game) commit(next world.Map, types *world.Types, fut *future.Future, time int64, inv flow.Amounts) {
	g.UndoStack = append(g.UndoStack, g.snapshot())
	g.RedoStack = nil
	g.Map = next
	g.LastChangeTime = time
	g.InventoryBeforeLastChange = inv
	g.types = types
	g.future = fut
}

// restore swaps the current state for s and returns the state it replaced.
func (g *Game) restore(s Snapshot) (Snapshot, error) {
	types, err := world.NewTypes(g.catalog.Types(), &s.Map)
	if err != nil {
		return Snapshot{}, err
	}
	prev := g.snapshot()
	g.Map = s.Map
	g.LastChangeTime = s.LastChangeTime
	g.InventoryBeforeLastChange = s.InventoryBeforeLastChange
	g.types = types
	g.future = future.Compute(&g.Map, types)
	return prev, nil
}

// Undo reverts the most recent edit.
func (g *Game) Undo() error {
	if len(g.UndoStack) == 0 {
		return &EditError{Code: ErrCodeNothingToUndo, Message: "undo stack is empty"}
	}
	top := g.UndoStack[len(g.UndoStack)-1]
	prev, err := g.restore(top)
	if err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	g.UndoStack = g.UndoStack[:len(g.UndoStack)-1]
	g.RedoStack = append(g.RedoStack, prev)
	g.logger.Info("edit undone", "last_change_time", g.LastChangeTime, "undo", len(g.UndoStack), "redo", len(g.RedoStack))
	return nil
}

// Redo reapplies the most recently undone edit.
func (g *Game) Redo() error {
	if len(g.RedoStack) == 0 {
		return &EditError{Code: ErrCodeNothingToRedo, Message: "redo stack is empty"}
	}
	top := g.RedoStack[len(g.RedoStack)-1]
	prev, err := g.restore(top)
	if err != nil {
		return fmt.Errorf("redo: %w", err)
	}
	g.RedoStack = g.RedoStack[:len(g.RedoStack)-1]
	g.UndoStack = append(g.UndoStack, prev)
	g.logger.Info("edit redone", "last_change_time", g.LastChangeTime, "undo", len(g.UndoStack), "redo", len(g.RedoStack))
	return nil
}
