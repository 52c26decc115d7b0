// Package testutil holds fixtures shared by package tests that drive a
// whole session: a throwaway store, a quiet logger, preset lookups and a
// running engine.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/world"
)

// StartingIron is the inventory NewEngine creates games with.
const StartingIron = 100

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Preset returns the type of the named default preset. It panics on an
// unknown name.
func Preset(name string) world.TypeID {
	return world.Preset(catalog.MustDefault().MustLookup(name))
}

// OpenStore opens a store in a temporary directory, closed at cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "flowgrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// NewEngine creates the session "factory" with StartingIron iron and
// autosave disabled.
func NewEngine(t testing.TB, s *store.Store, opts ...engine.Option) *engine.Engine {
	t.Helper()
	all := append([]engine.Option{
		engine.WithLogger(QuietLogger()),
		engine.WithAutosaveEvery(0),
		engine.WithGameOptions(game.WithInventory(flow.Amounts{flow.Iron: StartingIron})),
	}, opts...)
	e, err := engine.Create(context.Background(), s, catalog.MustDefault(), "factory",
		engine.NewFixedGenerator("save-1"), all...)
	require.NoError(t, err)
	return e
}

// RunEngine runs e's loop until cleanup.
func RunEngine(t testing.TB, e *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine loop did not stop")
		}
	})
}

// Build returns an edit placing the named preset at (x, y) facing +x.
func Build(name string, x, y, at int64) game.Edit {
	return game.Edit{Kind: game.EditBuild, Type: Preset(name), Position: geom.At(x, y), Time: at}
}
