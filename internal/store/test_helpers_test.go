package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/world"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func preset(name string) world.TypeID {
	return world.Preset(catalog.MustDefault().MustLookup(name))
}

// createTestGame builds a mine feeding a conveyor.
func createTestGame(t *testing.T) *game.Game {
	t.Helper()
	g := game.New(catalog.MustDefault(),
		game.WithLogger(quietLogger()),
		game.WithInventory(flow.Amounts{flow.Iron: 100}))
	if err := g.BuildMachine(nil, preset("iron_mine"), geom.Identity, 0); err != nil {
		t.Fatalf("build mine: %v", err)
	}
	if err := g.BuildMachine(nil, preset("conveyor"), geom.At(4, 0), 100); err != nil {
		t.Fatalf("build conveyor: %v", err)
	}
	return g
}

// createTestDocument captures createTestGame.
func createTestDocument(t *testing.T) (*game.Game, Document) {
	t.Helper()
	g := createTestGame(t)
	doc, err := NewDocument(g)
	if err != nil {
		t.Fatalf("NewDocument() failed: %v", err)
	}
	return g, doc
}
