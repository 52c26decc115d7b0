package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/view"
	"github.com/roach88/flowgrid/internal/world"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func preset(name string) world.TypeID {
	return world.Preset(catalog.MustDefault().MustLookup(name))
}

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithLogger(quiet()),
		WithGameOptions(game.WithInventory(flow.Amounts{flow.Iron: 100})),
	}, extra...)
}

func createEngine(t *testing.T, s *store.Store, extra ...Option) *Engine {
	t.Helper()
	e, err := Create(context.Background(), s, catalog.MustDefault(), "factory",
		NewFixedGenerator("save-1"), testOptions(extra...)...)
	require.NoError(t, err)
	return e
}

func mineAndConveyor() []game.Edit {
	return []game.Edit{
		{Kind: game.EditBuild, Type: preset("iron_mine"), Position: geom.Identity, Time: 0},
		{Kind: game.EditBuild, Type: preset("conveyor"), Position: geom.At(4, 0), Time: 100},
		{Kind: game.EditRotate, Path: world.Path{geom.V(4, 0)}, Facing: geom.FacingPosY, Time: 200},
	}
}

// runEngine starts Run in a goroutine and returns a function that stops
// it and reports Run's result.
func runEngine(t *testing.T, e *Engine) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not stop")
			return nil
		}
	}
}

// TestCreate_StoresEmptyGame checks a new session has a save with no
// journal.
func TestCreate_StoresEmptyGame(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s)

	info, _, err := s.LoadSave(context.Background(), "factory")
	require.NoError(t, err)
	assert.Equal(t, "save-1", info.ID)
	assert.Equal(t, e.Info(), info)
	assert.Equal(t, int64(0), e.Version())
}

// TestApply_JournalsAcceptedEdits checks each accepted edit is journaled
// with the digest of the resulting game.
func TestApply_JournalsAcceptedEdits(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(0))
	ctx := context.Background()

	for _, edit := range mineAndConveyor() {
		require.NoError(t, e.Apply(ctx, edit))
	}
	assert.Equal(t, int64(3), e.Version())

	entries, err := s.ReadJournal(ctx, "save-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ir.MustGameDigest(e.Game().State()), entries[2].GameDigest)
	assert.Equal(t, entries[2].GameDigest, e.Info().Digest)
}

// TestApply_RejectedEditNotJournaled checks a failing edit leaves the game
// and journal alone.
func TestApply_RejectedEditNotJournaled(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s)
	ctx := context.Background()
	before := ir.MustGameDigest(e.Game().State())

	err := e.Apply(ctx, game.Edit{Kind: game.EditRemove, Path: world.Path{geom.V(9, 9)}, Time: 5})
	require.Error(t, err)
	assert.True(t, game.IsInvalidPath(err))

	entries, err := s.ReadJournal(ctx, "save-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, before, ir.MustGameDigest(e.Game().State()))
	assert.Equal(t, int64(0), e.Version())
}

// TestApply_Autosave checks the document is rewritten every N edits.
func TestApply_Autosave(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(2))
	ctx := context.Background()
	edits := mineAndConveyor()

	require.NoError(t, e.Apply(ctx, edits[0]))
	info, _, err := s.LoadSave(ctx, "save-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Revision)

	require.NoError(t, e.Apply(ctx, edits[1]))
	info, doc, err := s.LoadSave(ctx, "save-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Revision)
	assert.Equal(t, e.Info().JournalSeq, info.JournalSeq)
	assert.Equal(t, int64(100), doc.Game.LastChangeTime)
}

// TestLoad_ReplaysUnsavedEdits checks a session that never wrote its
// document is recovered from the journal.
func TestLoad_ReplaysUnsavedEdits(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(0))
	ctx := context.Background()
	for _, edit := range mineAndConveyor() {
		require.NoError(t, e.Apply(ctx, edit))
	}
	want := ir.MustGameDigest(e.Game().State())

	loaded, err := Load(ctx, s, catalog.MustDefault(), "factory", testOptions()...)
	require.NoError(t, err)
	assert.Equal(t, want, ir.MustGameDigest(loaded.Game().State()))
	assert.Equal(t, e.Game().InventoryAt(3600), loaded.Game().InventoryAt(3600))

	require.NoError(t, loaded.Flush(ctx))
	_, res, err := Replay(ctx, s, catalog.MustDefault(), "factory")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied, "flushed document already holds every edit")
	assert.Equal(t, want, res.Digest)
}

// TestReplay_DetectsDivergence checks a tampered journal digest stops the
// load.
func TestReplay_DetectsDivergence(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(0))
	ctx := context.Background()
	for _, edit := range mineAndConveyor() {
		require.NoError(t, e.Apply(ctx, edit))
	}

	_, err := s.DB().Exec(`UPDATE journal SET game_digest = 'bogus' WHERE seq = (SELECT MAX(seq) FROM journal)`)
	require.NoError(t, err)

	_, _, err = Replay(ctx, s, catalog.MustDefault(), "factory", game.WithLogger(quiet()))
	require.Error(t, err)
	assert.True(t, IsReplayError(err))

	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "bogus", re.Want)
	assert.Equal(t, game.EditRotate, re.Edit.Kind)
}

// TestReplay_MissingSave reports store.ErrNotFound.
func TestReplay_MissingSave(t *testing.T) {
	s := setupTestStore(t)
	_, _, err := Replay(context.Background(), s, catalog.MustDefault(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestRun_SubmitAndView checks edits and views go through the loop in
// order.
func TestRun_SubmitAndView(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s)
	stop := runEngine(t, e)
	ctx := context.Background()

	for _, edit := range mineAndConveyor() {
		require.NoError(t, e.Submit(ctx, edit))
	}
	assert.Equal(t, int64(3), e.Version())

	var inv flow.Amounts
	require.NoError(t, e.View(ctx, func(v *view.View) error {
		inv = v.InventoryAt(200)
		return nil
	}))
	assert.Equal(t, int64(89), inv[flow.Iron], "mine and conveyor paid for")

	err := e.Submit(ctx, game.Edit{Kind: game.EditRedo})
	assert.Error(t, err, "nothing to redo")

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.ErrorIs(t, e.Submit(ctx, game.Edit{Kind: game.EditUndo}), ErrStopped)
}

// TestRun_FinalSave checks stopping the loop writes the document.
func TestRun_FinalSave(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(0))
	stop := runEngine(t, e)
	ctx := context.Background()

	require.NoError(t, e.Submit(ctx, mineAndConveyor()[0]))
	require.ErrorIs(t, stop(), context.Canceled)

	info, _, err := s.LoadSave(ctx, "factory")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Revision)
	assert.Equal(t, ir.MustGameDigest(e.Game().State()), info.Digest)
}

// TestRun_Stop checks Stop ends the loop without an error.
func TestRun_Stop(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s)
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.NoError(t, e.Save(context.Background()))
	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

// TestWatch_ReceivesLatestVersion checks watchers see the newest version.
func TestWatch_ReceivesLatestVersion(t *testing.T) {
	s := setupTestStore(t)
	e := createEngine(t, s, WithAutosaveEvery(0))
	versions, cancel := e.Watch()
	defer cancel()
	ctx := context.Background()

	for _, edit := range mineAndConveyor() {
		require.NoError(t, e.Apply(ctx, edit))
	}
	assert.Equal(t, int64(3), <-versions)

	cancel()
	require.NoError(t, e.Apply(ctx, game.Edit{Kind: game.EditUndo}))
	select {
	case v := <-versions:
		t.Fatalf("cancelled watcher received %d", v)
	default:
	}
}
