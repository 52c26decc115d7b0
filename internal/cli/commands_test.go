package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/world"
)

// workspace changes into an empty directory so every command uses the
// default config and ./flowgrid.db.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// decode parses a JSON CLI response.
func decode[T any](t *testing.T, out string) (T, *CLIError) {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   T         `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data, resp.Error
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, out)
	return out
}

// TestNewAndSaves lists a created save.
func TestNewAndSaves(t *testing.T) {
	workspace(t)

	out := mustRun(t, "new", "factory", "--format", "json")
	info, _ := decode[store.SaveInfo](t, out)
	assert.Equal(t, "factory", info.Name)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, int64(1), info.Revision)

	out = mustRun(t, "saves")
	assert.Contains(t, out, "factory")
	assert.Contains(t, out, info.ID)

	_, err := runCLI(t, "new", "factory")
	require.Error(t, err, "names are unique")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestSaves_Empty reports an empty database.
func TestSaves_Empty(t *testing.T) {
	workspace(t)
	assert.Contains(t, mustRun(t, "saves"), "No saves found.")
}

// TestBuildAndInventory pays for a mine and collects its ore.
func TestBuildAndInventory(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")

	out := mustRun(t, "build", "factory", "iron_mine", "--at", "0,0")
	assert.Contains(t, out, "iron:90")
	assert.Contains(t, out, "(seq 1)")

	out = mustRun(t, "inventory", "factory", "--time", "3600", "--format", "json")
	inv, _ := decode[map[string]any](t, out)
	assert.Equal(t, map[string]any{"iron": 90.0, "iron_ore": 58.0}, inv["inventory"])

	_, err := runCLI(t, "inventory", "factory", "--time", "-1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestBuild_Rejected reports the edit error code and exits 1.
func TestBuild_Rejected(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "build", "factory", "iron_mine")

	out, err := runCLI(t, "build", "factory", "iron_mine", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "OVERLAP", ErrorCode(err))
	_, cliErr := decode[any](t, out)
	require.NotNil(t, cliErr)
	assert.Equal(t, "OVERLAP", cliErr.Code)

	_, err = runCLI(t, "build", "factory", "teleporter")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "build", "factory", "conveyor", "--at", "4")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "build", "nowhere", "conveyor")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestEditHistory rotates, undoes and redoes through the CLI and journals
// every accepted edit.
func TestEditHistory(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "build", "factory", "iron_mine")
	mustRun(t, "build", "factory", "conveyor", "--at", "4,0", "--time", "100")
	mustRun(t, "rotate", "factory", "/(4,0)", "+y", "--time", "200")
	mustRun(t, "undo", "factory")
	mustRun(t, "redo", "factory")

	_, err := runCLI(t, "redo", "factory")
	assert.Equal(t, "NOTHING_TO_REDO", ErrorCode(err))

	out := mustRun(t, "journal", "factory", "--format", "json")
	entries, _ := decode[[]store.JournalEntry](t, out)
	require.Len(t, entries, 5)
	assert.Equal(t, game.EditRotate, entries[2].Edit.Kind)
	assert.Equal(t, game.EditRedo, entries[4].Edit.Kind)

	out = mustRun(t, "journal", "factory", "--kind", "build", "--format", "json")
	entries, _ = decode[[]store.JournalEntry](t, out)
	assert.Len(t, entries, 2)

	out = mustRun(t, "journal", "factory", "--path", "/(4,0)", "--format", "json")
	entries, _ = decode[[]store.JournalEntry](t, out)
	assert.Len(t, entries, 1, "only the rotation addresses /(4,0)")

	out = mustRun(t, "journal", "factory", "--from", "100", "--to", "201", "--limit", "1", "--format", "json")
	entries, _ = decode[[]store.JournalEntry](t, out)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Seq)

	_, err = runCLI(t, "journal", "factory", "--kind", "teleport")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Contains(t, mustRun(t, "journal", "factory"), "rotate /(4,0) to +y @200")
}

// TestRemove refunds the machine.
func TestRemove(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "build", "factory", "conveyor", "--at", "4,0")

	out := mustRun(t, "remove", "factory", "/(4,0)", "--time", "10", "--format", "json")
	res, _ := decode[EditResult](t, out)
	assert.Equal(t, flow.Amounts{flow.Iron: 100}, res.Inventory, "conveyor refunded")

	_, err := runCLI(t, "remove", "factory", "/")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestModuleAndShow builds into a new module and lists both regions.
func TestModuleAndShow(t *testing.T) {
	workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "module", "factory", "box", "--radius", "4", "--at", "10,0")
	mustRun(t, "build", "factory", "iron_mine", "--in", "/(10,0)")
	mustRun(t, "build", "factory", "box", "--at", "-10,0")

	out := mustRun(t, "show", "factory", "--format", "json")
	res, _ := decode[struct {
		Path     string `json:"path"`
		Machines []struct {
			Type string `json:"type"`
		} `json:"machines"`
	}](t, out)
	assert.Equal(t, "/", res.Path)
	require.Len(t, res.Machines, 2)
	assert.Equal(t, "box", res.Machines[0].Type)

	out = mustRun(t, "show", "factory", "/(10,0)")
	assert.Contains(t, out, "iron_mine")
	assert.Contains(t, out, "1 machines")

	out = mustRun(t, "show", "factory", "--time", "600")
	assert.Contains(t, out, "at 600:")

	_, err := runCLI(t, "show", "factory", "/(5,5)")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestCatalog lists the built-in presets with their costs.
func TestCatalog(t *testing.T) {
	workspace(t)
	out := mustRun(t, "catalog", "--format", "json")
	entries, _ := decode[[]CatalogEntry](t, out)
	require.Len(t, entries, catalog.MustDefault().Len())

	byName := map[string]CatalogEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	require.Contains(t, byName, "iron_mine")
	assert.Equal(t, flow.Amounts{flow.Iron: 10}, byName["iron_mine"].Cost)
	assert.Equal(t, "distributor", byName["splitter"].Kind)

	assert.Contains(t, mustRun(t, "catalog"), "splitter")
}

// TestExportImport round trips a save through a file.
func TestExportImport(t *testing.T) {
	dir := workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "build", "factory", "iron_mine")

	file := filepath.Join(dir, "factory"+store.ExportExt)
	mustRun(t, "export", "factory", file)
	assert.FileExists(t, file)

	mustRun(t, "import", file, "copy")
	a := mustRun(t, "inventory", "factory", "--time", "5000", "--format", "json")
	b := mustRun(t, "inventory", "copy", "--time", "5000", "--format", "json")
	invA, _ := decode[InventoryResult](t, a)
	invB, _ := decode[InventoryResult](t, b)
	assert.Equal(t, invA.Inventory, invB.Inventory)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.fgz"), []byte("not zstd"), 0o644))
	_, err := runCLI(t, "import", filepath.Join(dir, "junk.fgz"), "junk")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestReplay verifies every save and reports a tampered one.
func TestReplay(t *testing.T) {
	dir := workspace(t)
	mustRun(t, "new", "factory")
	mustRun(t, "build", "factory", "iron_mine")
	mustRun(t, "new", "empty")

	out := mustRun(t, "replay", "--format", "json")
	res, _ := decode[ReplayResult](t, out)
	assert.Equal(t, 2, res.TotalSaves)
	assert.True(t, res.AllDeterministic)

	st, err := store.Open(filepath.Join(dir, "flowgrid.db"))
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(), `UPDATE saves SET digest = 'bogus' WHERE name = 'factory'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err = runCLI(t, "replay", "factory")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL factory")
}

// TestReplay_Empty reports an empty database.
func TestReplay_Empty(t *testing.T) {
	workspace(t)
	assert.Contains(t, mustRun(t, "replay"), "No saves found in database.")
}

// TestParseXY accepts x,y with optional spaces.
func TestParseXY(t *testing.T) {
	x, y, err := parseXY(" -3, 7")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), x)
	assert.Equal(t, int64(7), y)

	for _, bad := range []string{"", "3", "a,1", "1,b"} {
		_, _, err := parseXY(bad)
		assert.Error(t, err, bad)
	}
}

// TestResolveType prefers presets and falls back to modules.
func TestResolveType(t *testing.T) {
	g := game.New(catalog.MustDefault())
	id, err := resolveType(g, "conveyor")
	require.NoError(t, err)
	assert.Equal(t, world.KindPreset, id.Kind)

	_, err = resolveType(g, "box")
	assert.ErrorContains(t, err, `no preset or module named "box"`)

	require.NoError(t, g.BuildNewModule(nil, "box", 3, geom.At(10, 0), 0))
	id, err = resolveType(g, "box")
	require.NoError(t, err)
	assert.Equal(t, world.Module(0), id)
}

// TestFormatAmounts renders materials in order and marks empty stock.
func TestFormatAmounts(t *testing.T) {
	assert.Equal(t, "(empty)", formatAmounts(nil))
	assert.Equal(t, "iron:3", formatAmounts(flow.Amounts{flow.Iron: 3}))
}
