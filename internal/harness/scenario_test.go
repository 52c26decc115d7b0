package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/undo_after_rotation.yaml")
	require.NoError(t, err)

	assert.Equal(t, "undo_after_rotation", s.Name)
	assert.Equal(t, map[string]int64{"iron": 12}, s.Inventory)
	require.Len(t, s.Steps, 7)
	require.NotNil(t, s.Steps[1].Build)
	assert.Equal(t, "splitter", s.Steps[1].Build.Type)
	assert.Equal(t, int64(4), s.Steps[1].Build.X)
	require.NotNil(t, s.Steps[2].Rotate)
	assert.Equal(t, "+y", s.Steps[2].Rotate.Facing)
	assert.True(t, s.Steps[3].Undo)
	assert.Equal(t, "INVALID_PATH", s.Steps[6].ExpectError)
	assert.Equal(t, []int64{0, 5000, 10000}, s.Timeline)
	assert.Len(t, s.Assertions, 3)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "assertion instead of assertions"
steps:
  - time: 0
    undo: true
assertion: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src:  "description: d\nsteps: [{undo: true}]",
			want: "name is required",
		},
		{
			name: "missing description",
			src:  "name: n\nsteps: [{undo: true}]",
			want: "description is required",
		},
		{
			name: "no steps",
			src:  "name: n\ndescription: d",
			want: "steps list is required",
		},
		{
			name: "two actions",
			src:  "name: n\ndescription: d\nsteps: [{undo: true, redo: true}]",
			want: "exactly one of",
		},
		{
			name: "no action",
			src:  "name: n\ndescription: d\nsteps: [{time: 5}]",
			want: "got 0",
		},
		{
			name: "type and module",
			src:  "name: n\ndescription: d\nsteps: [{build: {type: conveyor, module: box}}]",
			want: "exactly one of type and module",
		},
		{
			name: "bad facing",
			src:  "name: n\ndescription: d\nsteps: [{build: {type: conveyor, facing: up}}]",
			want: `unknown facing "up"`,
		},
		{
			name: "bad path",
			src:  "name: n\ndescription: d\nsteps: [{remove: {path: \"/0,0\"}}]",
			want: "parse path",
		},
		{
			name: "remove global region",
			src:  "name: n\ndescription: d\nsteps: [{remove: {path: \"/\"}}]",
			want: "does not name a machine",
		},
		{
			name: "unknown material",
			src:  "name: n\ndescription: d\ninventory: {unobtainium: 1}\nsteps: [{undo: true}]",
			want: `unknown material "unobtainium"`,
		},
		{
			name: "negative inventory",
			src:  "name: n\ndescription: d\ninventory: {iron: -1}\nsteps: [{undo: true}]",
			want: "negative amount of iron",
		},
		{
			name: "negative time",
			src:  "name: n\ndescription: d\nsteps: [{time: -1, build: {type: conveyor}}]",
			want: "negative time -1",
		},
		{
			name: "unknown assertion",
			src:  "name: n\ndescription: d\nsteps: [{undo: true}]\nassertions: [{type: trace_order}]",
			want: `unknown type "trace_order"`,
		},
		{
			name: "unknown state",
			src:  "name: n\ndescription: d\nsteps: [{undo: true}]\nassertions: [{type: machine_state, path: \"/(0,0)\", state: busy}]",
			want: `unknown operating state "busy"`,
		},
		{
			name: "negative count",
			src:  "name: n\ndescription: d\nsteps: [{undo: true}]\nassertions: [{type: journal_count, count: -1}]",
			want: "count must be non-negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "inventory_at", AssertInventoryAt)
	assert.Equal(t, "machine_state", AssertMachineState)
	assert.Equal(t, "journal_count", AssertJournalCount)
	assert.Equal(t, "variations", AssertVariations)
}
