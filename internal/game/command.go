package game

import (
	"fmt"

	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/world"
)

// EditKind names one of the edit operations.
type EditKind string

const (
	EditBuild  EditKind = "build"
	EditRemove EditKind = "remove"
	EditRotate EditKind = "rotate"
	EditModule EditKind = "module"
	EditUndo   EditKind = "undo"
	EditRedo   EditKind = "redo"
)

// Edit is a serializable edit request. The session loop journals edits and
// replays them through Apply.
type Edit struct {
	Kind EditKind `json:"kind"`
	// Time is ignored by undo and redo.
	Time int64      `json:"time"`
	Path world.Path `json:"path,omitempty"`

	// build
	Type     world.TypeID     `json:"type"`
	Position geom.Isomorphism `json:"position"`

	// rotate
	Facing geom.Facing `json:"facing"`

	// module
	Name   string `json:"name,omitempty"`
	Radius int64  `json:"radius,omitempty"`
}

func (e Edit) String() string {
	switch e.Kind {
	case EditBuild:
		return fmt.Sprintf("build %s at %s in %s @%d", e.Type, e.Position, e.Path, e.Time)
	case EditRemove:
		return fmt.Sprintf("remove %s @%d", e.Path, e.Time)
	case EditRotate:
		return fmt.Sprintf("rotate %s to %s @%d", e.Path, e.Facing, e.Time)
	case EditModule:
		return fmt.Sprintf("module %q r%d at %s in %s @%d", e.Name, e.Radius, e.Position, e.Path, e.Time)
	default:
		return string(e.Kind)
	}
}

// Apply dispatches an edit to the matching operation.
func (g *Game) Apply(e Edit) error {
	switch e.Kind {
	case EditBuild:
		return g.BuildMachine(e.Path, e.Type, e.Position, e.Time)
	case EditRemove:
		return g.RemoveMachine(e.Path, e.Time)
	case EditRotate:
		return g.RotateMachine(e.Path, e.Facing, e.Time)
	case EditModule:
		return g.BuildNewModule(e.Path, e.Name, e.Radius, e.Position, e.Time)
	case EditUndo:
		return g.Undo()
	case EditRedo:
		return g.Redo()
	default:
		return fmt.Errorf("unknown edit kind %q", e.Kind)
	}
}
