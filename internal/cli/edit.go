package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/geom"
	"github.com/roach88/flowgrid/internal/world"
)

// EditOptions holds flags shared by the edit commands.
type EditOptions struct {
	*RootOptions
	Time   int64
	In     string // region path the edit addresses
	At     string // "x,y"
	Facing string
	Flip   bool
	Radius int64
}

// EditResult is what an accepted edit reports.
type EditResult struct {
	Save string `json:"save"`
	Edit string `json:"edit"`
	Seq  int64  `json:"seq"`
	// Time is the game's last change time after the edit.
	Time      int64        `json:"time"`
	Inventory flow.Amounts `json:"inventory"`
}

// NewEditCommands creates build, remove, rotate, module, undo and redo.
// Each loads the save, applies one edit, journals it and rewrites the
// save document.
func NewEditCommands(rootOpts *RootOptions) []*cobra.Command {
	return []*cobra.Command{
		newBuildCommand(&EditOptions{RootOptions: rootOpts}),
		newRemoveCommand(&EditOptions{RootOptions: rootOpts}),
		newRotateCommand(&EditOptions{RootOptions: rootOpts}),
		newModuleCommand(&EditOptions{RootOptions: rootOpts}),
		newHistoryCommand(&EditOptions{RootOptions: rootOpts}, game.EditUndo, "Undo the last edit"),
		newHistoryCommand(&EditOptions{RootOptions: rootOpts}, game.EditRedo, "Redo the last undone edit"),
	}
}

func newBuildCommand(opts *EditOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <save> <type>",
		Short: "Place a machine",
		Long: `Place a preset or module instance. <type> names a catalog preset or
a module defined in the save; presets win on a name clash.

Examples:
  flowgrid build factory iron_mine --at 0,0
  flowgrid build factory conveyor --at 4,0 --facing +y --time 100
  flowgrid build factory splitter --in "/(10,0)" --at 2,0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0], func(g *game.Game) (game.Edit, error) {
				id, err := resolveType(g, args[1])
				if err != nil {
					return game.Edit{}, err
				}
				in, pos, err := opts.placement()
				if err != nil {
					return game.Edit{}, err
				}
				return game.Edit{Kind: game.EditBuild, Time: opts.Time, Path: in, Type: id, Position: pos}, nil
			})
		},
	}
	opts.placementFlags(cmd)
	cmd.Flags().BoolVar(&opts.Flip, "flip", false, "mirror the machine before rotating it")
	return cmd
}

func newRemoveCommand(opts *EditOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <save> <path>",
		Short: "Remove a machine",
		Long: `Remove the machine at <path>, refunding its cost.

Examples:
  flowgrid remove factory "/(4,0)" --time 500`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0], func(*game.Game) (game.Edit, error) {
				p, err := machinePath(args[1])
				if err != nil {
					return game.Edit{}, err
				}
				return game.Edit{Kind: game.EditRemove, Time: opts.Time, Path: p}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&opts.Time, "time", 0, "game time of the edit")
	return cmd
}

func newRotateCommand(opts *EditOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate <save> <path> <facing>",
		Short: "Turn a machine to face a direction",
		Long: `Turn the machine at <path> to face one of +x, +y, -x, -y.

Examples:
  flowgrid rotate factory "/(4,0)" +y --time 200
  flowgrid rotate factory "/(4,0)" --time 300 -- -x`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0], func(*game.Game) (game.Edit, error) {
				p, err := machinePath(args[1])
				if err != nil {
					return game.Edit{}, err
				}
				f, err := geom.ParseFacing(args[2])
				if err != nil {
					return game.Edit{}, err
				}
				return game.Edit{Kind: game.EditRotate, Time: opts.Time, Path: p, Facing: f}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&opts.Time, "time", 0, "game time of the edit")
	return cmd
}

func newModuleCommand(opts *EditOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module <save> <name>",
		Short: "Define a new empty module and place an instance of it",
		Long: `Define a module with the given name and interior radius and place
an instance of it.

Examples:
  flowgrid module factory box --radius 4 --at 10,0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0], func(*game.Game) (game.Edit, error) {
				in, pos, err := opts.placement()
				if err != nil {
					return game.Edit{}, err
				}
				return game.Edit{
					Kind: game.EditModule, Time: opts.Time, Path: in,
					Name: args[1], Radius: opts.Radius, Position: pos,
				}, nil
			})
		},
	}
	opts.placementFlags(cmd)
	cmd.Flags().Int64Var(&opts.Radius, "radius", 4, "interior radius of the module")
	return cmd
}

func newHistoryCommand(opts *EditOptions, kind game.EditKind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind) + " <save>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0], func(*game.Game) (game.Edit, error) {
				return game.Edit{Kind: kind}, nil
			})
		},
	}
}

func (o *EditOptions) placementFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.Time, "time", 0, "game time of the edit")
	cmd.Flags().StringVar(&o.In, "in", "/", "path of the region to build in")
	cmd.Flags().StringVar(&o.At, "at", "0,0", "position x,y within the region")
	cmd.Flags().StringVar(&o.Facing, "facing", "+x", "facing: +x, +y, -x or -y")
}

func (o *EditOptions) placement() (world.Path, geom.Isomorphism, error) {
	in, err := world.ParsePath(o.In)
	if err != nil {
		return nil, geom.Isomorphism{}, err
	}
	x, y, err := parseXY(o.At)
	if err != nil {
		return nil, geom.Isomorphism{}, err
	}
	f, err := geom.ParseFacing(o.Facing)
	if err != nil {
		return nil, geom.Isomorphism{}, err
	}
	return in, geom.At(x, y).Rotated(uint8(f)).Flipped(o.Flip), nil
}

// runEdit loads a save, applies the edit built by mk and persists it. A
// rejected edit exits with ExitFailure and its code in JSON output.
func runEdit(opts *EditOptions, cmd *cobra.Command, idOrName string, mk func(*game.Game) (game.Edit, error)) error {
	sess, err := opts.openSession(cmd, idOrName)
	if err != nil {
		return err
	}
	defer sess.Close()
	e := sess.engine
	out := opts.formatter(cmd)

	edit, err := mk(e.Game())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid edit", err)
	}
	out.VerboseLog("applying %s", edit)

	if err := e.Apply(cmd.Context(), edit); err != nil {
		if code := game.CodeOf(err); code != "" {
			_ = out.Error(string(code), err.Error(), edit.String())
			return WrapExitError(ExitFailure, "edit rejected", err)
		}
		return WrapExitError(ExitCommandError, "failed to apply edit", err)
	}
	if err := e.Flush(cmd.Context()); err != nil {
		// the edit is journaled; the next load replays it
		opts.Logger.Warn("save not written", "save", e.Info().ID, "error", err)
	}

	g := e.Game()
	result := EditResult{
		Save:      e.Info().Name,
		Edit:      edit.String(),
		Seq:       e.Info().JournalSeq,
		Time:      g.LastChangeTime,
		Inventory: g.InventoryAt(g.LastChangeTime),
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s (seq %d)\n", result.Save, result.Edit, result.Seq)
		fmt.Fprintf(w, "inventory at %d: %s\n", result.Time, formatAmounts(result.Inventory))
	})
}

// resolveType finds a preset, then a module, by name.
func resolveType(g *game.Game, name string) (world.TypeID, error) {
	if i, ok := g.Catalog().Lookup(name); ok {
		return world.Preset(i), nil
	}
	i := slices.IndexFunc(g.Map.Modules, func(d world.ModuleDef) bool { return d.Name == name })
	if i < 0 {
		return world.TypeID{}, fmt.Errorf("no preset or module named %q", name)
	}
	return world.Module(i), nil
}

func machinePath(s string) (world.Path, error) {
	p, err := world.ParsePath(s)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("path %q does not name a machine", s)
	}
	return p, nil
}

func parseXY(s string) (int64, int64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("position %q: want x,y", s)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("position %q: %w", s, err)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(ys), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("position %q: %w", s, err)
	}
	return x, y, nil
}

// formatAmounts renders amounts as "iron:90 iron_ore:58" in material order.
func formatAmounts(a flow.Amounts) string {
	if len(a) == 0 {
		return "(empty)"
	}
	keys := make([]flow.Material, 0, len(a))
	for m := range a {
		keys = append(keys, m)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, m := range keys {
		parts[i] = fmt.Sprintf("%s:%d", m, a[m])
	}
	return strings.Join(parts, " ")
}
