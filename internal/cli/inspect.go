package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/view"
	"github.com/roach88/flowgrid/internal/world"
)

// InspectOptions holds flags for inventory and show.
type InspectOptions struct {
	*RootOptions
	Time int64
}

// InventoryResult is the answer to an inventory query.
type InventoryResult struct {
	Save      string       `json:"save"`
	Time      int64        `json:"time"`
	Inventory flow.Amounts `json:"inventory"`
}

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "inventory <save>",
		Short: "Show the inventory at a game time",
		Long: `Compute the inventory the save will hold at --time, given that no
further edits are made.

Examples:
  flowgrid inventory factory --time 3600
  flowgrid inventory factory --time 12000 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(opts, args[0], cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.Time, "time", 0, "game time to query")
	return cmd
}

func runInventory(opts *InspectOptions, idOrName string, cmd *cobra.Command) error {
	if opts.Time < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("negative time %d", opts.Time))
	}
	sess, err := opts.openSession(cmd, idOrName)
	if err != nil {
		return err
	}
	defer sess.Close()

	v := view.New(sess.engine.Game())
	result := InventoryResult{
		Save:      sess.engine.Info().Name,
		Time:      opts.Time,
		Inventory: v.InventoryAt(opts.Time),
	}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s at %d: %s\n", result.Save, result.Time, formatAmounts(result.Inventory))
	})
}

// ShowResult lists one region of a save.
type ShowResult struct {
	Save     string        `json:"save"`
	Path     string        `json:"path"`
	Machines []view.Placed `json:"machines"`
	// Visuals is set when --time is given.
	Visuals []view.MachineVisuals `json:"visuals,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "show <save> [path]",
		Short: "List the machines of a region",
		Long: `List the machines placed directly in the region at [path] (default:
the global region) with their operating states. With --time, also report
what every machine on the map shows at that instant.

Examples:
  flowgrid show factory
  flowgrid show factory "/(10,0)"
  flowgrid show factory --time 600 --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 2 {
				path = args[1]
			}
			return runShow(opts, args[0], path, cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.Time, "time", -1, "also report momentary visuals at this game time")
	return cmd
}

func runShow(opts *InspectOptions, idOrName, path string, cmd *cobra.Command) error {
	p, err := world.ParsePath(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid path", err)
	}
	sess, err := opts.openSession(cmd, idOrName)
	if err != nil {
		return err
	}
	defer sess.Close()

	v := view.New(sess.engine.Game())
	placed, err := v.MachinesAtDepth(p)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("no region at %s", path), err)
	}
	result := ShowResult{Save: sess.engine.Info().Name, Path: p.String(), Machines: placed}
	if opts.Time >= 0 {
		result.Visuals = v.MomentaryVisuals(opts.Time)
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %d machines\n", result.Save, result.Path, len(placed))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tTYPE\tSTATE\tSINCE")
		for _, m := range placed {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.Path, m.Type, m.State, m.StartTime)
		}
		tw.Flush()
		if result.Visuals != nil {
			fmt.Fprintf(w, "at %d:\n", opts.Time)
			for _, mv := range result.Visuals {
				fmt.Fprintf(w, "  %s %s %s materials=%d\n", mv.Path, mv.Type, mv.State, len(mv.Materials))
			}
		}
	})
}

// CatalogEntry describes one preset.
type CatalogEntry struct {
	Name   string       `json:"name"`
	Kind   string       `json:"kind"`
	Radius int64        `json:"radius"`
	Cost   flow.Amounts `json:"cost"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List buildable presets",
		Long: `List the presets of the configured catalog with their build costs.
Set catalog in the config file to use a CUE file instead of the built-in
presets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	c, err := opts.catalog()
	if err != nil {
		return err
	}
	entries := make([]CatalogEntry, 0, c.Len())
	for i := range c.Len() {
		p, _ := c.Preset(i)
		entries = append(entries, CatalogEntry{
			Name:   p.Type.Name,
			Kind:   p.Type.Kind.String(),
			Radius: p.Type.Radius,
			Cost:   p.Cost,
		})
	}
	return opts.formatter(cmd).Success(entries, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tRADIUS\tCOST")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Name, e.Kind, e.Radius, formatAmounts(e.Cost))
		}
		tw.Flush()
	})
}
