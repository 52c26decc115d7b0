package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/store"
)

// NewOptions holds flags for the new command.
type NewOptions struct {
	*RootOptions

	// IDs overrides the save ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.IDGenerator
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NewOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty save",
		Long: `Create a save holding an empty map and the configured starting
inventory.

Examples:
  flowgrid new factory
  flowgrid new factory --db ./saves.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(opts, args[0], cmd)
		},
	}
}

func runNew(opts *NewOptions, name string, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	c, err := opts.catalog()
	if err != nil {
		return err
	}
	engineOpts, err := opts.engineOptions()
	if err != nil {
		return err
	}

	ids := opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	e, err := engine.Create(cmd.Context(), st, c, name, ids, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to create save %q", name), err)
	}

	info := e.Info()
	return opts.formatter(cmd).Success(info, func(w io.Writer) {
		fmt.Fprintf(w, "Created save %s (%s)\n", info.Name, info.ID)
	})
}

// NewSavesCommand creates the saves command.
func NewSavesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "saves",
		Short: "List saves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaves(rootOpts, cmd)
		},
	}
}

func runSaves(opts *RootOptions, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	saves, err := st.ListSaves(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list saves", err)
	}
	return opts.formatter(cmd).Success(saves, func(w io.Writer) {
		writeSaves(w, saves)
	})
}

func writeSaves(w io.Writer, saves []store.SaveInfo) {
	if len(saves) == 0 {
		fmt.Fprintln(w, "No saves found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tREVISION\tJOURNAL")
	for _, s := range saves {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Name, s.ID, s.Revision, s.JournalSeq)
	}
	tw.Flush()
}
