package cli

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/queryir"
	"github.com/roach88/flowgrid/internal/store"
	"github.com/roach88/flowgrid/internal/world"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Kinds []string
	Path  string
	From  int64
	To    int64
	Limit int
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "journal <save>",
		Short: "List journaled edits",
		Long: `List the accepted edits of a save in journal order, optionally
filtered by kind, game time range and path.

Examples:
  flowgrid journal factory
  flowgrid journal factory --kind build,remove --from 0 --to 3600
  flowgrid journal factory --path "/(4,0)" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "edit kinds to include (build, remove, rotate, module, undo, redo)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "only edits addressing this path")
	cmd.Flags().Int64Var(&opts.From, "from", -1, "only edits at or after this game time")
	cmd.Flags().Int64Var(&opts.To, "to", -1, "only edits before this game time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	return cmd
}

var editKinds = []game.EditKind{
	game.EditBuild, game.EditRemove, game.EditRotate, game.EditModule, game.EditUndo, game.EditRedo,
}

// query builds the journal query for saveID from the flags.
func (o *JournalOptions) query(saveID string) (queryir.Select, error) {
	var preds []queryir.Predicate
	if len(o.Kinds) > 0 {
		values := make([]ir.Value, len(o.Kinds))
		for i, k := range o.Kinds {
			if !slices.Contains(editKinds, game.EditKind(k)) {
				return queryir.Select{}, fmt.Errorf("unknown edit kind %q", k)
			}
			values[i] = ir.String(k)
		}
		preds = append(preds, queryir.In{Field: queryir.FieldKind, Values: values})
	}
	if o.Path != "" {
		p, err := world.ParsePath(o.Path)
		if err != nil {
			return queryir.Select{}, err
		}
		preds = append(preds, queryir.Equals{Field: queryir.FieldPath, Value: ir.String(p.String())})
	}
	if o.From >= 0 || o.To >= 0 {
		r := queryir.Range{Field: queryir.FieldTime}
		if o.From >= 0 {
			r.From = queryir.Bound(o.From)
		}
		if o.To >= 0 {
			r.To = queryir.Bound(o.To)
		}
		preds = append(preds, r)
	}

	q := queryir.Select{Save: saveID, Limit: o.Limit}
	if len(preds) > 0 {
		q.Filter = queryir.And{Predicates: preds}
	}
	return q, queryir.Validate(q)
}

func runJournal(opts *JournalOptions, idOrName string, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	info, _, err := st.LoadSave(cmd.Context(), idOrName)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load save %q", idOrName), err)
	}
	q, err := opts.query(info.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	entries, err := st.QueryJournal(cmd.Context(), q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	return opts.formatter(cmd).Success(entries, func(w io.Writer) {
		writeJournal(w, entries)
	})
}

func writeJournal(w io.Writer, entries []store.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tTIME\tEDIT")
	for _, e := range entries {
		t := fmt.Sprint(e.Edit.Time)
		if e.Edit.Kind == game.EditUndo || e.Edit.Kind == game.EditRedo {
			t = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.Edit.Kind, t, e.Edit)
	}
	tw.Flush()
}
