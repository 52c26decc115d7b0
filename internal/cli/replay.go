package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/store"
)

// ReplaySaveResult holds the replay result for a single save.
type ReplaySaveResult struct {
	Save          string `json:"save"`
	ID            string `json:"id"`
	Applied       int    `json:"applied"`
	LastSeq       int64  `json:"last_seq"`
	Digest        string `json:"digest,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Saves            []ReplaySaveResult `json:"saves"`
	TotalSaves       int                `json:"total_saves"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [save]",
		Short: "Replay journals and verify determinism",
		Long: `Replay the journal of a save, or of every save, on top of its save
document and verify that each entry reproduces the game digest recorded
with it. Each save is replayed twice and the final digests compared.

Exit codes:
  0 - All saves replay deterministically
  1 - A journal entry diverged or the two replays disagree
  2 - Command error (database not found, etc.)

Examples:
  flowgrid replay factory
  flowgrid replay --db ./saves.db --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args, cmd)
		},
	}
}

func runReplay(opts *RootOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	c, err := opts.catalog()
	if err != nil {
		return err
	}
	gameOpts, err := opts.Config.GameOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	gameOpts = append(gameOpts, game.WithLogger(opts.Logger))

	var saves []string
	if len(args) == 1 {
		saves = args
	} else {
		infos, err := st.ListSaves(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list saves", err)
		}
		for _, info := range infos {
			saves = append(saves, info.ID)
		}
	}

	result := ReplayResult{
		Saves:            make([]ReplaySaveResult, 0, len(saves)),
		TotalSaves:       len(saves),
		AllDeterministic: true,
	}
	for _, idOrName := range saves {
		r, err := replayAndVerifySave(ctx, st, c, idOrName, gameOpts)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay save %s", idOrName), err)
		}
		opts.Logger.Debug("save replayed", "save", r.ID, "applied", r.Applied, "deterministic", r.Deterministic)
		result.Saves = append(result.Saves, r)
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	err = opts.formatter(cmd).Success(result, func(w io.Writer) {
		writeReplayText(w, result, opts.Verbose)
	})
	if err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// replayAndVerifySave replays a save twice. A journal divergence is a
// result, not an error; errors are reserved for saves that cannot be read.
func replayAndVerifySave(ctx context.Context, st *store.Store, c *catalog.Catalog, idOrName string, gameOpts []game.Option) (ReplaySaveResult, error) {
	_, first, err := engine.Replay(ctx, st, c, idOrName, gameOpts...)
	if engine.IsReplayError(err) {
		info, _, lerr := st.LoadSave(ctx, idOrName)
		if lerr != nil {
			return ReplaySaveResult{}, lerr
		}
		return ReplaySaveResult{Save: info.Name, ID: info.ID, Error: err.Error()}, nil
	}
	if err != nil {
		return ReplaySaveResult{}, err
	}

	_, second, err := engine.Replay(ctx, st, c, idOrName, gameOpts...)
	if err != nil {
		return ReplaySaveResult{}, fmt.Errorf("second replay failed: %w", err)
	}

	r := ReplaySaveResult{
		Save:          first.Save.Name,
		ID:            first.Save.ID,
		Applied:       first.Applied,
		LastSeq:       first.LastSeq,
		Digest:        first.Digest,
		Deterministic: first.Digest == second.Digest && first.LastSeq == second.LastSeq,
	}
	if !r.Deterministic {
		r.Error = fmt.Sprintf("replays disagree: %s then %s", first.Digest, second.Digest)
	}
	return r, nil
}

func writeReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.TotalSaves == 0 {
		fmt.Fprintln(w, "No saves found in database.")
		return
	}
	for _, s := range result.Saves {
		status := "OK"
		if !s.Deterministic {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-4s %s: %d edits replayed, journal at seq %d\n", status, s.Save, s.Applied, s.LastSeq)
		if s.Error != "" {
			fmt.Fprintf(w, "     %s\n", s.Error)
		} else if verbose {
			fmt.Fprintf(w, "     digest %s\n", s.Digest)
		}
	}
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d saves replay deterministically.\n", result.TotalSaves)
	}
}
