package engine

import (
	"context"
	"fmt"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/store"
)

// ReplayResult summarizes a load.
type ReplayResult struct {
	Save store.SaveInfo
	// Applied counts journal entries replayed on top of the save document.
	Applied int
	// LastSeq is the journal position of the returned game.
	LastSeq int64
	// Digest is the game digest after replay.
	Digest string
}

// Replay loads a save and re-applies the journal entries written after its
// document, checking every entry reproduces its recorded game digest.
//
// Normal loading and verification follow the same path; there is no
// separate recovery mode.
func Replay(ctx context.Context, s *store.Store, c *catalog.Catalog, idOrName string, opts ...game.Option) (*game.Game, ReplayResult, error) {
	info, doc, err := s.LoadSave(ctx, idOrName)
	if err != nil {
		return nil, ReplayResult{}, err
	}
	g, err := doc.Restore(c, opts...)
	if err != nil {
		return nil, ReplayResult{}, fmt.Errorf("restore %s: %w", info.ID, err)
	}

	digest, err := ir.GameDigest(g.State())
	if err != nil {
		return nil, ReplayResult{}, err
	}
	if digest != info.Digest {
		return nil, ReplayResult{}, &ReplayError{SaveID: info.ID, Seq: info.JournalSeq, Want: info.Digest, Got: digest}
	}

	entries, err := s.ReadJournal(ctx, info.ID, info.JournalSeq)
	if err != nil {
		return nil, ReplayResult{}, err
	}

	res := ReplayResult{Save: info, LastSeq: info.JournalSeq, Digest: digest}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, ReplayResult{}, err
		}
		if err := g.Apply(entry.Edit); err != nil {
			return nil, ReplayResult{}, &ReplayError{SaveID: info.ID, Seq: entry.Seq, Edit: entry.Edit, Err: err}
		}
		got, err := ir.GameDigest(g.State())
		if err != nil {
			return nil, ReplayResult{}, err
		}
		if got != entry.GameDigest {
			return nil, ReplayResult{}, &ReplayError{SaveID: info.ID, Seq: entry.Seq, Edit: entry.Edit, Want: entry.GameDigest, Got: got}
		}
		res.Applied++
		res.LastSeq = entry.Seq
		res.Digest = got
	}
	return g, res, nil
}
