package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/ir"
	"github.com/roach88/flowgrid/internal/queryir"
	"github.com/roach88/flowgrid/internal/querysql"
)

// JournalEntry is one accepted edit.
type JournalEntry struct {
	Seq    int64     `json:"seq"`
	SaveID string    `json:"save_id"`
	Edit   game.Edit `json:"edit"`
	// GameDigest identifies the game state after the edit was applied.
	GameDigest string `json:"game_digest"`
}

// AppendEdit journals an edit that was applied to the save's game and
// returns its sequence number.
func (s *Store) AppendEdit(ctx context.Context, saveID string, e game.Edit, gameDigest string) (int64, error) {
	payload, err := ir.Canonical(e)
	if err != nil {
		return 0, fmt.Errorf("append edit: %w", err)
	}
	editDigest, err := ir.EditDigest(e)
	if err != nil {
		return 0, fmt.Errorf("append edit: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journal
		(save_id, kind, time, path, payload, edit_digest, game_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		saveID,
		string(e.Kind),
		e.Time,
		e.Path.String(),
		string(payload),
		editDigest,
		gameDigest,
	)
	if err != nil {
		return 0, fmt.Errorf("append edit to %s: %w", saveID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append edit to %s: %w", saveID, err)
	}
	return seq, nil
}

// ReadJournal returns the entries of a save after afterSeq, oldest first.
func (s *Store) ReadJournal(ctx context.Context, saveID string, afterSeq int64) ([]JournalEntry, error) {
	return s.QueryJournal(ctx, queryir.Select{
		Save:   saveID,
		Filter: queryir.Range{Field: queryir.FieldSeq, From: queryir.Bound(afterSeq + 1)},
	})
}

// QueryJournal runs a compiled journal query.
func (s *Store) QueryJournal(ctx context.Context, q queryir.Query) ([]JournalEntry, error) {
	query, params, err := querysql.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// scanJournalEntry reads one row in querysql.Columns order.
func scanJournalEntry(rows *sql.Rows) (JournalEntry, error) {
	var (
		entry      JournalEntry
		kind, path string
		time       int64
		payload    string
	)
	if err := rows.Scan(&entry.Seq, &entry.SaveID, &kind, &time, &path, &payload, &entry.GameDigest); err != nil {
		return JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &entry.Edit); err != nil {
		return JournalEntry{}, fmt.Errorf("decode journal entry %d: %w", entry.Seq, err)
	}
	if string(entry.Edit.Kind) != kind || entry.Edit.Time != time || entry.Edit.Path.String() != path {
		return JournalEntry{}, fmt.Errorf("journal entry %d: columns disagree with payload", entry.Seq)
	}
	return entry, nil
}
