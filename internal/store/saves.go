package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveInfo describes a stored save without its document.
type SaveInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Digest        string `json:"digest"`
	CatalogDigest string `json:"catalog_digest"`
	EngineVersion string `json:"engine_version"`
	// Revision counts document writes, starting at 1.
	Revision int64 `json:"revision"`
	// JournalSeq is the last journal entry the document reflects.
	JournalSeq int64 `json:"journal_seq"`
}

// CreateSave inserts a new save. Names are unique.
func (s *Store) CreateSave(ctx context.Context, id, name string, doc Document) (SaveInfo, error) {
	blob, digest, err := EncodeDocument(doc)
	if err != nil {
		return SaveInfo{}, fmt.Errorf("create save: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saves
		(id, name, digest, catalog_digest, format_version, engine_version, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		name,
		digest,
		doc.CatalogDigest,
		doc.FormatVersion,
		doc.EngineVersion,
		blob,
	)
	if err != nil {
		return SaveInfo{}, fmt.Errorf("create save %q: %w", name, err)
	}

	return SaveInfo{
		ID:            id,
		Name:          name,
		Digest:        digest,
		CatalogDigest: doc.CatalogDigest,
		EngineVersion: doc.EngineVersion,
		Revision:      1,
	}, nil
}

// PutSave replaces the document of an existing save. journalSeq is the last
// journal entry already folded into doc.
func (s *Store) PutSave(ctx context.Context, id string, doc Document, journalSeq int64) error {
	blob, digest, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("put save: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE saves
		SET digest = ?, catalog_digest = ?, format_version = ?, engine_version = ?,
		    document = ?, revision = revision + 1, journal_seq = ?
		WHERE id = ?
	`,
		digest,
		doc.CatalogDigest,
		doc.FormatVersion,
		doc.EngineVersion,
		blob,
		journalSeq,
		id,
	)
	if err != nil {
		return fmt.Errorf("put save %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put save %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("put save %s: %w", id, ErrNotFound)
	}
	return nil
}

// LoadSave returns the save with the given ID or name and its decoded
// document.
func (s *Store) LoadSave(ctx context.Context, idOrName string) (SaveInfo, Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, digest, catalog_digest, engine_version, revision, journal_seq, document
		FROM saves
		WHERE id = ? OR name = ?
		ORDER BY id = ? DESC
		LIMIT 1
	`, idOrName, idOrName, idOrName)

	var info SaveInfo
	var blob []byte
	err := row.Scan(&info.ID, &info.Name, &info.Digest, &info.CatalogDigest,
		&info.EngineVersion, &info.Revision, &info.JournalSeq, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveInfo{}, Document{}, fmt.Errorf("load save %q: %w", idOrName, ErrNotFound)
	}
	if err != nil {
		return SaveInfo{}, Document{}, fmt.Errorf("load save %q: %w", idOrName, err)
	}

	doc, err := DecodeDocument(blob)
	if err != nil {
		return SaveInfo{}, Document{}, fmt.Errorf("load save %q: %w", idOrName, err)
	}
	return info, doc, nil
}

// ListSaves returns every save ordered by name.
func (s *Store) ListSaves(ctx context.Context) ([]SaveInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, digest, catalog_digest, engine_version, revision, journal_seq
		FROM saves
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query saves: %w", err)
	}
	defer rows.Close()

	saves := []SaveInfo{}
	for rows.Next() {
		var info SaveInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Digest, &info.CatalogDigest,
			&info.EngineVersion, &info.Revision, &info.JournalSeq); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		saves = append(saves, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saves: %w", err)
	}
	return saves, nil
}

// DeleteSave removes a save and its journal.
func (s *Store) DeleteSave(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete save %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete save %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete save %s: %w", id, ErrNotFound)
	}
	return nil
}
