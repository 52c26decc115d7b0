// Package store provides SQLite-backed durable storage for flowgrid games.
//
// The store holds two tables:
//   - saves: one zstd-compressed canonical JSON document per named game
//   - journal: the append-only log of accepted edits per save
//
// A save document records the journal position it reflects. Loading a save
// replays any journal entries written after it, so a crash between
// autosaves loses nothing that was journaled.
//
// # Critical Patterns
//
// Logical ordering: journal entries are ordered by seq, never by wall-clock
// time. Every journal query ends in ORDER BY seq (see querysql).
//
// Derived data is never stored: futures are recomputed on load.
//
// Documents are validated against an embedded JSON schema before they are
// decoded, whether they come from the database or an imported file.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: journal entries die with their save
package store
