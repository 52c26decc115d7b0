// Package engine runs a flowgrid game as a persistent session.
//
// A session owns one game and one save. Edits are submitted from any
// goroutine and applied in FIFO order by a single Run loop, so the game is
// never touched concurrently.
//
// Every accepted edit is journaled with the digest of the resulting game
// state before the submitter is answered. Rejected edits leave the game
// unchanged and are not journaled. The save document is rewritten every
// few edits and when the loop stops; loading a save replays the journal
// entries written after its last document.
//
// CRITICAL PATTERNS:
//
// Logical clock:
// The session version counts accepted edits. Watchers compare versions,
// never wall-clock times.
//
// Verified replay:
// Replaying a journal entry must reproduce the game digest recorded with
// it. A mismatch stops the load instead of continuing from a state that
// diverged.
package engine
