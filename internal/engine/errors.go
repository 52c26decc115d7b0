package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flowgrid/internal/game"
)

// ErrStopped reports an event submitted to a session whose loop has
// stopped.
var ErrStopped = errors.New("session stopped")

// ReplayError reports a journal entry that could not be reproduced.
//
// Either the edit failed on replay (Err is set) or it produced a game state
// whose digest differs from the one journaled with it (Want and Got are
// set). A Seq equal to the save's journal position means the save document
// itself does not match its recorded digest.
type ReplayError struct {
	SaveID string
	Seq    int64
	Edit   game.Edit
	Want   string
	Got    string
	Err    error
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("replay %s at seq %d (%s): %v", e.SaveID, e.Seq, e.Edit, e.Err)
	}
	return fmt.Sprintf("replay %s at seq %d (%s): digest %s, journal recorded %s",
		e.SaveID, e.Seq, e.Edit, short(e.Got), short(e.Want))
}

// Unwrap returns the edit error, if any.
func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsReplayError returns true if err is or wraps a ReplayError.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
