package game

import (
	"errors"
	"fmt"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/world"
)

// EditError reports an edit rejected before any mutation. The game is
// unchanged when an edit returns one.
type EditError struct {
	// Code identifies the error category.
	Code EditErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the region or machine path the edit addressed.
	Path world.Path

	// Missing lists the shortfall of an INSUFFICIENT_INVENTORY error.
	Missing flow.Amounts

	// Err is the underlying cause, if any.
	Err error
}

// EditErrorCode categorizes edit errors.
type EditErrorCode string

const (
	// ErrCodeInsufficientInventory indicates the player cannot pay for the edit.
	ErrCodeInsufficientInventory EditErrorCode = "INSUFFICIENT_INVENTORY"

	// ErrCodeOverlap indicates the new machine would overlap another.
	ErrCodeOverlap EditErrorCode = "OVERLAP"

	// ErrCodeOutOfBounds indicates the new machine would leave its region.
	ErrCodeOutOfBounds EditErrorCode = "OUT_OF_BOUNDS"

	// ErrCodeInvalidPath indicates the path does not lead to a region or machine.
	ErrCodeInvalidPath EditErrorCode = "INVALID_PATH"

	// ErrCodeUnknownType indicates a preset or module that does not exist.
	ErrCodeUnknownType EditErrorCode = "UNKNOWN_TYPE"

	// ErrCodeRegionFull indicates the region already holds MaxComponentsPerRegion machines.
	ErrCodeRegionFull EditErrorCode = "REGION_FULL"

	// ErrCodeRecursiveModule indicates a module would end up containing itself.
	ErrCodeRecursiveModule EditErrorCode = "RECURSIVE_MODULE"

	// ErrCodeInvalidModule indicates a new module definition with a bad name or radius.
	ErrCodeInvalidModule EditErrorCode = "INVALID_MODULE"

	// ErrCodeTimeReversed indicates an edit earlier than the last change.
	ErrCodeTimeReversed EditErrorCode = "TIME_REVERSED"

	// ErrCodeNothingToUndo indicates an empty undo stack.
	ErrCodeNothingToUndo EditErrorCode = "NOTHING_TO_UNDO"

	// ErrCodeNothingToRedo indicates an empty redo stack.
	ErrCodeNothingToRedo EditErrorCode = "NOTHING_TO_REDO"
)

// Error implements the error interface.
func (e *EditError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != nil {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EditError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an EditError anywhere in err's chain, or "".
func CodeOf(err error) EditErrorCode {
	var ee *EditError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsInsufficientInventory reports whether err is an INSUFFICIENT_INVENTORY error.
func IsInsufficientInventory(err error) bool {
	return CodeOf(err) == ErrCodeInsufficientInventory
}

// IsOverlap reports whether err is an OVERLAP error.
func IsOverlap(err error) bool {
	return CodeOf(err) == ErrCodeOverlap
}

// IsOutOfBounds reports whether err is an OUT_OF_BOUNDS error.
func IsOutOfBounds(err error) bool {
	return CodeOf(err) == ErrCodeOutOfBounds
}

// IsInvalidPath reports whether err is an INVALID_PATH error.
func IsInvalidPath(err error) bool {
	return CodeOf(err) == ErrCodeInvalidPath
}

func newInvalidPath(p world.Path, err error) *EditError {
	return &EditError{Code: ErrCodeInvalidPath, Message: "path does not resolve", Path: p, Err: err}
}

func newInsufficient(p world.Path, need, have flow.Amounts) *EditError {
	return &EditError{
		Code:    ErrCodeInsufficientInventory,
		Message: fmt.Sprintf("edit costs %s", formatAmounts(need)),
		Path:    p,
		Missing: have.Shortfall(need),
	}
}

func formatAmounts(a flow.Amounts) string {
	if len(a) == 0 {
		return "nothing"
	}
	s := ""
	for _, m := range flow.Materials() {
		if n, ok := a[m]; ok {
			if s != "" {
				s += ", "
			}
			s += fmt.Sprintf("%d %s", n, m)
		}
	}
	return s
}
