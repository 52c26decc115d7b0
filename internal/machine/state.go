package machine

import "fmt"

// OperatingState describes whether and why a machine is producing. These
// are results shown to the player, never errors.
type OperatingState uint8

const (
	Operating OperatingState = iota
	WaitingForInput
	InputMissing
	InputIncompatible
	InputTooInfrequent
	InCycle
)

var stateNames = [...]string{
	Operating:          "operating",
	WaitingForInput:    "waiting_for_input",
	InputMissing:       "input_missing",
	InputIncompatible:  "input_incompatible",
	InputTooInfrequent: "input_too_infrequent",
	InCycle:            "in_cycle",
}

func (s OperatingState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// IsFailure reports whether s means the machine has no future.
func (s OperatingState) IsFailure() bool {
	return s >= InputMissing
}

// MarshalText implements encoding.TextMarshaler.
func (s OperatingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OperatingState) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = OperatingState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown operating state %q", string(b))
}
