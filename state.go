package reconnws

import "fmt"

// State is the manager-visible connection state. Exactly one value holds at
// any instant.
type State int

const (
	// StateUnknown is intentionally the zero value, so a Manager initialized
	// in an unexpected way is detectable.
	StateUnknown State = iota

	// StateClosed is the initial state, and the terminal state after a forced
	// close or retry exhaustion. Open() leaves it.
	StateClosed

	// StateConnecting means an attempt is in flight or a retry is scheduled.
	StateConnecting

	// StateOpen means the handshake completed and Send is accepted.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateClosed:
		return "Closed"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateClosed:
		if newState == StateConnecting {
			return nil
		}
	case StateConnecting:
		switch newState {
		// Connecting to Connecting happens when a scheduled retry starts the
		// next attempt.
		case StateConnecting, StateOpen, StateClosed:
			return nil
		}
	case StateOpen:
		switch newState {
		case StateConnecting, StateClosed:
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
