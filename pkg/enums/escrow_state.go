package enums

import "fmt"

// EscrowState tracks the funds authorized for a single order.
type EscrowState string

const (
	EscrowStateHeld          EscrowState = "held"
	EscrowStateReleased      EscrowState = "released"
	EscrowStateRefunded      EscrowState = "refunded"
	EscrowStateReleaseFailed EscrowState = "release_failed"
	EscrowStateRefundFailed  EscrowState = "refund_failed"
)

var validEscrowStates = []EscrowState{
	EscrowStateHeld,
	EscrowStateReleased,
	EscrowStateRefunded,
	EscrowStateReleaseFailed,
	EscrowStateRefundFailed,
}

var escrowTransitions = map[EscrowState][]EscrowState{
	EscrowStateHeld:          {EscrowStateReleased, EscrowStateRefunded, EscrowStateReleaseFailed, EscrowStateRefundFailed},
	EscrowStateReleaseFailed: {EscrowStateReleased, EscrowStateReleaseFailed},
	EscrowStateRefundFailed:  {EscrowStateRefunded, EscrowStateRefundFailed},
}

// String implements fmt.Stringer.
func (e EscrowState) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowState.
func (e EscrowState) IsValid() bool {
	for _, candidate := range validEscrowStates {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further gateway call may touch the funds.
func (e EscrowState) IsTerminal() bool {
	return e == EscrowStateReleased || e == EscrowStateRefunded
}

// CanTransitionTo reports whether next is a legal successor of e.
func (e EscrowState) CanTransitionTo(next EscrowState) bool {
	for _, candidate := range escrowTransitions[e] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseEscrowState converts raw input into an EscrowState.
func ParseEscrowState(value string) (EscrowState, error) {
	for _, candidate := range validEscrowStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow state %q", value)
}
