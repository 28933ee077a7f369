package subscription

import "fmt"

// transitions is the lifecycle state machine: for each status, the set of
// events that may fire and the status they lead to. Guards and side effects
// live in the engine; this table only decides legality, which keeps every
// trigger source (user call or sweep) on the same single code path.
var transitions = map[Status]map[Event]Status{
	StatusNotActive: {
		EventActivate: StatusActive,
		// A signup whose first charge never succeeded can be closed out
		// instead of lingering as a retryable stub.
		EventCancel: StatusCancelled,
	},
	StatusActive: {
		EventUpgrade: StatusActive,
		EventPause:   StatusPaused,
		EventCancel:  StatusCancelled,
		EventRenew:   StatusActive,
		EventExpire:  StatusExpired,
	},
	StatusPaused: {
		EventResume: StatusActive,
		EventCancel: StatusCancelled,
	},
	// Cancelled and expired are terminal.
	StatusCancelled: {},
	StatusExpired:   {},
}

// nextStatus resolves the target status for firing event in the current
// status. Returns ErrInvalidTransition when the event is illegal.
func nextStatus(current Status, event Event) (Status, error) {
	events, ok := transitions[current]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, current)
	}
	to, ok := events[event]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s subscription", ErrInvalidTransition, event, current)
	}
	return to, nil
}

// canFire reports whether event is legal in the current status.
func canFire(current Status, event Event) bool {
	_, err := nextStatus(current, event)
	return err == nil
}
