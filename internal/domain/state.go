package domain

// SessionState is the transfer protocol state.
type SessionState int

const (
	// StateSelectPanel waits for SELECT:<name>. No timeout applies; the
	// operator may take as long as they like.
	StateSelectPanel SessionState = iota

	// StateAwaitStart waits for the BMPStart marker. No timeout applies.
	StateAwaitStart

	// StateAwaitSize waits for SIZE:<w>,<h>. Subject to the inactivity timeout.
	StateAwaitSize

	// StateReceiving consumes raw pixel bytes. Subject to the inactivity timeout.
	StateReceiving

	// StateAwaitEnd waits for the BMPEnd marker. Subject to the inactivity timeout.
	StateAwaitEnd

	// StateComplete is transient: it loops straight back to StateAwaitStart,
	// keeping the selected panel so repeated transfers need no re-select.
	StateComplete
)

func (s SessionState) String() string {
	switch s {
	case StateSelectPanel:
		return "SelectPanel"
	case StateAwaitStart:
		return "AwaitStart"
	case StateAwaitSize:
		return "AwaitSize"
	case StateReceiving:
		return "Receiving"
	case StateAwaitEnd:
		return "AwaitEnd"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// TimeoutApplies reports whether the inactivity timeout covers this state.
// Selection, start-marker wait, and the completed state are exempt:
// unbounded user think-time is acceptable there.
func (s SessionState) TimeoutApplies() bool {
	return s == StateAwaitSize || s == StateReceiving || s == StateAwaitEnd
}
