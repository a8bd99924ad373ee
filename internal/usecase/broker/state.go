package broker

// State is a step of the Ask state machine.
type State int

// Ask states. Denied and Failed are terminal non-success states.
const (
	StateValidating State = iota
	StateAuthorizing
	StateComposing
	StateCalling
	StateRecording
	StateDone
	StateDenied
	StateFailed
)

var stateNames = [...]string{
	StateValidating:  "validating",
	StateAuthorizing: "authorizing",
	StateComposing:   "composing",
	StateCalling:     "calling",
	StateRecording:   "recording",
	StateDone:        "done",
	StateDenied:      "denied",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition follows s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateDenied || s == StateFailed
}
