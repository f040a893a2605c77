package model

// State describes where a download task is in its lifecycle. Transitions are
// monotonic: a task only ever moves forward through Created, Header, Data and
// into exactly one of the terminal states.
type State int

// Download lifecycle states.
const (
	// StateCreated is the initial state before Execute is called.
	StateCreated State = iota
	// StateHeader means the request is in flight and headers are being read.
	StateHeader
	// StateData means response bytes are streaming to the target sink.
	StateData
	// StateCompleted means all bytes were written and verified.
	StateCompleted
	// StateFailed means the download ended with an error.
	StateFailed
	// StateCancelled means the caller aborted the download.
	StateCancelled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateHeader:
		return "header"
	case StateData:
		return "data"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
