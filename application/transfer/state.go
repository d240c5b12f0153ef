package transfer

// State is a step in a single task's lifecycle. Tasks only move forward:
// Pending -> Staging -> Reading -> Writing -> Succeeded | Failed.
type State int

const (
	StatePending State = iota
	StateStaging
	StateReading
	StateWriting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStaging:
		return "staging"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
