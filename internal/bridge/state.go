package bridge

// State is the bridge lifecycle state. Transitions only move forward:
// Connecting, then Running, then Terminated.
type State int32

const (
	StateConnecting State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason records why a bridge stopped.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonShellExited
	ReasonStreamClosed
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonShellExited:
		return "shell exited"
	case ReasonStreamClosed:
		return "stream closed"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "none"
	}
}
