package upload

import "fmt"

// Phase is the coarse position of a Session in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	// Connecting is entered as soon as a batch is accepted.
	Connecting
	// AwaitingOpen means a new connection is being dialed for the batch.
	AwaitingOpen
	SendingHeader
	SendingPayloads
	// Closed means the connection closed while no batch was active.
	Closed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case AwaitingOpen:
		return "awaiting_open"
	case SendingHeader:
		return "sending_header"
	case SendingPayloads:
		return "sending_payloads"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of a Session. Index is meaningful only in
// SendingPayloads and Reason only in Failed.
type State struct {
	Phase  Phase
	Index  int
	Reason error
}

func (s State) String() string {
	switch s.Phase {
	case SendingPayloads:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Index)
	case Failed:
		if s.Reason != nil {
			return fmt.Sprintf("%s(%v)", s.Phase, s.Reason)
		}
	}
	return s.Phase.String()
}

// accepting reports whether a new batch may start from this state.
func (s State) accepting() bool {
	switch s.Phase {
	case Idle, Closed, Failed:
		return true
	default:
		return false
	}
}
