package connmgr

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a connection.
type State int

const (
	Unopened State = iota
	Connecting
	Open
	Closed
	Errored
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidState is returned when Send is called without an open
// connection. It signals misuse by the caller, not a transport failure.
var ErrInvalidState = errors.New("connection is not open")

// ConnectionError reports a failed open or a transport failure on an open
// connection. The connection it refers to is no longer usable.
type ConnectionError struct {
	// Op is "dial" or "send".
	Op string
	// ConnID identifies the connection, 0 if none was established.
	ConnID uint64
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
