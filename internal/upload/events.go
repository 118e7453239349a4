package upload

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType names a session notification.
type EventType string

const (
	EventConnecting  EventType = "connecting"
	EventHeaderSent  EventType = "header_sent"
	EventPayloadSent EventType = "payload_sent"
	EventAck         EventType = "ack"
	EventClosed      EventType = "closed"
	EventError       EventType = "error"
)

// Event is one notification delivered to observers.
type Event struct {
	Type    EventType
	BatchID uuid.UUID
	// ConnID is the connection the event happened on, 0 if none.
	ConnID uint64

	// Count is the batch size, set on header_sent.
	Count int
	// Index, Name and Bytes describe the image on payload_sent.
	Index int
	Name  string
	Bytes int

	// Message is the raw frame payload on ack.
	Message []byte
	// Err is the failure reason on error.
	Err error
}

func (e Event) String() string {
	switch e.Type {
	case EventPayloadSent:
		return fmt.Sprintf("%s(%d)", e.Type, e.Index)
	case EventError:
		return fmt.Sprintf("%s(%v)", e.Type, e.Err)
	default:
		return string(e.Type)
	}
}

// Observer receives session events. Calls are serialized; HandleEvent must
// not call Submit.
type Observer interface {
	HandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleEvent(e Event) { f(e) }
