package connmgr

import "github.com/specialistvlad/imageburst/internal/wire"

// Observer receives connection lifecycle notifications. connID identifies
// the connection the event belongs to.
type Observer interface {
	OnOpen(connID uint64)
	OnMessage(connID uint64, f wire.Frame)
	OnClose(connID uint64)
	OnError(connID uint64, err error)
}

// ObserverFuncs adapts optional functions to the Observer interface.
type ObserverFuncs struct {
	Open    func(connID uint64)
	Message func(connID uint64, f wire.Frame)
	Close   func(connID uint64)
	Error   func(connID uint64, err error)
}

func (o ObserverFuncs) OnOpen(connID uint64) {
	if o.Open != nil {
		o.Open(connID)
	}
}

func (o ObserverFuncs) OnMessage(connID uint64, f wire.Frame) {
	if o.Message != nil {
		o.Message(connID, f)
	}
}

func (o ObserverFuncs) OnClose(connID uint64) {
	if o.Close != nil {
		o.Close(connID)
	}
}

func (o ObserverFuncs) OnError(connID uint64, err error) {
	if o.Error != nil {
		o.Error(connID, err)
	}
}
