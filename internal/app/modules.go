package app

import (
	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/transport/socketio"
	"github.com/specialistvlad/imageburst/internal/transport/websocket"
)

// coreModules is the definitive list of all transports that are compiled
// into the imageburst binary.
var coreModules = []registry.Module{
	websocket.Module{},
	socketio.Module{},
}
