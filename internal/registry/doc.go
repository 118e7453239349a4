// Package registry provides the central "glue" for the transport system.
//
// The Registry maps the transport names used in configuration (e.g.
// "websocket", "socketio") to the Go constructors that build a
// transport.Dialer. Each transport package exposes a Module that registers
// itself; the application registers the core modules at startup and
// resolves the configured name once, so an unknown transport is reported as
// a configuration error before any connection is attempted.
package registry
