// Package transport defines the socket abstraction the connection manager
// drives. Concrete transports live in sub-packages and are selected by name
// through the registry.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/specialistvlad/imageburst/internal/wire"
)

// ErrClosed is returned by Socket.Read when the peer closed the connection
// cleanly. Any other Read error is treated as a transport failure.
var ErrClosed = errors.New("socket closed")

// Default transport settings.
const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 16 * 1024 * 1024 // 16MB
)

// Config holds the settings shared by all transports.
type Config struct {
	// URL is the fixed endpoint, e.g. wss://host:8000/ws.
	URL string
	// Headers are sent during the opening handshake.
	Headers http.Header
	// DialTimeout bounds the opening handshake.
	DialTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// MaxMessageSize limits incoming frames.
	MaxMessageSize int64
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Namespace is the Socket.IO namespace. Ignored by other transports.
	Namespace string
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Namespace == "" {
		c.Namespace = "/"
	}
	return c
}

// Dialer opens sockets to a fixed endpoint.
type Dialer interface {
	// Dial blocks until the socket is open or the attempt fails.
	Dial(ctx context.Context) (Socket, error)
}

// Socket is one open, bidirectional, frame-oriented connection.
//
// Write may be called by one goroutine at a time; Read is called only by the
// connection manager's reader goroutine. Close unblocks a pending Read.
type Socket interface {
	Write(ctx context.Context, f wire.Frame) error
	Read() (wire.Frame, error)
	Close() error
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Socket, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Socket, error) { return f(ctx) }
