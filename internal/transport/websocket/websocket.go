// Package websocket implements transport.Dialer over a plain WebSocket
// connection using gorilla/websocket. Text and binary frames map one-to-one
// onto WebSocket text and binary messages.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
)

// Name is the registry name of this transport.
const Name = "websocket"

// closeGracePeriod is the deadline for writing the close frame.
const closeGracePeriod = 2 * time.Second

// Dialer opens WebSocket connections to a fixed URL.
type Dialer struct {
	cfg    transport.Config
	logger *slog.Logger
}

// NewDialer creates a Dialer. Zero config values are replaced by defaults.
func NewDialer(cfg transport.Config, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		cfg:    cfg.WithDefaults(),
		logger: logger.With("transport", Name, "url", cfg.URL),
	}
}

// Dial performs the WebSocket handshake.
func (d *Dialer) Dial(ctx context.Context) (transport.Socket, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.cfg.InsecureSkipVerify {
		d.logger.Warn("Skipping TLS certificate verification")
		tlsCfg.InsecureSkipVerify = true
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.DialTimeout,
		TLSClientConfig:  tlsCfg,
	}

	d.logger.Debug("Dialing WebSocket endpoint.")
	conn, resp, err := dialer.DialContext(ctx, d.cfg.URL, d.cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			d.logger.Debug("WebSocket handshake rejected.", "status", resp.StatusCode)
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	conn.SetReadLimit(d.cfg.MaxMessageSize)
	d.logger.Debug("WebSocket handshake complete.")

	return &Socket{conn: conn, writeTimeout: d.cfg.WriteTimeout}, nil
}

// Socket is an open WebSocket connection.
type Socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex // gorilla/websocket allows one concurrent writer
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Write sends f as a single WebSocket message.
func (s *Socket) Write(ctx context.Context, f wire.Frame) error {
	var msgType int
	switch f.Kind {
	case wire.Text:
		msgType = websocket.TextMessage
	case wire.Binary:
		msgType = websocket.BinaryMessage
	default:
		return fmt.Errorf("unsupported frame kind %s", f.Kind)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return transport.ErrClosed
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(msgType, f.Payload); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", f.Kind, err)
	}
	return nil
}

// Read blocks until the next text or binary message arrives.
func (s *Socket) Read() (wire.Frame, error) {
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		if s.closed.Load() || websocket.IsCloseError(err,
			websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return wire.Frame{}, transport.ErrClosed
		}
		return wire.Frame{}, err
	}
	switch msgType {
	case websocket.TextMessage:
		return wire.Frame{Kind: wire.Text, Payload: data}, nil
	case websocket.BinaryMessage:
		return wire.Frame{Kind: wire.Binary, Payload: data}, nil
	default:
		return wire.Frame{}, fmt.Errorf("unexpected message type: %d", msgType)
	}
}

// Close sends a normal-closure frame and closes the connection. Safe to call
// multiple times.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
		_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
		s.writeMu.Unlock()

		if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// Module registers this transport with a registry.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterTransport(Name, func(cfg transport.Config, logger *slog.Logger) transport.Dialer {
		return NewDialer(cfg, logger)
	})
}
