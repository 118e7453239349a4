// Package socketio implements transport.Dialer on top of a Socket.IO
// namespace socket. The batch header and every payload are emitted as
// "message" events on a single socket, which Socket.IO delivers in order;
// text frames travel as strings and binary frames as binary attachments.
//
// Automatic reconnection is disabled: a dropped socket is terminal and the
// connection manager decides whether to dial again.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Name is the registry name of this transport.
const Name = "socketio"

// messageEvent carries frames in both directions.
const messageEvent = "message"

// incomingBuffer is the number of server messages buffered ahead of Read.
const incomingBuffer = 64

// ErrNotConnected is returned by Write when the socket dropped without a
// local Close or a clean server disconnect.
var ErrNotConnected = errors.New("socket.io socket is not connected")

// Disconnect reasons that indicate a deliberate close rather than a failure.
var cleanReasons = map[string]bool{
	"io client disconnect": true,
	"io server disconnect": true,
}

// Dialer opens Socket.IO sockets to a fixed endpoint.
type Dialer struct {
	cfg    transport.Config
	logger *slog.Logger
}

// NewDialer creates a Dialer. Zero config values are replaced by defaults.
func NewDialer(cfg transport.Config, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	return &Dialer{
		cfg:    cfg,
		logger: logger.With("transport", Name, "url", cfg.URL, "namespace", cfg.Namespace),
	}
}

// Dial connects the namespace socket and waits for the connect event.
func (d *Dialer) Dial(ctx context.Context) (transport.Socket, error) {
	parsedURL, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("URL %q must include scheme and host", d.cfg.URL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetReconnection(false)
	opts.SetTimeout(d.cfg.DialTimeout)
	if len(d.cfg.Headers) > 0 {
		opts.SetExtraHeaders(d.cfg.Headers)
	}
	if d.cfg.InsecureSkipVerify {
		d.logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(d.cfg.Namespace, opts)

	s := newSocket(io, d.logger)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		d.logger.Debug("EVENT HANDLER: 'connect' event fired", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := argError(errs)
		d.logger.Debug("EVENT HANDLER: 'connect_error' event fired", "error", err)
		select {
		case connectChan <- err:
		default:
		}
	})

	d.logger.Debug("Initiating connection...")
	io.Connect()

	timer := time.NewTimer(d.cfg.DialTimeout)
	defer timer.Stop()

	select {
	case err := <-connectChan:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		d.logger.Debug("Socket.IO connected.", "sid", io.Id())
		return s, nil
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		s.Close()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", d.cfg.DialTimeout)
	}
}

// Socket adapts a Socket.IO namespace socket to transport.Socket.
type Socket struct {
	io     *socket.Socket
	logger *slog.Logger

	incoming chan wire.Frame
	done     chan struct{}

	closed   atomic.Bool
	termOnce sync.Once
	termErr  error
}

func newSocket(io *socket.Socket, logger *slog.Logger) *Socket {
	s := &Socket{
		io:       io,
		logger:   logger,
		incoming: make(chan wire.Frame, incomingBuffer),
		done:     make(chan struct{}),
	}
	io.On(types.EventName(messageEvent), func(args ...any) {
		f, err := frameFromArgs(args)
		if err != nil {
			s.logger.Warn("Dropping undecodable message.", "error", err)
			return
		}
		select {
		case s.incoming <- f:
		case <-s.done:
		}
	})
	io.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		s.logger.Debug("EVENT HANDLER: 'disconnect' event fired", "reason", reason)
		if cleanReasons[reason] {
			s.terminate(transport.ErrClosed)
			return
		}
		s.terminate(fmt.Errorf("socket.io disconnected: %s", reason))
	})
	return s
}

func (s *Socket) terminate(err error) {
	s.termOnce.Do(func() {
		s.termErr = err
		close(s.done)
	})
}

// notConnected is the Write error once the underlying socket is gone. Only a
// clean disconnect reports transport.ErrClosed.
func (s *Socket) notConnected() error {
	select {
	case <-s.done:
		if errors.Is(s.termErr, transport.ErrClosed) {
			return transport.ErrClosed
		}
		return fmt.Errorf("%w: %w", ErrNotConnected, s.termErr)
	default:
		return ErrNotConnected
	}
}

// Write emits f as one "message" event.
func (s *Socket) Write(ctx context.Context, f wire.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return transport.ErrClosed
	}
	if !s.io.Connected() {
		return s.notConnected()
	}
	var arg any
	switch f.Kind {
	case wire.Text:
		arg = string(f.Payload)
	case wire.Binary:
		arg = f.Payload
	default:
		return fmt.Errorf("unsupported frame kind %s", f.Kind)
	}
	if err := s.io.Emit(messageEvent, arg); err != nil {
		return fmt.Errorf("failed to emit %s frame: %w", f.Kind, err)
	}
	return nil
}

// Read returns the next server message. Messages buffered before a
// disconnect are returned before the terminal error.
func (s *Socket) Read() (wire.Frame, error) {
	select {
	case f := <-s.incoming:
		return f, nil
	default:
	}
	select {
	case f := <-s.incoming:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.incoming:
			return f, nil
		default:
		}
		return wire.Frame{}, s.termErr
	}
}

// Close disconnects the namespace socket. Safe to call multiple times.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.io.Disconnect()
	s.terminate(transport.ErrClosed)
	return nil
}

// frameFromArgs converts the arguments of a "message" event to a frame.
func frameFromArgs(args []any) (wire.Frame, error) {
	if len(args) == 0 {
		return wire.Frame{Kind: wire.Text}, nil
	}
	switch v := args[0].(type) {
	case string:
		return wire.Frame{Kind: wire.Text, Payload: []byte(v)}, nil
	case []byte:
		return wire.Frame{Kind: wire.Binary, Payload: v}, nil
	case fmt.Stringer:
		return wire.Frame{Kind: wire.Text, Payload: []byte(v.String())}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return wire.Frame{}, fmt.Errorf("cannot encode %T: %w", v, err)
		}
		return wire.Frame{Kind: wire.Text, Payload: data}, nil
	}
}

// argError extracts an error from event arguments.
func argError(args []any) error {
	if len(args) == 0 {
		return fmt.Errorf("unknown connect error")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}

// Module registers this transport with a registry.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	r.RegisterTransport(Name, func(cfg transport.Config, logger *slog.Logger) transport.Dialer {
		return NewDialer(cfg, logger)
	})
}
