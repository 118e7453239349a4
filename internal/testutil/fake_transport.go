package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
)

// ErrSocketFailed is the default error used by FakeSocket.Fail.
var ErrSocketFailed = errors.New("fake socket failed")

// WriteHook runs before a frame is recorded. index counts frames written to
// the socket so far. A non-nil error fails the write without recording it.
type WriteHook func(s *FakeSocket, index int, f wire.Frame) error

// FakeDialer is an in-memory transport.Dialer that records every socket it
// opens. The zero value is ready to use.
type FakeDialer struct {
	// DialErr, when set, makes every Dial fail with it.
	DialErr error
	// OnWrite is installed on every socket the dialer creates.
	OnWrite WriteHook
	// BeforeDial, when set, runs at the start of every Dial with the
	// 1-based attempt number.
	BeforeDial func(attempt int)

	mu      sync.Mutex
	sockets []*FakeSocket
	attempt int
}

// Dial returns a new open FakeSocket.
func (d *FakeDialer) Dial(ctx context.Context) (transport.Socket, error) {
	d.mu.Lock()
	d.attempt++
	attempt, hook := d.attempt, d.BeforeDial
	d.mu.Unlock()
	if hook != nil {
		hook(attempt)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	s := NewFakeSocket()
	s.onWrite = d.OnWrite
	d.sockets = append(d.sockets, s)
	return s, nil
}

// Attempts returns the number of Dial calls, failed ones included.
func (d *FakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempt
}

// Sockets returns the sockets opened so far, oldest first.
func (d *FakeDialer) Sockets() []*FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSocket(nil), d.sockets...)
}

// Last returns the most recently opened socket, or nil.
func (d *FakeDialer) Last() *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// Frames returns every frame written on every socket, in write order.
func (d *FakeDialer) Frames() []wire.Frame {
	var out []wire.Frame
	for _, s := range d.Sockets() {
		out = append(out, s.Frames()...)
	}
	return out
}

// FakeSocket is an in-memory transport.Socket.
type FakeSocket struct {
	onWrite WriteHook

	mu      sync.Mutex
	frames  []wire.Frame
	writes  int
	closed  bool
	termErr error

	incoming chan wire.Frame
	done     chan struct{}
	termOnce sync.Once
}

// NewFakeSocket returns an open socket with no write hook.
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		incoming: make(chan wire.Frame, 64),
		done:     make(chan struct{}),
	}
}

// Write records f unless the socket is terminated or the hook rejects it.
func (s *FakeSocket) Write(ctx context.Context, f wire.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	index := s.writes
	s.writes++
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		if err := hook(s, index, f); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.termErr != nil {
		return s.termErr
	}
	payload := append([]byte(nil), f.Payload...)
	s.frames = append(s.frames, wire.Frame{Kind: f.Kind, Payload: payload})
	return nil
}

// Read returns server frames pushed with Push, then the terminal error.
func (s *FakeSocket) Read() (wire.Frame, error) {
	select {
	case f := <-s.incoming:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.incoming:
			return f, nil
		default:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return wire.Frame{}, s.termErr
	}
}

// Close terminates the socket as a clean local close.
func (s *FakeSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.terminate(transport.ErrClosed)
	return nil
}

// Push delivers f to the reader as if the server had sent it.
func (s *FakeSocket) Push(f wire.Frame) {
	select {
	case s.incoming <- f:
	case <-s.done:
	}
}

// Fail terminates the socket with err (ErrSocketFailed when nil), as if
// the transport had broken.
func (s *FakeSocket) Fail(err error) {
	if err == nil {
		err = ErrSocketFailed
	}
	s.terminate(err)
}

// PeerClose terminates the socket as if the server closed it cleanly.
func (s *FakeSocket) PeerClose() {
	s.terminate(transport.ErrClosed)
}

// Frames returns a copy of the recorded frames.
func (s *FakeSocket) Frames() []wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Frame(nil), s.frames...)
}

// Closed reports whether Close was called.
func (s *FakeSocket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSocket) terminate(err error) {
	s.termOnce.Do(func() {
		s.mu.Lock()
		s.termErr = err
		s.mu.Unlock()
		close(s.done)
	})
}
