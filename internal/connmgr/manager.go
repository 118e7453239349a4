package connmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
)

// Connection is one socket owned by a Manager.
type Connection struct {
	id   uint64
	m    *Manager
	sock transport.Socket

	writeMu sync.Mutex

	// Guarded by m.mu.
	state   State
	err     error
	closing bool
}

// ID returns the connection's identifier, unique within its Manager.
func (c *Connection) ID() uint64 { return c.id }

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.state
}

// Err returns the error that terminated the connection, if it errored.
func (c *Connection) Err() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.err
}

// Manager owns zero or one live connection to a fixed endpoint.
type Manager struct {
	dialer transport.Dialer
	logger *slog.Logger

	dialMu sync.Mutex // serializes EnsureOpen

	mu        sync.Mutex
	conn      *Connection
	dialing   bool
	nextID    uint64
	observers map[uint64]Observer
	nextObs   uint64

	notifyMu sync.Mutex // delivers observer callbacks one at a time
	wg       sync.WaitGroup
}

// New creates a Manager that dials through d.
func New(d transport.Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dialer:    d,
		logger:    logger.With("component", "connmgr"),
		observers: make(map[uint64]Observer),
	}
}

// Subscribe registers o and returns a function that removes it.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObs++
	key := m.nextObs
	m.observers[key] = o
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, key)
	}
}

// State returns the state of the current connection, Connecting while a dial
// is in flight and Unopened before the first one.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dialing {
		return Connecting
	}
	if m.conn == nil {
		return Unopened
	}
	return m.conn.state
}

// EnsureOpen returns the current connection if it is open. Otherwise it dials
// a new one and blocks until it is open, ctx ends, or the dial fails with a
// *ConnectionError.
func (m *Manager) EnsureOpen(ctx context.Context) (*Connection, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	if c := m.conn; c != nil && c.state == Open {
		m.mu.Unlock()
		m.logger.Debug("Reusing open connection.", "conn_id", c.id)
		return c, nil
	}
	m.nextID++
	id := m.nextID
	m.dialing = true
	m.mu.Unlock()

	m.logger.Debug("Opening new connection.", "conn_id", id)
	sock, err := m.dialer.Dial(ctx)

	m.mu.Lock()
	m.dialing = false
	if err != nil {
		m.conn = &Connection{id: id, m: m, state: Errored, err: err}
		m.mu.Unlock()
		m.logger.Warn("Connection attempt failed.", "conn_id", id, "error", err)
		m.notify(func(o Observer) { o.OnError(id, err) })
		return nil, &ConnectionError{Op: "dial", ConnID: id, Err: err}
	}
	c := &Connection{id: id, m: m, sock: sock, state: Open}
	m.conn = c
	m.mu.Unlock()

	m.logger.Info("Connection opened.", "conn_id", id)
	m.notify(func(o Observer) { o.OnOpen(id) })

	m.wg.Add(1)
	go m.readLoop(c)

	return c, nil
}

// Send writes f on the current connection. It returns an error wrapping
// ErrInvalidState if there is no open connection, and a *ConnectionError if
// the connection failed; a failed write terminates the connection.
func (m *Manager) Send(ctx context.Context, f wire.Frame) error {
	m.mu.Lock()
	c := m.conn
	var state State
	var cause error
	if c != nil {
		state, cause = c.state, c.err
	}
	m.mu.Unlock()

	if c == nil || state != Open {
		if state == Errored && cause != nil {
			return &ConnectionError{Op: "send", ConnID: c.id, Err: cause}
		}
		return fmt.Errorf("cannot send %s frame in state %s: %w", f.Kind, state, ErrInvalidState)
	}

	c.writeMu.Lock()
	err := c.sock.Write(ctx, f)
	c.writeMu.Unlock()

	if err != nil {
		m.terminate(c, err)
		return &ConnectionError{Op: "send", ConnID: c.id, Err: err}
	}
	return nil
}

// Close closes the current connection. It is a no-op when there is none or
// it has already terminated.
func (m *Manager) Close() error {
	m.mu.Lock()
	c := m.conn
	if c == nil || c.state != Open {
		m.mu.Unlock()
		return nil
	}
	c.closing = true
	m.mu.Unlock()

	m.logger.Debug("Closing connection.", "conn_id", c.id)
	err := c.sock.Close()
	m.terminate(c, transport.ErrClosed)
	return err
}

// Shutdown closes the current connection and waits for its reader to exit.
func (m *Manager) Shutdown() error {
	err := m.Close()
	m.wg.Wait()
	return err
}

func (m *Manager) readLoop(c *Connection) {
	defer m.wg.Done()
	for {
		f, err := c.sock.Read()
		if err != nil {
			m.terminate(c, err)
			return
		}
		m.notify(func(o Observer) { o.OnMessage(c.id, f) })
	}
}

// terminate performs the connection's single terminal transition. A clean
// close, or any failure after Close was requested, ends in Closed; anything
// else ends in Errored.
func (m *Manager) terminate(c *Connection, cause error) {
	m.mu.Lock()
	if c.state != Open {
		m.mu.Unlock()
		return
	}
	clean := c.closing || errors.Is(cause, transport.ErrClosed)
	if clean {
		c.state = Closed
	} else {
		c.state = Errored
		c.err = cause
	}
	m.mu.Unlock()

	// Releases the read loop when the failure came from a write.
	_ = c.sock.Close()
	if clean {
		m.logger.Info("Connection closed.", "conn_id", c.id)
		m.notify(func(o Observer) { o.OnClose(c.id) })
		return
	}

	m.logger.Error("Connection failed.", "conn_id", c.id, "error", cause)
	m.notify(func(o Observer) { o.OnError(c.id, cause) })
}

func (m *Manager) notify(fn func(Observer)) {
	m.mu.Lock()
	keys := make([]uint64, 0, len(m.observers))
	for k := range m.observers {
		keys = append(keys, k)
	}
	obs := make([]Observer, 0, len(keys))
	slices.Sort(keys)
	for _, k := range keys {
		obs = append(obs, m.observers[k])
	}
	m.mu.Unlock()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for _, o := range obs {
		fn(o)
	}
}
