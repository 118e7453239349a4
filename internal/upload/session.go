package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/imageburst/internal/connmgr"
	"github.com/specialistvlad/imageburst/internal/ctxlog"
	"github.com/specialistvlad/imageburst/internal/image"
	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
)

// Conn is the part of connmgr.Manager a Session drives.
type Conn interface {
	EnsureOpen(ctx context.Context) (*connmgr.Connection, error)
	Send(ctx context.Context, f wire.Frame) error
	State() connmgr.State
	Subscribe(o connmgr.Observer) (unsubscribe func())
}

// Stats are the cumulative counters of a Session.
type Stats struct {
	State     State
	LastBatch uuid.UUID
	Completed int
	Failed    int
	Frames    int
	Bytes     int64
	Acks      int
}

// Session sends batches over the connection held by a Conn, one batch at a
// time.
type Session struct {
	conn        Conn
	logger      *slog.Logger
	unsubscribe func()

	mu        sync.Mutex
	state     State
	batchID   uuid.UUID
	connID    uint64
	lastConn  uint64
	abort     context.CancelCauseFunc
	stats     Stats
	observers []observerEntry
	nextObs   int

	emitMu sync.Mutex
}

type observerEntry struct {
	key int
	o   Observer
}

// New creates an idle Session on top of conn and subscribes it to conn's
// connection events.
func New(conn Conn, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		conn:   conn,
		logger: logger.With("component", "upload"),
	}
	s.unsubscribe = conn.Subscribe(connmgr.ObserverFuncs{
		Message: s.onMessage,
		Close:   s.onClose,
		Error:   s.onError,
	})
	return s
}

// Close detaches the session from its Conn. It does not close the
// connection.
func (s *Session) Close() {
	s.unsubscribe()
}

// Subscribe registers o for session events and returns a function that
// removes it.
func (s *Session) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObs++
	key := s.nextObs
	s.observers = append(s.observers, observerEntry{key: key, o: o})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.observers {
			if e.key == key {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.state
	return st
}

// Submit sends b and blocks until every frame has been handed to the
// transport or the batch fails. It returns ErrEmptyBatch or ErrSessionBusy
// without touching the connection, a *connmgr.ConnectionError when the
// connection cannot be opened or breaks, and a *ReadError when an image
// cannot be read. Cancelling ctx fails the batch.
func (s *Session) Submit(ctx context.Context, b Batch) error {
	if len(b.Handles) == 0 {
		return ErrEmptyBatch
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	if !s.state.accepting() {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot submit batch %s while %s: %w", b.ID, state, ErrSessionBusy)
	}
	s.state = State{Phase: Connecting}
	s.batchID = b.ID
	s.connID = 0
	s.abort = cancel
	s.stats.LastBatch = b.ID
	s.mu.Unlock()

	ctx, logger := ctxlog.With(ctxlog.WithLogger(ctx, s.logger), "batch_id", b.ID, "num_photos", b.Len())
	logger.Info("Submitting batch.", "bytes", b.Size())
	s.emit(Event{Type: EventConnecting, BatchID: b.ID})

	err := s.send(ctx, b)

	s.mu.Lock()
	connID := s.connID
	s.abort = nil
	if err == nil {
		s.state = State{Phase: Idle}
		s.stats.Completed++
	} else {
		s.state = State{Phase: Failed, Reason: err}
		s.stats.Failed++
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("Batch failed.", "error", err)
		s.emit(Event{Type: EventError, BatchID: b.ID, ConnID: connID, Err: err})
		return fmt.Errorf("failed to upload batch %s: %w", b.ID, err)
	}
	logger.Info("Batch sent.")
	return nil
}

func (s *Session) send(ctx context.Context, b Batch) error {
	if s.conn.State() != connmgr.Open {
		s.setState(State{Phase: AwaitingOpen})
	}
	c, err := s.conn.EnsureOpen(ctx)
	if err != nil {
		return abortCause(ctx, err)
	}
	connID := c.ID()
	s.mu.Lock()
	s.connID = connID
	s.lastConn = connID
	s.mu.Unlock()
	ctx, logger := ctxlog.With(ctx, "conn_id", connID)

	s.setState(State{Phase: SendingHeader})
	header, err := wire.HeaderFrame(b.Len())
	if err != nil {
		return err
	}
	if err := s.conn.Send(ctx, header); err != nil {
		return sendFailure(ctx, connID, err)
	}
	logger.Debug("Header sent.")
	s.emit(Event{Type: EventHeaderSent, BatchID: b.ID, ConnID: connID, Count: b.Len()})

	for i, h := range b.Handles {
		s.setState(State{Phase: SendingPayloads, Index: i})

		data, err := image.ReadAll(ctx, h)
		if err != nil {
			if cause := abortCause(ctx, nil); cause != nil {
				return cause
			}
			return &ReadError{Index: i, Name: h.Name(), Err: err}
		}
		if err := s.conn.Send(ctx, wire.PayloadFrame(data)); err != nil {
			return sendFailure(ctx, connID, err)
		}

		s.mu.Lock()
		s.stats.Frames++
		s.stats.Bytes += int64(len(data))
		s.mu.Unlock()

		logger.Debug("Payload sent.", "index", i, "name", h.Name(), "bytes", len(data))
		s.emit(Event{Type: EventPayloadSent, BatchID: b.ID, ConnID: connID, Index: i, Name: h.Name(), Bytes: len(data)})
	}
	return nil
}

// sendFailure turns a failed Send into the error the batch reports. A send
// that finds the connection already gone is a connection failure, not
// misuse.
func sendFailure(ctx context.Context, connID uint64, err error) error {
	if errors.Is(err, connmgr.ErrInvalidState) {
		err = &connmgr.ConnectionError{Op: "send", ConnID: connID, Err: err}
	}
	return abortCause(ctx, err)
}

// abortCause returns err unless it hides the connection failure that
// cancelled ctx. With a nil err it returns only that failure, if any.
func abortCause(ctx context.Context, err error) error {
	var connErr *connmgr.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); errors.As(cause, &connErr) {
			return cause
		}
	}
	return err
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) onMessage(connID uint64, f wire.Frame) {
	s.mu.Lock()
	s.stats.Acks++
	batchID := s.batchID
	s.mu.Unlock()

	msg := append([]byte(nil), f.Payload...)
	s.logger.Info("Received.", "conn_id", connID, "batch_id", batchID, "kind", f.Kind, "message", string(msg))
	s.emit(Event{Type: EventAck, BatchID: batchID, ConnID: connID, Message: msg})
}

func (s *Session) onClose(connID uint64) {
	s.mu.Lock()
	if !s.owns(connID) {
		s.mu.Unlock()
		s.logger.Debug("Ignoring close of a connection the session no longer uses.", "conn_id", connID)
		return
	}
	batchID := s.batchID
	if s.abort != nil {
		s.abort(&connmgr.ConnectionError{Op: "read", ConnID: connID, Err: transport.ErrClosed})
	} else {
		s.state = State{Phase: Closed}
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventClosed, BatchID: batchID, ConnID: connID})
}

func (s *Session) onError(connID uint64, err error) {
	connErr := &connmgr.ConnectionError{Op: "read", ConnID: connID, Err: err}

	s.mu.Lock()
	if !s.owns(connID) {
		s.mu.Unlock()
		s.logger.Debug("Ignoring failure of a connection the session no longer uses.", "conn_id", connID, "error", err)
		return
	}
	batchID := s.batchID
	if s.abort != nil {
		// The batch reports the failure itself when Submit returns.
		s.abort(connErr)
		s.mu.Unlock()
		return
	}
	s.state = State{Phase: Failed, Reason: connErr}
	s.mu.Unlock()

	s.logger.Error("Connection failed while idle.", "conn_id", connID, "error", err)
	s.emit(Event{Type: EventError, BatchID: batchID, ConnID: connID, Err: connErr})
}

// owns reports whether a terminal event on connID concerns the session:
// during a batch only the batch's connection counts, once EnsureOpen has
// returned it; while idle only the last connection used counts. A failed
// dial reaches the batch through EnsureOpen's error. s.mu must be held.
func (s *Session) owns(connID uint64) bool {
	if s.abort != nil {
		return s.connID != 0 && s.connID == connID
	}
	return s.lastConn != 0 && s.lastConn == connID
}

func (s *Session) emit(e Event) {
	s.mu.Lock()
	obs := make([]Observer, len(s.observers))
	for i, entry := range s.observers {
		obs[i] = entry.o
	}
	s.mu.Unlock()

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, o := range obs {
		o.HandleEvent(e)
	}
}
