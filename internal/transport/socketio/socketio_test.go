package socketio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameFromArgs(t *testing.T) {
	f, err := frameFromArgs([]any{"saved 3 photos"})
	require.NoError(t, err)
	assert.Equal(t, wire.Frame{Kind: wire.Text, Payload: []byte("saved 3 photos")}, f)

	f, err = frameFromArgs([]any{[]byte{0xff, 0x00}})
	require.NoError(t, err)
	assert.Equal(t, wire.Frame{Kind: wire.Binary, Payload: []byte{0xff, 0x00}}, f)

	f, err = frameFromArgs([]any{map[string]any{"received": 2}})
	require.NoError(t, err)
	assert.Equal(t, wire.Text, f.Kind)
	assert.JSONEq(t, `{"received":2}`, string(f.Payload))

	f, err = frameFromArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, wire.Text, f.Kind)
	assert.Empty(t, f.Payload)

	_, err = frameFromArgs([]any{make(chan int)})
	assert.Error(t, err)
}

func TestArgError(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, argError([]any{boom}), boom)
	assert.EqualError(t, argError([]any{"refused"}), "refused")
	assert.EqualError(t, argError(nil), "unknown connect error")
}

func TestDialer_InvalidURL(t *testing.T) {
	_, err := NewDialer(transport.Config{URL: "localhost"}, nil).Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must include scheme and host")
}

func TestDialer_ConnectFailure(t *testing.T) {
	d := NewDialer(transport.Config{URL: "http://127.0.0.1:1/socket.io/", DialTimeout: 2 * time.Second}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := d.Dial(ctx)
	require.Error(t, err)
}

func TestDialer_ContextCancelled(t *testing.T) {
	d := NewDialer(transport.Config{URL: "http://127.0.0.1:1/socket.io/", DialTimeout: 5 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx)
	require.Error(t, err)
}

func TestSocket_NotConnected(t *testing.T) {
	testCases := []struct {
		name      string
		term      error
		wantClean bool
	}{
		{name: "dropped before disconnect event"},
		{name: "transport error", term: errors.New("socket.io disconnected: transport close")},
		{name: "server disconnect", term: transport.ErrClosed, wantClean: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Socket{done: make(chan struct{})}
			if tc.term != nil {
				s.terminate(tc.term)
			}

			err := s.notConnected()
			if tc.wantClean {
				assert.ErrorIs(t, err, transport.ErrClosed)
				return
			}
			assert.ErrorIs(t, err, ErrNotConnected)
			assert.False(t, errors.Is(err, transport.ErrClosed), "an abnormal drop must not read as a clean close")
			if tc.term != nil {
				assert.ErrorIs(t, err, tc.term)
			}
		})
	}
}
