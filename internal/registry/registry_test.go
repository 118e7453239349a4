package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct{ name string }

func (m stubModule) Register(r *Registry) {
	r.RegisterTransport(m.name, func(cfg transport.Config, _ *slog.Logger) transport.Dialer {
		return transport.DialerFunc(func(context.Context) (transport.Socket, error) { return nil, nil })
	})
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := New()
	stubModule{name: "b"}.Register(r)
	stubModule{name: "a"}.Register(r)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	require.NoError(t, r.Validate("a"))

	d, err := r.Dialer("b", transport.Config{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestRegistry_Unknown(t *testing.T) {
	r := New()
	stubModule{name: "websocket"}.Register(r)

	_, err := r.Dialer("carrier-pigeon", transport.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport "carrier-pigeon" (available: websocket)`)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New()
	stubModule{name: "websocket"}.Register(r)

	assert.PanicsWithValue(t, "transport with name 'websocket' already registered", func() {
		stubModule{name: "websocket"}.Register(r)
	})
}
