package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gorilla/websocket"
	"github.com/specialistvlad/imageburst/internal/connmgr"
	"github.com/specialistvlad/imageburst/internal/hcl_adapter"
	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/testutil"
	"github.com/specialistvlad/imageburst/internal/transport"
	"github.com/specialistvlad/imageburst/internal/upload"
	"github.com/specialistvlad/imageburst/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModule registers the in-memory transport under the name "fake".
type fakeModule struct {
	dialer *testutil.FakeDialer
}

func (m fakeModule) Register(r *registry.Registry) {
	r.RegisterTransport("fake", func(transport.Config, *slog.Logger) transport.Dialer {
		return m.dialer
	})
}

func photoFS(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/photos/c.gif", []byte("ccccc"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/photos/a.png", []byte("aaaaaaaaaa"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/photos/b.jpg", nil, 0o644))
	require.NoError(t, util.WriteFile(fs, "/photos/notes.txt", []byte("skip me"), 0o644))
	return fs
}

func fakeConfig() *Config {
	return &Config{
		URL:       "ws://upload.invalid/ws",
		Transport: "fake",
		Paths:     []string{"/photos"},
	}
}

func TestRun_SendsAcceptedImagesInPathOrder(t *testing.T) {
	d := &testutil.FakeDialer{}
	a, logs := SetupAppTest(t, fakeConfig(), nil, photoFS(t), fakeModule{d})

	require.NoError(t, a.Run(context.Background()))

	frames := d.Frames()
	require.Len(t, frames, 4)
	assert.JSONEq(t, `{"num_photos":3}`, string(frames[0].Payload))
	assert.Equal(t, "aaaaaaaaaa", string(frames[1].Payload))
	assert.Empty(t, frames[2].Payload)
	assert.Equal(t, "ccccc", string(frames[3].Payload))

	assert.True(t, d.Last().Closed(), "connection is closed when the run ends")
	assert.Contains(t, logs.String(), "Upload finished.")
}

func TestRun_RepeatReusesConnection(t *testing.T) {
	d := &testutil.FakeDialer{}
	cfg := fakeConfig()
	cfg.Repeat = 3
	a, _ := SetupAppTest(t, cfg, nil, photoFS(t), fakeModule{d})

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 1, d.Attempts())
	frames := d.Frames()
	require.Len(t, frames, 12)
	for i := 0; i < 12; i += 4 {
		h, err := wire.ParseHeader(frames[i])
		require.NoError(t, err)
		assert.Equal(t, 3, h.NumPhotos)
	}
	assert.Equal(t, 3, a.Session().Stats().Completed)
}

func TestRun_NoMatchingImages(t *testing.T) {
	d := &testutil.FakeDialer{}
	cfg := fakeConfig()
	cfg.Accept = []string{"image/webp"}
	a, _ := SetupAppTest(t, cfg, nil, photoFS(t), fakeModule{d})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, upload.ErrEmptyBatch)
	assert.Zero(t, d.Attempts())
}

func TestRun_MissingPath(t *testing.T) {
	cfg := fakeConfig()
	cfg.Paths = []string{"/nowhere"}
	a, _ := SetupAppTest(t, cfg, nil, photoFS(t), fakeModule{&testutil.FakeDialer{}})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find images")
}

func TestRun_DialFailure(t *testing.T) {
	refused := errors.New("connection refused")
	d := &testutil.FakeDialer{DialErr: refused}
	a, _ := SetupAppTest(t, fakeConfig(), nil, photoFS(t), fakeModule{d})

	err := a.Run(context.Background())
	var connErr *connmgr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, upload.Failed, a.Session().State().Phase)
}

func TestRun_WaitAcksCollectsReplies(t *testing.T) {
	d := &testutil.FakeDialer{
		OnWrite: func(s *testutil.FakeSocket, index int, _ wire.Frame) error {
			if index > 0 {
				s.Push(wire.Frame{Kind: wire.Text, Payload: []byte("stored")})
			}
			return nil
		},
	}
	cfg := fakeConfig()
	cfg.WaitAcks = 50 * time.Millisecond
	a, logs := SetupAppTest(t, cfg, nil, photoFS(t), fakeModule{d})

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 3, a.Session().Stats().Acks)
	assert.Contains(t, logs.String(), "message=stored")
}

func TestRun_OverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	var connections int
	var got [][]byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		connections++
		mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			got = append(got, data)
			mu.Unlock()
		}
	}))
	defer srv.Close()

	cfg := &Config{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		Paths:  []string{"/photos"},
		Repeat: 2,
	}
	a, _ := SetupAppTest(t, cfg, nil, photoFS(t))
	require.NoError(t, a.Run(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 8
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, connections)
	assert.JSONEq(t, `{"num_photos":3}`, string(got[0]))
	assert.Equal(t, "aaaaaaaaaa", string(got[1]))
	assert.JSONEq(t, `{"num_photos":3}`, string(got[4]))
}

func TestNewApp_ConfigFileUnderFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imageburst.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint {
  url          = "wss://${env.HOST}/ws"
  transport    = "socketio"
  dial_timeout = "2s"
  headers      = { "X-Client" = "file", "X-Extra" = "file" }
}
upload {
  paths  = ["photos"]
  accept = ["image/png"]
  repeat = 4
}
`), 0o644))

	cfg := &Config{
		ConfigPaths: []string{path},
		Transport:   "websocket",
		Headers:     map[string]string{"X-Client": "flag"},
	}
	a, _ := SetupAppTest(t, cfg, hcl_adapter.NewLoaderWithEnv(map[string]string{"HOST": "example.com"}), nil)

	got := a.Config()
	assert.Equal(t, "wss://example.com/ws", got.URL)
	assert.Equal(t, "websocket", got.Transport, "flags win over the file")
	assert.Equal(t, 2*time.Second, got.DialTimeout)
	assert.Equal(t, map[string]string{"X-Client": "flag", "X-Extra": "file"}, got.Headers)
	assert.Equal(t, []string{filepath.Join(dir, "photos")}, got.Paths)
	assert.Equal(t, 4, got.Repeat)
	assert.Equal(t, map[string]string{"X-Client": "flag"}, cfg.Headers, "caller config is untouched")

	tc := got.transportConfig()
	assert.Equal(t, "flag", tc.Headers.Get("X-Client"))
	assert.Equal(t, transport.DefaultWriteTimeout, tc.WriteTimeout)
}

func TestNewApp_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "unknown transport",
			cfg:     Config{URL: "ws://host/ws", Transport: "carrier-pigeon", Paths: []string{"/p"}},
			wantErr: `unknown transport "carrier-pigeon" (available: socketio, websocket)`,
		},
		{
			name:    "bad scheme",
			cfg:     Config{URL: "ftp://host/ws", Paths: []string{"/p"}},
			wantErr: `unsupported scheme "ftp"`,
		},
		{
			name:    "missing host",
			cfg:     Config{URL: "ws:///ws", Paths: []string{"/p"}},
			wantErr: "missing host",
		},
		{
			name:    "no paths",
			cfg:     Config{URL: "ws://host/ws"},
			wantErr: "no image paths given",
		},
		{
			name:    "bad accept",
			cfg:     Config{URL: "ws://host/ws", Paths: []string{"/p"}, Accept: []string{"png"}},
			wantErr: `invalid accept pattern "png"`,
		},
		{
			name:    "missing config file",
			cfg:     Config{ConfigPaths: []string{"/does/not/exist.hcl"}},
			wantErr: "failed to load configuration",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			_, err := NewApp(&testutil.SafeBuffer{}, &cfg, hcl_adapter.NewLoaderWithEnv(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "endpoint URL is required")

	_, err = NewConfig(Config{URL: "ws://h", Repeat: -1})
	assert.ErrorContains(t, err, "repeat must not be negative")

	_, err = NewConfig(Config{URL: "ws://h", WaitAcks: -time.Second})
	assert.ErrorContains(t, err, "wait-acks must not be negative")

	_, err = NewConfig(Config{URL: "ws://h", HealthcheckPort: 70000})
	assert.ErrorContains(t, err, "healthcheck-port out of range")

	cfg, err := NewConfig(Config{ConfigPaths: []string{"x.hcl"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.hcl"}, cfg.ConfigPaths)
}

func TestHealthMux(t *testing.T) {
	d := &testutil.FakeDialer{}
	a, _ := SetupAppTest(t, fakeConfig(), nil, photoFS(t), fakeModule{d})
	require.NoError(t, a.Run(context.Background()))

	mux := a.healthMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "closed", status.State, "the run closes the connection")
	assert.Equal(t, "closed", status.Connection)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 3, status.Frames)
	assert.Equal(t, int64(15), status.Bytes)
	assert.NotEmpty(t, status.LastBatch)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imageburst_batches_total{status="success"} 1`)
}

func TestLogger_Levels(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	logger := newLogger("WARN", "json", buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
