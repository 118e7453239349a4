package image

import (
	"context"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandle_ReadAll(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "photos/a.png", []byte("0123456789"), 0644))

	h, err := NewFileHandle(fs, "photos/a.png")
	require.NoError(t, err)
	assert.Equal(t, "photos/a.png", h.Name())
	assert.Equal(t, int64(10), h.Size())

	data, err := ReadAll(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)

	// Handles are re-readable until released.
	data, err = ReadAll(context.Background(), h)
	require.NoError(t, err)
	assert.Len(t, data, 10)
}

func TestFileHandle_Missing(t *testing.T) {
	_, err := NewFileHandle(memfs.New(), "nope.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestFileHandle_Directory(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("dir", 0755))

	_, err := NewFileHandle(fs, "dir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestFileHandle_Release(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.jpg", []byte("x"), 0644))
	h, err := NewFileHandle(fs, "a.jpg")
	require.NoError(t, err)

	h.Release()
	h.Release()

	_, err = h.Open()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestMemoryHandle(t *testing.T) {
	h := NewMemoryHandle("empty", []byte{})
	assert.Equal(t, int64(0), h.Size())

	data, err := ReadAll(context.Background(), h)
	require.NoError(t, err)
	assert.Empty(t, data)

	ReleaseAll([]Handle{h})
	_, err = ReadAll(context.Background(), h)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestReadAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadAll(ctx, NewMemoryHandle("a", []byte("abc")))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingHandle struct{ MemoryHandle }

func (*failingHandle) Open() (io.ReadCloser, error) { return nil, io.ErrUnexpectedEOF }

func TestReadAll_OpenError(t *testing.T) {
	_, err := ReadAll(context.Background(), &failingHandle{})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
