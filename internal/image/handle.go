package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/go-git/go-billy/v5"
)

// ErrReleased is returned when opening a handle whose resources were freed.
var ErrReleased = errors.New("image handle has been released")

// Handle is an opaque reference to binary content plus its byte length.
type Handle interface {
	// Name identifies the handle in logs and events. It is never transmitted.
	Name() string
	// Size is the byte length of the content.
	Size() int64
	// Open returns a reader over the full content.
	Open() (io.ReadCloser, error)
	// Release frees any resources held for the handle. Safe to call twice.
	Release()
}

// ReadAll reads the full content of h. The read is abandoned if ctx ends
// between chunks.
func ReadAll(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, h.Size()))
	if _, err := io.Copy(buf, &ctxReader{ctx: ctx, r: rc}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// FileHandle is a Handle backed by a file on a billy.Filesystem.
type FileHandle struct {
	fs       billy.Filesystem
	path     string
	size     int64
	released atomic.Bool
}

// NewFileHandle stats path on fs and returns a handle for it.
func NewFileHandle(fs billy.Filesystem, path string) (*FileHandle, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}
	return &FileHandle{fs: fs, path: path, size: info.Size()}, nil
}

// Name returns the path of the file within its filesystem.
func (h *FileHandle) Name() string { return h.path }

// Size returns the size recorded when the handle was created.
func (h *FileHandle) Size() int64 { return h.size }

// Open opens the underlying file.
func (h *FileHandle) Open() (io.ReadCloser, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	f, err := h.fs.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", h.path, err)
	}
	return f, nil
}

// Release marks the handle unusable.
func (h *FileHandle) Release() { h.released.Store(true) }

// MemoryHandle is a Handle over an in-memory byte slice.
type MemoryHandle struct {
	name string
	data atomic.Pointer[[]byte]
	size int64
}

// NewMemoryHandle wraps data. The slice must not be modified afterwards.
func NewMemoryHandle(name string, data []byte) *MemoryHandle {
	h := &MemoryHandle{name: name, size: int64(len(data))}
	h.data.Store(&data)
	return h
}

// Name returns the name given at construction.
func (h *MemoryHandle) Name() string { return h.name }

// Size returns the length of the wrapped data.
func (h *MemoryHandle) Size() int64 { return h.size }

// Open returns a reader over the wrapped data.
func (h *MemoryHandle) Open() (io.ReadCloser, error) {
	p := h.data.Load()
	if p == nil {
		return nil, ErrReleased
	}
	return io.NopCloser(bytes.NewReader(*p)), nil
}

// Release drops the reference to the wrapped data.
func (h *MemoryHandle) Release() { h.data.Store(nil) }

// ReleaseAll releases every handle in hs.
func ReleaseAll(hs []Handle) {
	for _, h := range hs {
		h.Release()
	}
}
