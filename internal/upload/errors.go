package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch is returned for a batch with no images. Nothing is dialed.
	ErrEmptyBatch = errors.New("batch has no images")
	// ErrSessionBusy is returned when a batch is submitted while another one
	// is still being sent.
	ErrSessionBusy = errors.New("upload session is busy with another batch")
)

// ReadError reports an image whose content could not be read. The frames
// before it were already sent.
type ReadError struct {
	Index int
	Name  string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read image %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
