// Package wire defines the frames exchanged with the upload endpoint.
//
// A batch on the wire is one text frame carrying the JSON header
// {"num_photos": N} followed by exactly N binary frames, one per image, in
// submission order. Frame boundaries are the only delimiter: no length
// prefix, file name or end-of-batch marker is ever written.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes text frames from binary frames.
type Kind int

const (
	// Text is a UTF-8 text frame. The batch header is always a text frame.
	Text Kind = iota
	// Binary is a raw binary frame carrying one image.
	Binary
)

// String returns the lowercase name of the frame kind.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Frame is one discrete message unit sent or received over the socket.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Header is the metadata frame announcing the size of a batch.
type Header struct {
	NumPhotos int `json:"num_photos"`
}

// HeaderFrame encodes the batch header for a batch of n images.
func HeaderFrame(n int) (Frame, error) {
	if n < 0 {
		return Frame{}, fmt.Errorf("num_photos must be non-negative, got %d", n)
	}
	data, err := json.Marshal(Header{NumPhotos: n})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode header: %w", err)
	}
	return Frame{Kind: Text, Payload: data}, nil
}

// PayloadFrame wraps the raw bytes of one image.
func PayloadFrame(data []byte) Frame {
	return Frame{Kind: Binary, Payload: data}
}

// ParseHeader decodes a header frame. It is used by test endpoints that need
// to reconstruct batches the way a server would.
func ParseHeader(f Frame) (Header, error) {
	if f.Kind != Text {
		return Header{}, fmt.Errorf("header must be a text frame, got %s", f.Kind)
	}
	var h Header
	if err := json.Unmarshal(f.Payload, &h); err != nil {
		return Header{}, fmt.Errorf("failed to decode header: %w", err)
	}
	if h.NumPhotos < 0 {
		return Header{}, fmt.Errorf("num_photos must be non-negative, got %d", h.NumPhotos)
	}
	return h, nil
}
