package upload

import (
	"github.com/google/uuid"
	"github.com/specialistvlad/imageburst/internal/image"
)

// Batch is an ordered set of images submitted together. The order of Handles
// is the order of the frames on the wire.
type Batch struct {
	ID      uuid.UUID
	Handles []image.Handle
}

// NewBatch returns a batch over handles with a fresh random ID.
func NewBatch(handles ...image.Handle) Batch {
	return Batch{ID: uuid.New(), Handles: handles}
}

// Len returns the number of images in the batch.
func (b Batch) Len() int { return len(b.Handles) }

// Size returns the total byte length of the batch's images.
func (b Batch) Size() int64 {
	var n int64
	for _, h := range b.Handles {
		n += h.Size()
	}
	return n
}
