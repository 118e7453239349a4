// Package upload drives batches of images across the connection owned by a
// connmgr.Manager.
//
// A Session accepts one batch at a time. Submit opens (or reuses) the
// connection, writes a single text header {"num_photos": N} and then one
// binary frame per image, strictly in batch order: image i+1 is not read
// until the frame for image i has been handed to the transport. A submission
// that overlaps an active batch is rejected with ErrSessionBusy and writes
// nothing.
//
// Any read, send or connection failure aborts the rest of the batch and
// leaves the session Failed. Frames already written are not retracted; the
// endpoint infers batch boundaries from the frame count alone. A later
// Submit is always allowed and dials again if the connection is gone.
//
// Frames the endpoint sends back are forwarded to observers unparsed as ack
// events.
package upload
