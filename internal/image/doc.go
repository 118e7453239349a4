// Package image provides the opaque, read-once handles the upload session
// transmits. A Handle exposes a name, a byte length and a way to open its
// content; the session never inspects the bytes, it only reads them once per
// transmission attempt.
//
// Handles are backed either by a go-billy filesystem (the OS filesystem in
// production, an in-memory one in tests) or by an in-memory byte slice.
package image
