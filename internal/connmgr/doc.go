// Package connmgr owns the single live connection to the upload endpoint.
//
// A Manager holds at most one connection at a time. EnsureOpen returns the
// current connection when it is open and dials a replacement otherwise;
// there is no implicit reconnect, a failed connection stays failed until the
// next EnsureOpen. Every connection moves through
//
//	Unopened -> Connecting -> Open -> Closed | Errored
//
// and observers see exactly one OnOpen per successful open and exactly one
// of OnClose or OnError per connection, never both.
//
// Each open connection has one reader goroutine that turns incoming frames
// into OnMessage callbacks and detects the terminal transition. Writes are
// serialized per connection. Observer callbacks run one at a time and must
// not call Send or Close synchronously.
package connmgr
