// Package app wires the uploader together. It merges flag and file
// configuration, builds the transport, connection manager, upload session
// and metrics, and runs the upload next to the optional health server,
// decoupled from any specific entrypoint like a CLI.
package app
