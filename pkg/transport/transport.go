// Package transport provides the byte-stream links a CRSF agent can run
// over: a physical UART, a TCP socket (as exposed by a Wi-Fi bridge), and
// an in-memory pipe for tests.
package transport

import "errors"

// ErrClosed is returned by Read/Write once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// ErrDisconnected is returned by Read when the underlying link drops
// (cable pulled, socket reset) and cannot be recovered without
// reconnecting.
var ErrDisconnected = errors.New("transport: disconnected")

// ErrTransport marks an error as a transport-layer failure the caller
// should recover from by tearing down and reconnecting, as opposed to a
// deliberate Close (ErrClosed). Concrete transports wrap their
// unrecoverable Read errors in ErrTransport so callers can test for it
// with errors.Is without depending on a specific transport's error type.
var ErrTransport = errors.New("transport: error")

// Transport is a duplex byte stream to a CRSF peer. Implementations are
// safe for one reader goroutine and one writer goroutine to use
// concurrently, but not for concurrent writers.
type Transport interface {
	// Read blocks until at least one byte is available, the transport is
	// closed, or the link drops.
	Read(p []byte) (n int, err error)
	// Write sends data to the peer.
	Write(p []byte) (n int, err error)
	// Close releases the underlying link. Concurrent Read/Write calls
	// unblock with ErrClosed.
	Close() error
}
