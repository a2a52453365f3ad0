package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultHost and DefaultPort address the Wi-Fi bridge CRSF is commonly
// tunneled over.
const (
	DefaultHost = "192.168.4.1"
	DefaultPort = 60950
)

const tcpReadTimeout = 1000 * time.Millisecond

// TCP is a Transport backed by a TCP socket. Read applies a short
// deadline on every call so the orchestrator's loop can still notice a
// shutdown request while no data is arriving.
type TCP struct {
	conn net.Conn
}

// DialTCP connects to host:port, failing after dialTimeout.
func DialTCP(host string, port int, dialTimeout time.Duration) (*TCP, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &TCP{conn: conn}, nil
}

// Read implements Transport. A read timeout is reported as (0, nil) so
// callers can treat it as "nothing arrived yet" rather than an error;
// a read on a closed transport returns ErrClosed; any other failure is
// wrapped in ErrTransport and ErrDisconnected so the orchestrator can
// tear down and reconnect.
func (t *TCP) Read(p []byte) (int, error) {
	t.conn.SetReadDeadline(time.Now().Add(tcpReadTimeout))
	n, err := t.conn.Read(p)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, fmt.Errorf("%w: %w: %v", ErrTransport, ErrDisconnected, err)
	}
	return n, nil
}

// Write implements Transport.
func (t *TCP) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if errors.Is(err, net.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

// Close implements Transport.
func (t *TCP) Close() error { return t.conn.Close() }
