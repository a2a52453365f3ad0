package transport

import (
	"fmt"
	"sync"
)

// Memory is an in-memory, loopback-style Transport for tests: bytes
// written with Inject become readable, and bytes written by the code
// under test land in Sent for assertions.
type Memory struct {
	mu     sync.Mutex
	cond   *sync.Cond
	rxBuf  []byte
	Sent   []byte
	closed bool
	failAs error
}

// NewMemory creates an empty in-memory transport.
func NewMemory() *Memory {
	m := &Memory{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Inject makes data available to the next Read calls, as if it had
// arrived over the wire.
func (m *Memory) Inject(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxBuf = append(m.rxBuf, data...)
	m.cond.Broadcast()
}

// Fail makes the next Read return err wrapped in ErrTransport, as if the
// underlying link had dropped, instead of blocking or delivering data.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAs = err
	m.cond.Broadcast()
}

// Read implements Transport, blocking until data is injected, a failure
// is armed with Fail, or the transport is closed.
func (m *Memory) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.rxBuf) == 0 && !m.closed && m.failAs == nil {
		m.cond.Wait()
	}
	if m.failAs != nil {
		err := m.failAs
		m.failAs = nil
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if m.closed && len(m.rxBuf) == 0 {
		return 0, ErrClosed
	}
	n := copy(p, m.rxBuf)
	m.rxBuf = m.rxBuf[n:]
	return n, nil
}

// Write implements Transport, appending to Sent.
func (m *Memory) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.Sent = append(m.Sent, p...)
	return len(p), nil
}

// Close implements Transport, unblocking any pending Read.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}
