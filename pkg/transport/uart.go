package transport

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate CRSF runs at on a direct flight
// controller link.
const DefaultBaudRate = 416666

// UART is a Transport backed by a physical or USB-CDC serial port. A
// dedicated goroutine reads the port and hands each read to Read() over
// a channel that buffers up to 64 reads; once that buffer is full, the
// goroutine waits for Read() to take one before it reads the port again.
type UART struct {
	port serial.Port

	rxCh      chan []byte
	errCh     chan error
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	leftover []byte
}

// OpenUART opens device at baud with 8-N-1 framing, the configuration
// CRSF links always use.
func OpenUART(device string, baud int) (*UART, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}
	u := &UART{
		port:     port,
		rxCh:     make(chan []byte, 64),
		errCh:    make(chan error, 1),
		stopChan: make(chan struct{}),
	}
	u.wg.Add(1)
	go u.readLoop()
	return u, nil
}

func (u *UART) readLoop() {
	defer u.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-u.stopChan:
			return
		default:
		}
		n, err := u.port.Read(buf)
		if err != nil {
			select {
			case u.errCh <- err:
			default:
			}
			return
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case u.rxCh <- chunk:
		case <-u.stopChan:
			return
		}
	}
}

// Read implements Transport.
func (u *UART) Read(p []byte) (int, error) {
	if len(u.leftover) > 0 {
		n := copy(p, u.leftover)
		u.leftover = u.leftover[n:]
		return n, nil
	}
	select {
	case chunk, ok := <-u.rxCh:
		if !ok {
			return 0, ErrClosed
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			u.leftover = chunk[n:]
		}
		return n, nil
	case err := <-u.errCh:
		select {
		case <-u.stopChan:
			return 0, ErrClosed // the port error came from Close
		default:
		}
		return 0, fmt.Errorf("%w: %w: %v", ErrTransport, ErrDisconnected, err)
	case <-u.stopChan:
		return 0, ErrClosed
	}
}

// Write implements Transport.
func (u *UART) Write(p []byte) (int, error) {
	select {
	case <-u.stopChan:
		return 0, ErrClosed
	default:
	}
	return u.port.Write(p)
}

// Close implements Transport. Closing the port first unblocks a reader
// goroutine waiting in port.Read, so the wait below cannot hang.
func (u *UART) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.stopChan)
		err = u.port.Close()
	})
	u.wg.Wait()
	return err
}
