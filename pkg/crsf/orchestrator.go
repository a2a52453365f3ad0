package crsf

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tbsagent/crsfagent/pkg/transport"
)

const pingInterval = 5 * time.Second
const pollTickInterval = 10 * time.Millisecond
const evictTickInterval = IdleTimeout / 2
const reconnectDelay = 2 * time.Second

// Dialer opens a fresh transport connection. The orchestrator calls it
// again whenever the current transport reports an unrecoverable error,
// backing off between failed attempts, so a dropped cable or reset
// socket doesn't bring the whole agent down.
type Dialer func() (transport.Transport, error)

// Orchestrator drives one transport's byte stream through a Parser and
// dispatches decoded frames to a Registry, while a background loop
// emits periodic PINGs and polls each known device's menu. It implements
// FrameWriter so devices and the registry can queue replies without
// holding a reference back to it.
type Orchestrator struct {
	mu        sync.Mutex
	transport transport.Transport
	dial      Dialer

	parser   *Parser
	registry *Registry
	hist     *LQIHistory

	// Verbose, when true, logs every received frame and its explainer
	// text.
	Verbose bool

	outCh  chan Frame
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewOrchestrator wires t to a fresh parser and device registry. The
// transport is used as-is for the lifetime of Run; a transport error
// ends Run rather than reconnecting. Use NewReconnectingOrchestrator to
// run against a link that should be redialed on failure.
func NewOrchestrator(t transport.Transport, verbose bool) *Orchestrator {
	return &Orchestrator{
		transport: t,
		parser:    NewParser(false),
		registry:  NewRegistry(),
		hist:      NewLQIHistory(),
		Verbose:   verbose,
		outCh:     make(chan Frame, 32),
		stopCh:    make(chan struct{}),
	}
}

// NewReconnectingOrchestrator dials an initial transport via dial, and
// keeps dial around so Run can redial from scratch whenever the current
// transport fails with an error wrapping transport.ErrTransport.
func NewReconnectingOrchestrator(dial Dialer, verbose bool) (*Orchestrator, error) {
	t, err := dial()
	if err != nil {
		return nil, err
	}
	o := NewOrchestrator(t, verbose)
	o.dial = dial
	return o, nil
}

// Registry exposes the orchestrator's device registry, e.g. for a UI
// that lists known devices.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// EnqueueFrame implements FrameWriter by queuing f for the write loop.
// It returns an error instead of blocking if the queue is saturated,
// so a stalled link can't wedge the poll loop.
func (o *Orchestrator) EnqueueFrame(f Frame) error {
	select {
	case o.outCh <- f:
		return nil
	default:
		return fmt.Errorf("crsf: output queue full, dropping %s frame", f.Type())
	}
}

// Run starts the write and poll loops and runs the read loop until the
// transport closes or Stop is called. If the orchestrator was built
// with NewReconnectingOrchestrator, a transport error instead tears the
// connection down and redials from scratch, so the agent rides out a
// dropped cable or a reset socket rather than exiting.
func (o *Orchestrator) Run() error {
	o.wg.Add(2)
	go o.writeLoop()
	go o.pollLoop()
	defer o.wg.Wait()
	defer o.Stop() // runs before wg.Wait, so the write and poll loops exit

	for {
		err := o.readLoop()
		if err == nil {
			return nil
		}
		if o.dial == nil || !errors.Is(err, transport.ErrTransport) {
			return err
		}
		log.Printf("crsf: transport error, reconnecting: %v", err)
		o.currentTransport().Close()
		link, stopped := o.redial()
		if stopped {
			return nil
		}
		o.mu.Lock()
		o.transport = link
		o.mu.Unlock()
		o.parser.Reset()
	}
}

// redial retries dial, backing off between attempts, until it succeeds
// or Stop is called. stopped reports the latter.
func (o *Orchestrator) redial() (link transport.Transport, stopped bool) {
	for {
		select {
		case <-o.stopCh:
			return nil, true
		default:
		}
		link, err := o.dial()
		if err == nil {
			return link, false
		}
		log.Printf("crsf: reconnect failed, retrying in %s: %v", reconnectDelay, err)
		select {
		case <-o.stopCh:
			return nil, true
		case <-time.After(reconnectDelay):
		}
	}
}

// Stop closes the transport and unblocks all loops.
func (o *Orchestrator) Stop() {
	o.once.Do(func() {
		close(o.stopCh)
		o.currentTransport().Close()
	})
}

func (o *Orchestrator) currentTransport() transport.Transport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transport
}

func (o *Orchestrator) readLoop() error {
	buf := make([]byte, 512)
	for {
		select {
		case <-o.stopCh:
			return nil
		default:
		}
		n, err := o.currentTransport().Read(buf)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("crsf: transport read: %w", err)
		}
		if n == 0 {
			continue
		}
		for _, f := range o.parser.Feed(buf[:n]) {
			o.dispatch(f)
		}
	}
}

func (o *Orchestrator) dispatch(f Frame) {
	if o.Verbose {
		log.Println(f.String())
		if text := Explain(f, o.hist); text != "" {
			log.Println("  " + text)
		}
	} else if f.Type() == TypeLinkStats {
		if payload := f.Payload(); len(payload) >= 10 {
			o.hist.Record(payload[2], payload[8])
		}
	}

	var err error
	switch f.Type() {
	case TypePing:
		err = o.registry.HandlePing(f, o)
	case TypeDeviceInfo:
		err = o.registry.HandleDeviceInfo(f)
	case TypeParamEntry:
		err = o.registry.HandleParamEntry(f)
	}
	if err != nil {
		log.Printf("crsf: handling %s: %v", f.Type(), err)
	}
}

func (o *Orchestrator) writeLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.stopCh:
			return
		case f := <-o.outCh:
			if _, err := o.currentTransport().Write(f.Bytes()); err != nil {
				log.Printf("crsf: transport write: %v", err)
			}
		}
	}
}

func (o *Orchestrator) pollLoop() {
	defer o.wg.Done()
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	evictTicker := time.NewTicker(evictTickInterval)
	defer evictTicker.Stop()
	pollTicker := time.NewTicker(pollTickInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-pingTicker.C:
			if err := o.EnqueueFrame(BuildPing(AddrBroadcast, LocalOrigin)); err != nil {
				log.Printf("crsf: %v", err)
			}
		case <-evictTicker.C:
			for _, addr := range o.registry.EvictIdle() {
				log.Printf("crsf: device %s went idle, evicted", addr)
			}
		case <-pollTicker.C:
			for _, d := range o.registry.Devices() {
				if err := d.Poll(0, o); err != nil {
					log.Printf("crsf: polling %s: %v", d.Origin, err)
				}
			}
		}
	}
}
