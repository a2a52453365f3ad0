package crsf

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbsagent/crsfagent/pkg/transport"
)

func TestOrchestratorRepliesToPing(t *testing.T) {
	link := transport.NewMemory()
	orch := NewOrchestrator(link, false)

	done := make(chan error, 1)
	go func() { done <- orch.Run() }()

	ping := BuildPing(AddrBroadcast, AddrRemote)
	link.Inject(ping.Bytes())

	deadline := time.Now().Add(time.Second)
	for len(link.Sent) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	orch.Stop()
	<-done

	if len(link.Sent) == 0 {
		t.Fatal("orchestrator did not reply to PING")
	}
	p := NewParser(true)
	frames := p.Feed(link.Sent)
	if len(frames) != 1 || frames[0].Type() != TypeDeviceInfo {
		t.Fatalf("reply frames = %v, want exactly one DEVICE_INFO", frames)
	}
}

func TestOrchestratorReconnectsAfterTransportError(t *testing.T) {
	first := transport.NewMemory()
	second := transport.NewMemory()

	var dialed int32
	dial := func() (transport.Transport, error) {
		if atomic.AddInt32(&dialed, 1) == 1 {
			return first, nil
		}
		return second, nil
	}

	orch, err := NewReconnectingOrchestrator(dial, false)
	if err != nil {
		t.Fatalf("NewReconnectingOrchestrator() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- orch.Run() }()

	first.Fail(errors.New("cable pulled"))

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&dialed) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ping := BuildPing(AddrBroadcast, AddrRemote)
	second.Inject(ping.Bytes())

	for len(second.Sent) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	orch.Stop()
	<-done

	if n := atomic.LoadInt32(&dialed); n < 2 {
		t.Fatalf("dial() called %d times, want at least 2 (initial + reconnect)", n)
	}
	if len(second.Sent) == 0 {
		t.Fatal("orchestrator did not reply on the reconnected transport")
	}
	if len(first.Sent) != 0 {
		t.Error("orchestrator wrote to the failed transport after it was torn down")
	}
}

func TestOrchestratorEnqueueFrameQueueFull(t *testing.T) {
	link := transport.NewMemory()
	orch := NewOrchestrator(link, false)

	var lastErr error
	for i := 0; i < 64; i++ {
		lastErr = orch.EnqueueFrame(BuildPing(AddrBroadcast, AddrRemote))
	}
	if lastErr == nil {
		t.Error("EnqueueFrame() on a saturated queue: want an error once the buffer fills")
	}
}
