package crsf

import (
	"testing"
	"time"
)

func TestRegistryHandleDeviceInfoCreatesDevice(t *testing.T) {
	r := NewRegistry()
	f := Build(byte(TypeDeviceInfo), byte(LocalOrigin), byte(AddrRemote),
		'T', 'e', 's', 't', 0x00,
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C,
		5, 1)

	if err := r.HandleDeviceInfo(f); err != nil {
		t.Fatalf("HandleDeviceInfo() error = %v", err)
	}
	d, ok := r.Device(AddrRemote)
	if !ok {
		t.Fatal("Device() not found after HandleDeviceInfo()")
	}
	if d.Name != "Test" || d.SerialNumber != 0x01020304 {
		t.Errorf("Device = %+v, want Name=Test SerialNumber=0x01020304", d)
	}
}

func TestRegistryHandlePingRepliesWithLocalIdentity(t *testing.T) {
	r := NewRegistry()
	w := &testWriter{}
	ping := BuildPing(AddrBroadcast, AddrRemote)

	if err := r.HandlePing(ping, w); err != nil {
		t.Fatalf("HandlePing() error = %v", err)
	}
	if len(w.frames) != 1 {
		t.Fatalf("enqueued %d frames, want 1", len(w.frames))
	}
	identity, err := ParseDeviceInfo(w.frames[0])
	if err != nil {
		t.Fatalf("ParseDeviceInfo() on reply error = %v", err)
	}
	if identity.Name != LocalDeviceName {
		t.Errorf("reply Name = %q, want %q", identity.Name, LocalDeviceName)
	}
	if w.frames[0].Destination() != ping.Origin() {
		t.Errorf("reply Destination() = %v, want %v (the PING's origin)", w.frames[0].Destination(), ping.Origin())
	}
}

func TestRegistryHandleDeviceInfoTouchesExistingOnMatch(t *testing.T) {
	r := NewRegistry()
	f := Build(byte(TypeDeviceInfo), byte(LocalOrigin), byte(AddrRemote),
		'T', 'e', 's', 't', 0x00,
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C,
		5, 1)
	if err := r.HandleDeviceInfo(f); err != nil {
		t.Fatalf("first HandleDeviceInfo() error = %v", err)
	}
	first, _ := r.Device(AddrRemote)
	firstSeen := first.LastSeen

	time.Sleep(time.Millisecond)
	if err := r.HandleDeviceInfo(f); err != nil {
		t.Fatalf("second HandleDeviceInfo() error = %v", err)
	}
	second, _ := r.Device(AddrRemote)
	if second != first {
		t.Error("HandleDeviceInfo() replaced the device on an identity match, want the same instance touched")
	}
	if !second.LastSeen.After(firstSeen) {
		t.Error("LastSeen not updated on a matching re-announcement")
	}
}

func TestRegistryHandleParamEntryRoutesToKnownDevice(t *testing.T) {
	r := NewRegistry()
	info := Build(byte(TypeDeviceInfo), byte(LocalOrigin), byte(AddrRemote),
		'T', 'e', 's', 't', 0x00,
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C,
		5, 1)
	if err := r.HandleDeviceInfo(info); err != nil {
		t.Fatalf("HandleDeviceInfo() error = %v", err)
	}

	body := []byte{0x00, byte(KindFolder)}
	body = append(body, []byte("Root")...)
	body = append(body, 0x00, 1, 0xFF)
	entry := buildParamEntryFrame(LocalOrigin, AddrRemote, 0, 0, body)
	if err := r.HandleParamEntry(entry); err != nil {
		t.Fatalf("HandleParamEntry() error = %v", err)
	}

	d, _ := r.Device(AddrRemote)
	if d.Menu[0] == nil || !d.Menu[0].IsFolder() {
		t.Error("PARAM_ENTRY was not routed into the device's menu")
	}
}

func TestRegistryHandleParamEntryIgnoresUnknownOrigin(t *testing.T) {
	r := NewRegistry()
	body := []byte{0x00, byte(KindFolder), 0x00, 1, 0xFF}
	entry := buildParamEntryFrame(LocalOrigin, AddrRemote, 0, 0, body)
	if err := r.HandleParamEntry(entry); err != nil {
		t.Errorf("HandleParamEntry() for an unknown origin error = %v, want nil (silently ignored)", err)
	}
}

func TestRegistryEvictIdle(t *testing.T) {
	r := NewRegistry()
	d := NewDevice(testIdentity(0), AddrRemote)
	d.LastSeen = time.Now().Add(-IdleTimeout - time.Second)
	r.devices[AddrRemote] = d

	evicted := r.EvictIdle()
	if len(evicted) != 1 || evicted[0] != AddrRemote {
		t.Fatalf("EvictIdle() = %v, want [%v]", evicted, AddrRemote)
	}
	if _, ok := r.Device(AddrRemote); ok {
		t.Error("device still present after EvictIdle()")
	}
}

func TestRegistryDevicesSortedByOrigin(t *testing.T) {
	r := NewRegistry()
	r.devices[AddrVTX] = NewDevice(testIdentity(0), AddrVTX)
	r.devices[AddrRemote] = NewDevice(testIdentity(0), AddrRemote)

	devices := r.Devices()
	if len(devices) != 2 {
		t.Fatalf("Devices() returned %d, want 2", len(devices))
	}
	if devices[0].Origin != AddrVTX || devices[1].Origin != AddrRemote {
		t.Errorf("Devices() order = [%v, %v], want sorted by origin (0x%02x before 0x%02x)", devices[0].Origin, devices[1].Origin, byte(AddrVTX), byte(AddrRemote))
	}
}
