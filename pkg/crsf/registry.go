package crsf

import (
	"sort"
	"sync"
	"time"
)

// Registry tracks every CRSF device observed on the bus, keyed by its
// origin address. Every method takes the mutex, so the device map can be
// used from more than one goroutine: the orchestrator's read loop adds
// and touches devices while its poll loop evicts idle ones.
type Registry struct {
	mu      sync.Mutex
	devices map[Address]*Device
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[Address]*Device)}
}

// HandlePing replies to a received PING with a synthesized DEVICE_INFO
// advertising the local pseudo-device.
func (r *Registry) HandlePing(f Frame, w FrameWriter) error {
	reply := BuildDeviceInfo(f.Origin(), LocalOrigin)
	return w.EnqueueFrame(reply)
}

// HandleDeviceInfo processes a received DEVICE_INFO frame: touching
// last-seen on an identity match, or creating/replacing the device
// otherwise.
func (r *Registry) HandleDeviceInfo(f Frame) error {
	identity, err := ParseDeviceInfo(f)
	if err != nil {
		return err
	}
	origin := f.Origin()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.devices[origin]; ok && existing.Matches(origin, identity) {
		existing.LastSeen = time.Now()
		return nil
	}
	r.devices[origin] = NewDevice(identity, origin)
	return nil
}

// HandleParamEntry routes a PARAM_ENTRY frame to the device it came
// from, if that device is known.
func (r *Registry) HandleParamEntry(f Frame) error {
	origin := f.Origin()
	r.mu.Lock()
	d, ok := r.devices[origin]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return d.ProcessFrame(f)
}

// Device returns the device at origin, if known.
func (r *Registry) Device(origin Address) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[origin]
	return d, ok
}

// Devices returns a snapshot of all known devices, sorted by origin.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// EvictIdle removes every device whose LastSeen age exceeds IdleTimeout
// and returns the addresses that were evicted.
func (r *Registry) EvictIdle() []Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []Address
	for origin, d := range r.devices {
		if time.Since(d.LastSeen) > IdleTimeout {
			delete(r.devices, origin)
			evicted = append(evicted, origin)
		}
	}
	return evicted
}
