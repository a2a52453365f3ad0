package crsf

import (
	"fmt"
	"time"
)

// Scheduler tuning constants, as observed on real CRSF buses.
const (
	PollPeriod      = 2 * time.Second
	ResponseSpeedup = 0.95
	FolderRefresh   = 10 * time.Second
	ParamTimeout    = 120 * time.Second
	OnlineThreshold = 30 * time.Second
	IdleTimeout     = 60 * time.Second
)

// FrameWriter is the narrow capability a Device needs to emit outgoing
// frames, so it never has to hold a back-reference to the orchestrator.
type FrameWriter interface {
	EnqueueFrame(Frame) error
}

// Device mirrors one remote CRSF device: its identity, liveness, and a
// local copy of its parameter menu kept fresh by polling.
type Device struct {
	Origin       Address
	Name         string
	SerialNumber uint32
	HardwareID   uint32
	FirmwareID   uint32
	ParamCount   byte
	ParamVersion byte
	LastSeen     time.Time

	Menu []*Parameter // index 0 is the root folder

	lastReadAt    time.Time
	lastReadIndex int
}

// NewDevice constructs a Device from a decoded DEVICE_INFO identity seen
// from origin.
func NewDevice(identity DeviceIdentity, origin Address) *Device {
	return &Device{
		Origin:        origin,
		Name:          identity.Name,
		SerialNumber:  identity.SerialNumber,
		HardwareID:    identity.HardwareID,
		FirmwareID:    identity.FirmwareID,
		ParamCount:    identity.ParamCount,
		ParamVersion:  identity.ParamVersion,
		LastSeen:      time.Now(),
		Menu:          make([]*Parameter, int(identity.ParamCount)+1),
		lastReadIndex: -1,
	}
}

// Matches reports whether identity, from origin, describes the same
// device (same origin and identical identity fields).
func (d *Device) Matches(origin Address, identity DeviceIdentity) bool {
	return origin == d.Origin &&
		identity.Name == d.Name &&
		identity.SerialNumber == d.SerialNumber &&
		identity.HardwareID == d.HardwareID &&
		identity.FirmwareID == d.FirmwareID &&
		identity.ParamCount == d.ParamCount &&
		identity.ParamVersion == d.ParamVersion
}

// Online reports whether this device has been seen within
// OnlineThreshold.
func (d *Device) Online() bool { return time.Since(d.LastSeen) <= OnlineThreshold }

// Poll picks at most one parameter to query in folderIndex and emits one
// PARAM_READ frame via w. Selection policy: refresh the focused folder
// if stale, else scan its children for anything needing attention, else
// fall back to the child with the oldest ObtainedAt.
func (d *Device) Poll(folderIndex int, w FrameWriter) error {
	if folderIndex < 0 || folderIndex >= len(d.Menu) {
		return fmt.Errorf("crsf: invalid folder index %d (menu has %d entries)", folderIndex, len(d.Menu))
	}
	if time.Since(d.lastReadAt) < PollPeriod {
		return nil
	}

	folder := d.Menu[folderIndex]
	if folder == nil {
		folder = NewParameter(folderIndex)
		d.Menu[folderIndex] = folder
	} else if !folder.ObtainedAt.IsZero() && folder.Kind != KindFolder {
		return fmt.Errorf("%w: folder %d decoded as %v, not FOLDER", ErrInvalidType, folderIndex, folder.Kind)
	}

	var target *Parameter
	if folder.ObtainedAt.IsZero() || time.Since(folder.ObtainedAt) > FolderRefresh {
		target = folder
	} else {
		var oldest *Parameter
		for _, child := range folder.Children {
			if child < 0 || child >= len(d.Menu) {
				continue
			}
			cp := d.Menu[child]
			switch {
			case cp == nil || (cp.ObtainedAt.IsZero() && time.Since(cp.CreatedAt) > ParamTimeout):
				cp = NewParameter(child)
				d.Menu[child] = cp
				target = cp
			case cp.HasPendingChunks():
				target = cp
			default:
				// A zero ObtainedAt (read sent, reply never arrived) is
				// infinitely stale and so always wins this comparison.
				if oldest == nil || cp.ObtainedAt.Before(oldest.ObtainedAt) {
					oldest = cp
				}
			}
			if target != nil {
				break
			}
		}
		if target == nil {
			target = oldest
		}
	}

	if target == nil {
		return nil
	}

	d.lastReadAt = time.Now()
	d.lastReadIndex = target.Num
	return w.EnqueueFrame(target.CreateReadFrame(d.Origin, LocalOrigin))
}

// ProcessFrame routes a PARAM_ENTRY frame for this device to the
// parameter it names, creating the slot on demand. Unknown indices are
// silently ignored. A matching response compresses the poll period so
// the next poll can proceed almost immediately.
func (d *Device) ProcessFrame(f Frame) error {
	if f.Type() != TypeParamEntry {
		return nil
	}
	payload := f.Payload()
	if len(payload) < 1 {
		return fmt.Errorf("%w: empty PARAM_ENTRY payload", ErrMalformedPayload)
	}
	paramNum := int(payload[0])

	if paramNum == d.lastReadIndex {
		speedup := time.Duration(float64(PollPeriod) * ResponseSpeedup)
		d.lastReadAt = d.lastReadAt.Add(-speedup)
	}

	if paramNum < 0 || paramNum >= len(d.Menu) {
		return nil
	}
	if d.Menu[paramNum] == nil {
		d.Menu[paramNum] = NewParameter(paramNum)
	}
	return d.Menu[paramNum].ProcessEntryFrame(f)
}
