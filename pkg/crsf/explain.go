package crsf

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// TicksPerMicrosecond is the LOG frame's tick rate.
const TicksPerMicrosecond = 20

const (
	shortLQIWindow = 451        // ~90s at one LINK_STATS per ~200ms
	longLQIWindow  = 10 * shortLQIWindow
)

type lqiSample struct {
	at  time.Time
	lqi int
}

// LQIHistory keeps a short and long rolling window of uplink/downlink
// Link Quality Indicator samples, for the LINK_STATS explainer's trend
// summary. Unlike the reference client's module-level lists, this is an
// explicit, independently constructible type.
type LQIHistory struct {
	mu   sync.Mutex
	up   []lqiSample
	down []lqiSample
}

// NewLQIHistory creates an empty LQI history.
func NewLQIHistory() *LQIHistory { return &LQIHistory{} }

// Record appends one LINK_STATS sample.
func (h *LQIHistory) Record(upLQI, downLQI byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.up = appendBounded(h.up, lqiSample{now, int(upLQI)}, longLQIWindow)
	h.down = appendBounded(h.down, lqiSample{now, int(downLQI)}, longLQIWindow)
}

func appendBounded(s []lqiSample, v lqiSample, max int) []lqiSample {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func windowAverage(samples []lqiSample, window int) (avg float64, span time.Duration) {
	if len(samples) == 0 {
		return 0, 0
	}
	start := 0
	if len(samples) > window {
		start = len(samples) - window
	}
	win := samples[start:]
	sum := 0
	for _, s := range win {
		sum += s.lqi
	}
	avg = float64(sum) / float64(len(win))
	span = win[len(win)-1].at.Sub(win[0].at)
	return
}

// Summary renders the short/long window average LQI for both link
// directions, or "" until enough samples have accumulated.
func (h *LQIHistory) Summary() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.up) < 2 || len(h.down) < 2 {
		return ""
	}
	shortUp, shortUpSpan := windowAverage(h.up, shortLQIWindow)
	longUp, longUpSpan := windowAverage(h.up, longLQIWindow)
	shortDown, shortDownSpan := windowAverage(h.down, shortLQIWindow)
	longDown, longDownSpan := windowAverage(h.down, longLQIWindow)
	return fmt.Sprintf(
		"Uplink LQI=%.2f/%.1fs, %.2f/%.1fs; Downlink LQI=%.2f/%.1fs, %.2f/%.1fs",
		shortUp, shortUpSpan.Seconds(), longUp, longUpSpan.Seconds(),
		shortDown, shortDownSpan.Seconds(), longDown, longDownSpan.Seconds(),
	)
}

// ExplainLinkStats formats a LINK_STATS payload for human consumption
// and records its LQI samples into hist.
func ExplainLinkStats(payload []byte, hist *LQIHistory) string {
	if len(payload) < 10 {
		return ""
	}
	upRSSI1, upRSSI2, upLQI, upSNR := payload[0], payload[1], payload[2], int8(payload[3])
	ant, rfMode, rfPower := payload[4], payload[5], payload[6]
	downRSSI, downLQI, downSNR := payload[7], payload[8], int8(payload[9])

	hist.Record(upLQI, downLQI)

	s := fmt.Sprintf("Uplink: RSSI=-%d/-%d, LQI=%3d%%, SNR=%d, Ant.=%d, RFmode=%d, RFpwr=%d; Downlink: RSSI=-%d, LQI=%3d%%, SNR=%d",
		upRSSI1, upRSSI2, upLQI, upSNR, ant, rfMode, rfPower, downRSSI, downLQI, downSNR)
	if summary := hist.Summary(); summary != "" {
		s += "\n    History: " + summary
	}
	return s
}

// DecodePPMChannels unpacks sixteen channels from a PPM payload as
// sixteen 11-bit values, LSB-first across bytes, converted to
// microseconds.
func DecodePPMChannels(payload []byte) []int {
	const numChannels = 16
	channels := make([]int, numChannels)

	var bitsMerged uint32
	var bitsAvailable uint
	bytePos := 0

	for ch := 0; ch < numChannels; ch++ {
		for bitsAvailable < 11 && bytePos < len(payload) {
			bitsMerged |= uint32(payload[bytePos]) << bitsAvailable
			bitsAvailable += 8
			bytePos++
		}
		ticks := int(bitsMerged & 0x7FF)
		bitsMerged >>= 11
		if bitsAvailable >= 11 {
			bitsAvailable -= 11
		} else {
			bitsAvailable = 0
		}
		channels[ch] = (ticks-992)*5/8 + 1500
	}
	return channels
}

// ExplainLog formats a LOG frame's tick count and message text (or hex
// dump, if the message isn't NUL-terminated text).
func ExplainLog(payload []byte) string {
	if len(payload) < 5 {
		return ""
	}
	ticks := binary.BigEndian.Uint32(payload[0:4])
	msg := payload[4:]

	var text string
	if len(msg) > 0 && msg[len(msg)-1] == 0x00 {
		text = string(msg[:len(msg)-1])
	} else {
		for i, b := range msg {
			if i > 0 {
				text += " "
			}
			text += fmt.Sprintf("%02x", b)
		}
	}
	ms := ticks / (TicksPerMicrosecond * 1000)
	return fmt.Sprintf("tick %d (%d ms): %s", ticks, ms, text)
}

// ExplainDeviceInfo formats a decoded DEVICE_INFO identity.
func ExplainDeviceInfo(identity DeviceIdentity) string {
	return fmt.Sprintf("Device: %s, S/N=0x%x HW_ID=0x%x, SW_ID=0x%x, param count=%d, v=%d",
		identity.Name, identity.SerialNumber, identity.HardwareID, identity.FirmwareID,
		identity.ParamCount, identity.ParamVersion)
}

// ExplainParamEntryInfo formats a single-frame PARAM_ENTRY of kind INFO
// as "name: value", or "" if the frame isn't a single-frame INFO entry.
func ExplainParamEntryInfo(f Frame) string {
	payload := f.Payload()
	if len(payload) < 5 || payload[1] != 0 {
		return ""
	}
	if Kind(payload[3]&^hiddenBit) != KindInfo {
		return ""
	}
	rest := payload[4:]
	nameEnd := indexByte(rest, 0x00)
	if nameEnd < 0 {
		return ""
	}
	name := string(rest[:nameEnd])
	valBytes := rest[nameEnd+1:]
	valEnd := indexByte(valBytes, 0x00)
	if valEnd < 0 {
		return ""
	}
	return name + ": " + string(valBytes[:valEnd])
}

// Explain returns a human-readable multi-line addendum for selected
// frame types, or "" for anything it doesn't know how to explain. It is
// a pure function of the frame and the supplied LQI history.
func Explain(f Frame, hist *LQIHistory) string {
	switch f.Type() {
	case TypePPM:
		channels := DecodePPMChannels(f.Payload())
		return fmt.Sprintf("CH1..16: %v", channels)
	case TypePPM3:
		return "CRSFv3 packed channels (decode not implemented)"
	case TypeLinkStats:
		return ExplainLinkStats(f.Payload(), hist)
	case TypeDeviceInfo:
		identity, err := ParseDeviceInfo(f)
		if err != nil {
			return ""
		}
		return ExplainDeviceInfo(identity)
	case TypeParamEntry:
		return ExplainParamEntryInfo(f)
	case TypeLog:
		return ExplainLog(f.Payload())
	default:
		return ""
	}
}
