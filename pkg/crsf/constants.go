package crsf

// FrameType identifies the payload carried by a Frame (the byte at offset 2).
type FrameType byte

// CRSF frame types, as broadcast on the bus.
const (
	TypeGPS           FrameType = 0x02
	TypeGPST          FrameType = 0x03
	TypeBatt          FrameType = 0x08
	TypeVTXTelemetry  FrameType = 0x10
	TypeLinkStats     FrameType = 0x14
	TypePPM           FrameType = 0x16
	TypePPM3          FrameType = 0x17
	TypeLinkStatsRX   FrameType = 0x1C
	TypeLinkStatsTX   FrameType = 0x1D
	TypeAttitude      FrameType = 0x1E
	TypeMADD          FrameType = 0x1F
	TypePing          FrameType = 0x28
	TypeDeviceInfo    FrameType = 0x29
	TypeParamEntry    FrameType = 0x2B
	TypeParamRead     FrameType = 0x2C
	TypeParamWrite    FrameType = 0x2D
	TypeCommand       FrameType = 0x32
	TypeLog           FrameType = 0x34
	TypeRemote        FrameType = 0x3A
	TypeMAVLinkEnvelope FrameType = 0xAA
)

var frameTypeNames = map[FrameType]string{
	TypeGPS:             "GPS",
	TypeGPST:            "GPST",
	TypeBatt:            "BATT",
	TypeVTXTelemetry:    "VTX_TEL",
	TypeLinkStats:       "LINK_STATS",
	TypePPM:             "PPM",
	TypePPM3:            "PPM3",
	TypeLinkStatsRX:     "LINK_STATS_RX",
	TypeLinkStatsTX:     "LINK_STATS_TX",
	TypeAttitude:        "ATTD",
	TypeMADD:            "MADD",
	TypePing:            "PING",
	TypeDeviceInfo:      "DEVICE_INFO",
	TypeParamEntry:      "PARAM_ENTRY",
	TypeParamRead:       "PARAM_READ",
	TypeParamWrite:      "PARAM_WRITE",
	TypeCommand:         "CMD",
	TypeLog:             "LOG",
	TypeRemote:          "REMOTE",
	TypeMAVLinkEnvelope: "MAVLINK_ENV",
}

// String returns the human-readable name of a frame type, or a hex fallback.
func (t FrameType) String() string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return hexByte(byte(t))
}

// Address identifies a device on the CRSF bus.
type Address byte

// Well-known CRSF device addresses.
const (
	AddrBroadcast Address = 0x00
	AddrCloud     Address = 0x0E
	AddrWiFi      Address = 0x12
	AddrRemote    Address = 0xEA
	AddrRX        Address = 0xEC
	AddrTX        Address = 0xEE
	AddrFC        Address = 0xC8
	AddrVTX       Address = 0xCE
)

var addressNames = map[Address]string{
	AddrBroadcast: "BROADCAST",
	AddrCloud:     "CLOUD",
	AddrWiFi:      "WIFI",
	AddrRemote:    "REMOTE",
	AddrRX:        "RX",
	AddrTX:        "TX",
	AddrFC:        "FC",
	AddrVTX:       "VTX",
}

// String returns the human-readable name of a device address, or a hex fallback.
func (a Address) String() string {
	if name, ok := addressNames[a]; ok {
		return name
	}
	return hexByte(byte(a))
}

// LocalOrigin is the address this agent presents as when it answers a PING.
const LocalOrigin = AddrFC

// LocalDeviceName is the name advertised in the agent's synthesized DEVICE_INFO reply.
const LocalDeviceName = "Agent Python"

// Fixed identity fields advertised by the local pseudo-device.
const (
	LocalSerialNumber   = 0x12345678
	LocalHardwareID     = 0x01234502
	LocalFirmwareID     = 0x00001111
	LocalParamCount     = 0
	LocalParamVersion   = 1
)

// Kind identifies the type of a parameter-entry's value.
type Kind byte

// CRSF parameter kinds (low 7 bits of the type-and-hidden byte).
const (
	KindUint8         Kind = 0
	KindInt8          Kind = 1
	KindUint16        Kind = 2
	KindInt16         Kind = 3
	KindUint32        Kind = 4
	KindInt32         Kind = 5
	KindFloat         Kind = 8
	KindTextSelection Kind = 9
	KindString        Kind = 10
	KindFolder        Kind = 11
	KindInfo          Kind = 12
	KindCommand       Kind = 13
	KindOutOfRange    Kind = 127
)

// hiddenBit marks a hidden parameter in the type-and-hidden byte.
const hiddenBit = 0x80

// MenuCommand is the sub-state carried by a COMMAND parameter's status
// field, and by the first payload byte of a PARAM_WRITE targeting one.
type MenuCommand byte

const (
	MenuCommandReady               MenuCommand = 0
	MenuCommandStart               MenuCommand = 1
	MenuCommandProgress            MenuCommand = 2
	MenuCommandConfirmationNeeded  MenuCommand = 3
	MenuCommandConfirm             MenuCommand = 4
	MenuCommandCancel              MenuCommand = 5
	MenuCommandPoll                MenuCommand = 6
)

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}
