package crsf

import "errors"

// Error taxonomy for the CRSF core. Framing and decode errors are
// recovered locally (logged and skipped by the caller); InvalidType and
// ValueOutOfRange propagate to the API caller.
var (
	ErrFraming          = errors.New("crsf: framing error")
	ErrCRCMismatch      = errors.New("crsf: crc mismatch")
	ErrMalformedPayload = errors.New("crsf: malformed payload")
	ErrChunkSequence    = errors.New("crsf: chunk sequence error")
	ErrInvalidType      = errors.New("crsf: invalid parameter type")
	ErrValueOutOfRange  = errors.New("crsf: value out of range")
)
