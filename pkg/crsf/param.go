package crsf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Parameter holds everything known about one entry in a remote device's
// menu tree: its assembly state while chunks are still arriving, and its
// decoded, kind-specific fields once complete.
type Parameter struct {
	Num          int
	ParentFolder int
	Kind         Kind
	Name         string
	Hidden       bool

	// FOLDER
	Children []int

	// STRING / INFO
	StringValue string
	MaxLength   byte

	// FLOAT
	Value        int32
	Min          int32
	Max          int32
	Default      int32
	DecimalPoint int8
	StepSize     int32
	Unit         string

	// TEXT_SELECTION
	Options    []string
	SelValue   byte
	SelMin     byte
	SelMax     byte
	SelDefault byte

	// COMMAND
	Status  byte
	Timeout float64
	Info    string

	chunks [][]byte

	CreatedAt  time.Time
	ObtainedAt time.Time
}

// NewParameter creates an empty parameter entry, timestamped now.
func NewParameter(num int) *Parameter {
	return &Parameter{Num: num, CreatedAt: time.Now()}
}

// IsFolder reports whether this parameter has been decoded as a FOLDER.
func (p *Parameter) IsFolder() bool { return !p.ObtainedAt.IsZero() && p.Kind == KindFolder }

// HasPendingChunks reports whether a chunk buffer is open (assembly in
// progress) and at least one slot is still empty.
func (p *Parameter) HasPendingChunks() bool {
	if p.chunks == nil {
		return false
	}
	for _, c := range p.chunks {
		if c == nil {
			return true
		}
	}
	return false
}

// NextChunkIndex returns the chunk index the scheduler should request
// next: the first empty slot, or 0 if no assembly is in progress.
func (p *Parameter) NextChunkIndex() byte {
	for i, c := range p.chunks {
		if c == nil {
			return byte(i)
		}
	}
	return 0
}

// CreateReadFrame builds the PARAM_READ frame that requests the next
// needed chunk of this parameter from destination.
func (p *Parameter) CreateReadFrame(destination, origin Address) Frame {
	return BuildParamRead(destination, origin, byte(p.Num), p.NextChunkIndex())
}

// ProcessEntryFrame feeds a PARAM_ENTRY frame into this parameter's
// assembly state, decoding it once complete. Errors are recoverable:
// the caller should log and let the scheduler retry.
func (p *Parameter) ProcessEntryFrame(f Frame) error {
	if f.Type() != TypeParamEntry {
		return fmt.Errorf("%w: expected PARAM_ENTRY, got %s", ErrMalformedPayload, f.Type())
	}
	payload := f.Payload()
	if len(payload) < 2 {
		return fmt.Errorf("%w: PARAM_ENTRY payload too short", ErrMalformedPayload)
	}
	paramNum := payload[0]
	chunksRemaining := payload[1]

	if chunksRemaining > 0 {
		if p.chunks == nil {
			p.chunks = make([][]byte, int(chunksRemaining)+1)
		}
		slot := len(p.chunks) - int(chunksRemaining) - 1
		if slot < 0 || slot >= len(p.chunks) {
			err := fmt.Errorf("%w: chunk index %d out of range for buffer of %d", ErrChunkSequence, slot, len(p.chunks))
			p.chunks = nil
			return err
		}
		p.chunks[slot] = append([]byte(nil), payload...)
		return nil
	}

	var reassembled []byte
	chunked := false
	if p.chunks != nil {
		p.chunks[len(p.chunks)-1] = append([]byte(nil), payload...)
		if err := p.validateChunks(paramNum); err != nil {
			p.chunks = nil
			return err
		}
		reassembled = p.reassembleChunks()
		p.chunks = nil
		chunked = true
	} else {
		reassembled = payload
	}

	return p.decode(reassembled, chunked)
}

// validateChunks checks that no slot is empty, that recorded
// chunks_remaining values strictly decrease from len-1 to 0, and that
// every slot's param_num matches.
func (p *Parameter) validateChunks(paramNum byte) error {
	expected := byte(len(p.chunks) - 1)
	for _, slot := range p.chunks {
		if slot == nil {
			return fmt.Errorf("%w: missing chunk", ErrChunkSequence)
		}
		if len(slot) < 2 {
			return fmt.Errorf("%w: short chunk", ErrChunkSequence)
		}
		if slot[0] != paramNum {
			return fmt.Errorf("%w: param_num mismatch in chunk (got %d want %d)", ErrChunkSequence, slot[0], paramNum)
		}
		if slot[1] != expected {
			return fmt.Errorf("%w: chunks_remaining out of sequence (got %d want %d)", ErrChunkSequence, slot[1], expected)
		}
		if expected > 0 {
			expected--
		}
	}
	return nil
}

// reassembleChunks concatenates the first chunk's [param_num, 0] prefix
// with every chunk's bytes from offset 2 onward.
func (p *Parameter) reassembleChunks() []byte {
	first := p.chunks[0]
	out := []byte{first[0], 0}
	for _, c := range p.chunks {
		out = append(out, c[2:]...)
	}
	return out
}

// decode parses a reassembled (or single-frame) PARAM_ENTRY payload and
// fills in this parameter's kind-specific fields.
func (p *Parameter) decode(payload []byte, chunked bool) error {
	if len(payload) < 5 {
		return fmt.Errorf("%w: PARAM_ENTRY entry too short", ErrMalformedPayload)
	}
	parentFolder := payload[2]
	typeByte := payload[3]
	hidden := typeByte&hiddenBit != 0
	kind := Kind(typeByte &^ hiddenBit)

	nul := indexByte(payload[4:], 0x00)
	if nul < 0 {
		return fmt.Errorf("%w: parameter name not NUL-terminated", ErrMalformedPayload)
	}
	name := string(payload[4 : 4+nul])
	tail := payload[4+nul+1:]

	switch kind {
	case KindFolder:
		if chunked {
			return fmt.Errorf("%w: multi-chunk folders are not supported", ErrChunkSequence)
		}
		end := indexByte(tail, 0xFF)
		if end < 0 {
			return fmt.Errorf("%w: folder child list not terminated", ErrMalformedPayload)
		}
		children := make([]int, end)
		for i, b := range tail[:end] {
			children[i] = int(b)
		}
		p.Children = children

	case KindCommand:
		if len(tail) < 2 {
			return fmt.Errorf("%w: command entry too short", ErrMalformedPayload)
		}
		status := tail[0]
		timeoutByte := tail[1]
		rest := tail[2:]
		infoNul := indexByte(rest, 0x00)
		if infoNul < 0 {
			return fmt.Errorf("%w: command info not NUL-terminated", ErrMalformedPayload)
		}
		p.Status = status
		if timeoutByte%10 != 0 {
			p.Timeout = float64(timeoutByte) * 0.1
		} else {
			p.Timeout = float64(timeoutByte) / 10
		}
		p.Info = string(rest[:infoNul])

	case KindFloat:
		if len(tail) < 21 {
			return fmt.Errorf("%w: float entry too short", ErrMalformedPayload)
		}
		value := decodeBEInt32(tail[0:4])
		min := decodeBEInt32(tail[4:8])
		max := decodeBEInt32(tail[8:12])
		def := decodeBEInt32(tail[12:16])
		decimalPoint := int8(tail[16])
		stepSize := decodeBEInt32(tail[17:21])
		rest := tail[21:]
		unitNul := indexByte(rest, 0x00)
		if unitNul < 0 {
			return fmt.Errorf("%w: float unit not NUL-terminated", ErrMalformedPayload)
		}
		p.Value = value
		p.Min = min
		p.Max = max
		p.Default = def
		p.DecimalPoint = decimalPoint
		p.StepSize = stepSize
		p.Unit = string(rest[:unitNul])

	case KindString, KindInfo:
		valNul := indexByte(tail, 0x00)
		if valNul < 0 {
			return fmt.Errorf("%w: string value not NUL-terminated", ErrMalformedPayload)
		}
		value := string(tail[:valNul])
		if kind == KindString {
			if len(tail) <= valNul+1 {
				return fmt.Errorf("%w: string entry missing max_length", ErrMalformedPayload)
			}
			p.MaxLength = tail[valNul+1]
		} else {
			p.MaxLength = byte(len(value))
		}
		p.StringValue = value

	case KindTextSelection:
		optNul := indexByte(tail, 0x00)
		if optNul < 0 {
			return fmt.Errorf("%w: selection options not NUL-terminated", ErrMalformedPayload)
		}
		options := strings.Split(string(tail[:optNul]), ";")
		rest := tail[optNul+1:]
		if len(rest) < 4 {
			return fmt.Errorf("%w: selection entry missing value/min/max/default", ErrMalformedPayload)
		}
		p.Options = options
		p.SelValue = rest[0]
		p.SelMin = rest[1]
		p.SelMax = rest[2]
		p.SelDefault = rest[3]

	default:
		// Numeric types are rarely used in practice; record kind and
		// name only, per spec non-goals.
	}

	p.ParentFolder = int(parentFolder)
	p.Kind = kind
	p.Name = name
	p.Hidden = hidden
	p.ObtainedAt = time.Now()
	return nil
}

// EncodeWriteFloat quantises value using this parameter's decimal_point
// and range-checks it against [Min, Max] before emitting the 4-byte
// big-endian wire encoding.
func (p *Parameter) EncodeWriteFloat(value float64) ([]byte, error) {
	if p.Kind != KindFloat {
		return nil, fmt.Errorf("%w: parameter %d is not a float", ErrInvalidType, p.Num)
	}
	factor := math.Pow10(int(p.DecimalPoint))
	wire := int32(math.Round(value * factor))
	if wire < p.Min || wire > p.Max {
		return nil, fmt.Errorf("%w: %v out of range [%d, %d]", ErrValueOutOfRange, value, p.Min, p.Max)
	}
	return []byte{byte(wire >> 24), byte(wire >> 16), byte(wire >> 8), byte(wire)}, nil
}

// EncodeWriteString encodes value as its bytes followed by a NUL.
func (p *Parameter) EncodeWriteString(value string) []byte {
	out := make([]byte, 0, len(value)+1)
	out = append(out, []byte(value)...)
	return append(out, 0x00)
}

// EncodeWriteSelection encodes a TEXT_SELECTION choice as a single index
// byte.
func (p *Parameter) EncodeWriteSelection(index byte) []byte {
	return []byte{index}
}

// EncodeWriteCommand encodes a COMMAND sub-state as a single byte.
func (p *Parameter) EncodeWriteCommand(cmd MenuCommand) []byte {
	return []byte{byte(cmd)}
}

// BuildWriteFrame wraps an already-encoded value in a PARAM_WRITE frame
// targeting this parameter.
func (p *Parameter) BuildWriteFrame(destination, origin Address, value []byte) Frame {
	return BuildParamWrite(destination, origin, byte(p.Num), value)
}
