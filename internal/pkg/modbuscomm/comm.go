package modbuscomm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

// Executor performs a Modbus transaction for one catalogued parameter.
// Implementations serialize transactions internally: the physical bus is
// half-duplex and cannot carry two frames at once.
type Executor interface {
	Read(d registers.Descriptor) ([]byte, error)
	Write(d registers.Descriptor, payload []byte) error
	Close() error
}

// Decode converts a raw transaction buffer into the value type declared by
// the descriptor. Word registers arrive big-endian per the Modbus spec;
// bit registers arrive packed, low bit first.
func Decode(d registers.Descriptor, raw []byte) (registers.Value, error) {
	switch d.Class {
	case registers.Coil, registers.Discrete:
		if len(raw) < 1 {
			return registers.Value{}, fmt.Errorf("short response for CID #%d: %d bytes", d.CID, len(raw))
		}
		return registers.U16Value(uint16(raw[0])), nil
	}

	switch d.Type {
	case registers.U16:
		if len(raw) < 2 {
			return registers.Value{}, fmt.Errorf("short response for CID #%d: %d bytes", d.CID, len(raw))
		}
		return registers.U16Value(binary.BigEndian.Uint16(raw)), nil
	case registers.Float32:
		if len(raw) < 4 {
			return registers.Value{}, fmt.Errorf("short response for CID #%d: %d bytes", d.CID, len(raw))
		}
		return registers.F32Value(math.Float32frombits(binary.BigEndian.Uint32(raw))), nil
	case registers.ASCII:
		if len(raw) < int(d.Size) {
			return registers.Value{}, fmt.Errorf("short response for CID #%d: %d bytes", d.CID, len(raw))
		}
		b := make([]byte, d.Size)
		copy(b, raw)
		return registers.ASCIIValue(b), nil
	}
	return registers.Value{}, fmt.Errorf("undecodable value type %q for CID #%d", d.Type, d.CID)
}

// Encode converts a value into the wire payload declared by the
// descriptor. Payloads for word registers are padded to whole registers.
func Encode(d registers.Descriptor, v registers.Value) ([]byte, error) {
	switch d.Type {
	case registers.U16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v.U16)
		return b, nil
	case registers.Float32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(v.F32))
		return b, nil
	case registers.ASCII:
		if len(v.Bytes) > int(d.WireCount)*2 {
			return nil, fmt.Errorf("payload %d bytes exceeds %d wire registers for CID #%d",
				len(v.Bytes), d.WireCount, d.CID)
		}
		b := make([]byte, int(d.WireCount)*2)
		copy(b, v.Bytes)
		return b, nil
	}
	return nil, fmt.Errorf("unencodable value type %q for CID #%d", d.Type, d.CID)
}
