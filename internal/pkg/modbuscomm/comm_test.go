package modbuscomm

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

func TestDecodeU16(t *testing.T) {
	d := registers.Descriptor{CID: 0, Class: registers.Holding, Type: registers.U16, Size: 2}
	v, err := Decode(d, []byte{0xBE, 0xEF})
	assert.NilError(t, err)
	assert.Equal(t, v.U16, uint16(0xBEEF))
}

func TestDecodeFloat32(t *testing.T) {
	d := registers.Descriptor{CID: 1, Class: registers.Input, Type: registers.Float32, Size: 4}
	bits := math.Float32bits(12.625)
	raw := []byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
	v, err := Decode(d, raw)
	assert.NilError(t, err)
	assert.Equal(t, v.F32, float32(12.625))
}

func TestDecodeCoilUsesPackedBits(t *testing.T) {
	d := registers.Descriptor{CID: 2, Class: registers.Coil, Type: registers.U16, Size: 2}
	v, err := Decode(d, []byte{0x1})
	assert.NilError(t, err)
	assert.Equal(t, v.U16, uint16(0x1))

	v, err = Decode(d, []byte{0x0})
	assert.NilError(t, err)
	assert.Equal(t, v.U16, uint16(0x0))
}

func TestDecodeASCII(t *testing.T) {
	d := registers.Descriptor{CID: 3, Class: registers.Holding, Type: registers.ASCII, Size: 4, WireCount: 2}
	v, err := Decode(d, []byte("SN42"))
	assert.NilError(t, err)
	assert.Equal(t, string(v.Bytes), "SN42")
}

func TestDecodeShortResponse(t *testing.T) {
	d := registers.Descriptor{CID: 1, Class: registers.Input, Type: registers.Float32, Size: 4}
	_, err := Decode(d, []byte{0x0, 0x1})
	assert.Assert(t, err != nil)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := registers.Descriptor{CID: 0, Class: registers.Holding, Type: registers.Float32, Size: 4, WireCount: 2}
	payload, err := Encode(f, registers.F32Value(-0.15625))
	assert.NilError(t, err)
	v, err := Decode(f, payload)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(float64(v.F32)+0.15625) < 1e-6)

	u := registers.Descriptor{CID: 1, Class: registers.Holding, Type: registers.U16, Size: 2, WireCount: 1}
	payload, err = Encode(u, registers.U16Value(54321))
	assert.NilError(t, err)
	v, err = Decode(u, payload)
	assert.NilError(t, err)
	assert.Equal(t, v.U16, uint16(54321))
}

func TestEncodeASCIIPadsToWireRegisters(t *testing.T) {
	d := registers.Descriptor{CID: 4, Class: registers.Holding, Type: registers.ASCII, Size: 8, WireCount: 4}
	payload, err := Encode(d, registers.ASCIIValue([]byte("SN42")))
	assert.NilError(t, err)
	assert.Equal(t, len(payload), 8)

	_, err = Encode(d, registers.ASCIIValue([]byte("far too long for four registers")))
	assert.Assert(t, err != nil)
}
