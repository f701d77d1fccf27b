// Package virtualbus provides an in-memory Modbus slave standing in for
// real field devices. It implements the same transaction surface as the
// serial RTU session so the access layer, poll loop and gateway can run
// against it unmodified.
package virtualbus

import (
	"errors"
	"sync"

	"github.com/mbgate/mbgate_core/internal/pkg/modbuscomm"
	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

type addr struct {
	slave byte
	class registers.Class
	reg   uint16
}

// VirtualBus is an in-memory register bank keyed by slave, class and wire
// address. One mutex serializes all transactions, mirroring the
// half-duplex serial session it replaces.
type VirtualBus struct {
	mux    *sync.Mutex
	bank   map[addr][]byte
	fail   map[addr]error
	reads  []uint16
	closed bool
}

// ErrClosed is returned for any transaction after the session teardown
var ErrClosed = errors.New("virtual bus session closed")

// New returns an empty virtual bus
func New() *VirtualBus {
	return &VirtualBus{
		mux:  &sync.Mutex{},
		bank: make(map[addr][]byte),
		fail: make(map[addr]error),
	}
}

// Load seeds a raw response buffer for one wire location
func (v *VirtualBus) Load(slave byte, class registers.Class, reg uint16, raw []byte) {
	v.mux.Lock()
	defer v.mux.Unlock()
	b := make([]byte, len(raw))
	copy(b, raw)
	v.bank[addr{slave, class, reg}] = b
}

// Fail arms a transport error for one wire location
func (v *VirtualBus) Fail(slave byte, class registers.Class, reg uint16, err error) {
	v.mux.Lock()
	defer v.mux.Unlock()
	v.fail[addr{slave, class, reg}] = err
}

// Reads returns the CIDs read so far, in transaction order
func (v *VirtualBus) Reads() []uint16 {
	v.mux.Lock()
	defer v.mux.Unlock()
	out := make([]uint16, len(v.reads))
	copy(out, v.reads)
	return out
}

// Closed reports whether the session has been torn down
func (v *VirtualBus) Closed() bool {
	v.mux.Lock()
	defer v.mux.Unlock()
	return v.closed
}

// Read returns the seeded buffer for the descriptor's wire location
func (v *VirtualBus) Read(d registers.Descriptor) ([]byte, error) {
	v.mux.Lock()
	defer v.mux.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	v.reads = append(v.reads, d.CID)

	a := addr{d.Slave, d.Class, d.WireStart}
	if err := v.fail[a]; err != nil {
		return nil, err
	}
	raw, ok := v.bank[a]
	if !ok {
		return nil, errors.New("no device at wire address")
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return b, nil
}

// Write stores the payload at the descriptor's wire location
func (v *VirtualBus) Write(d registers.Descriptor, payload []byte) error {
	v.mux.Lock()
	defer v.mux.Unlock()
	if v.closed {
		return ErrClosed
	}
	a := addr{d.Slave, d.Class, d.WireStart}
	if err := v.fail[a]; err != nil {
		return err
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	v.bank[a] = b
	return nil
}

// Close tears down the virtual session; later transactions fail
func (v *VirtualBus) Close() error {
	v.mux.Lock()
	defer v.mux.Unlock()
	v.closed = true
	return nil
}

// ReadRegister serves the gateway's ad-hoc single-register read
func (v *VirtualBus) ReadRegister(slave byte, class registers.Class, reg uint16) (uint16, error) {
	raw, err := v.Read(registers.Descriptor{Slave: slave, Class: class, WireStart: reg, WireCount: 1})
	if err != nil {
		return 0, err
	}
	switch class {
	case registers.Coil, registers.Discrete:
		return uint16(raw[0] & 0x1), nil
	}
	if len(raw) < 2 {
		return 0, errors.New("short response")
	}
	return uint16(raw[0])<<8 | uint16(raw[1]), nil
}

// WriteRegister serves the gateway's ad-hoc holding register write
func (v *VirtualBus) WriteRegister(slave byte, reg, value uint16, multi bool) error {
	d := registers.Descriptor{Slave: slave, Class: registers.Holding, WireStart: reg, WireCount: 1}
	return v.Write(d, []byte{byte(value >> 8), byte(value)})
}

// WriteCoil serves the gateway's ad-hoc coil write
func (v *VirtualBus) WriteCoil(slave byte, reg uint16, on bool, multi bool) error {
	d := registers.Descriptor{Slave: slave, Class: registers.Coil, WireStart: reg, WireCount: 1}
	var b byte
	if on {
		b = 0x1
	}
	return v.Write(d, []byte{b})
}

var _ modbuscomm.Executor = (*VirtualBus)(nil)
