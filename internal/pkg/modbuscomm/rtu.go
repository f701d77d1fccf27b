package modbuscomm

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"

	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

// RTU drives the serial Modbus master session. All bus transactions are
// serialized through one mutex: the RS-485 link is half-duplex.
type RTU struct {
	mux     *sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// RTUConfig is the serial master configuration, fixed at startup
type RTUConfig struct {
	Port         string `json:"Port"`
	BaudRate     int    `json:"BaudRate"`
	DataBits     int    `json:"DataBits"`
	Parity       string `json:"Parity"`
	StopBits     int    `json:"StopBits"`
	Timeout      int    `json:"Timeout"`
	HalfDuplex   bool   `json:"HalfDuplex"`
	EnableLogger bool   `json:"EnableLogger"`
}

// NewRTU opens the serial master session described by cfg
func NewRTU(cfg RTUConfig) (*RTU, error) {
	handler := modbus.NewRTUClientHandler(cfg.Port)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = cfg.DataBits
	handler.Parity = cfg.Parity
	handler.StopBits = cfg.StopBits
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.RS485 = serial.RS485Config{Enabled: cfg.HalfDuplex}

	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	if err := handler.Connect(); err != nil {
		return nil, err
	}

	return &RTU{
		mux:     &sync.Mutex{},
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

// Read executes the wire read declared by the descriptor and returns the
// raw response buffer.
func (r *RTU) Read(d registers.Descriptor) ([]byte, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handler.SlaveId = d.Slave

	switch d.Class {
	case registers.Holding:
		return r.client.ReadHoldingRegisters(d.WireStart, d.WireCount)
	case registers.Input:
		return r.client.ReadInputRegisters(d.WireStart, d.WireCount)
	case registers.Coil:
		return r.client.ReadCoils(d.WireStart, d.WireCount)
	case registers.Discrete:
		return r.client.ReadDiscreteInputs(d.WireStart, d.WireCount)
	}
	return nil, fmt.Errorf("unreadable register class %q for CID #%d", d.Class, d.CID)
}

// Write executes the wire write declared by the descriptor. Input and
// discrete registers are read-only address spaces on the wire.
func (r *RTU) Write(d registers.Descriptor, payload []byte) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handler.SlaveId = d.Slave

	switch d.Class {
	case registers.Holding:
		_, err := r.client.WriteMultipleRegisters(d.WireStart, d.WireCount, payload)
		return err
	case registers.Coil:
		var state uint16
		for _, b := range payload {
			if b != 0 {
				state = coilOn
				break
			}
		}
		_, err := r.client.WriteSingleCoil(d.WireStart, state)
		return err
	}
	return fmt.Errorf("unwritable register class %q for CID #%d", d.Class, d.CID)
}

// Close tears down the master session. No further bus traffic is possible
// until a new session is built.
func (r *RTU) Close() error {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.handler.Close()
}

// coilOn is the wire encoding for energizing a single coil
const coilOn uint16 = 0xFF00

// ReadRegister executes an ad-hoc single-register read addressed by slave
// and wire address, outside the catalog. The gateway's on-demand path uses
// this form.
func (r *RTU) ReadRegister(slave byte, class registers.Class, addr uint16) (uint16, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handler.SlaveId = slave

	var raw []byte
	var err error
	switch class {
	case registers.Holding:
		raw, err = r.client.ReadHoldingRegisters(addr, 1)
	case registers.Input:
		raw, err = r.client.ReadInputRegisters(addr, 1)
	case registers.Coil:
		raw, err = r.client.ReadCoils(addr, 1)
	case registers.Discrete:
		raw, err = r.client.ReadDiscreteInputs(addr, 1)
	default:
		return 0, fmt.Errorf("unreadable register class %q", class)
	}
	if err != nil {
		return 0, err
	}

	switch class {
	case registers.Coil, registers.Discrete:
		return uint16(raw[0] & 0x1), nil
	}
	return uint16(raw[0])<<8 | uint16(raw[1]), nil
}

// WriteRegister executes an ad-hoc holding register write. Single and
// multiple register writes are distinct wire operations (function codes 6
// and 16) and stay distinct here.
func (r *RTU) WriteRegister(slave byte, addr, value uint16, multi bool) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handler.SlaveId = slave

	if multi {
		payload := []byte{byte(value >> 8), byte(value)}
		_, err := r.client.WriteMultipleRegisters(addr, 1, payload)
		return err
	}
	_, err := r.client.WriteSingleRegister(addr, value)
	return err
}

// WriteCoil executes an ad-hoc coil write, single (function code 5) or
// multiple (function code 15).
func (r *RTU) WriteCoil(slave byte, addr uint16, on bool, multi bool) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handler.SlaveId = slave

	if multi {
		var b byte
		if on {
			b = 0x1
		}
		_, err := r.client.WriteMultipleCoils(addr, 1, []byte{b})
		return err
	}
	var state uint16
	if on {
		state = coilOn
	}
	_, err := r.client.WriteSingleCoil(addr, state)
	return err
}
