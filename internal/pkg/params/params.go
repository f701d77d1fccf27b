// Package params is the parameter access layer: get and set a catalogued
// parameter by CID, with type-aware decode/encode and the last-known value
// mirrored into the register store.
package params

import (
	"errors"
	"fmt"
	"log"

	"github.com/mbgate/mbgate_core/internal/pkg/modbuscomm"
	"github.com/mbgate/mbgate_core/internal/pkg/registers"
)

// ErrUnknownParameter is returned when the requested CID is not in the
// catalog. Sequential sweepers treat it as end-of-table; on-demand callers
// treat it as a hard error.
var ErrUnknownParameter = errors.New("unknown parameter")

// Service orchestrates the catalog, register store and transaction
// executor behind the two CID-keyed operations.
type Service struct {
	catalog registers.Catalog
	store   *registers.Store
	exec    modbuscomm.Executor
	logger  *log.Logger
}

// New returns a configured access layer
func New(catalog registers.Catalog, store *registers.Store, exec modbuscomm.Executor, logger *log.Logger) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		exec:    exec,
		logger:  logger,
	}
}

// Catalog exposes the descriptor table for callers iterating CIDs
func (s *Service) Catalog() registers.Catalog {
	return s.catalog
}

// Get executes a wire read for the parameter, decodes it at the declared
// width, records it in the register store and returns the value. Transport
// errors propagate unchanged; retry is the caller's concern.
func (s *Service) Get(cid uint16) (registers.Value, error) {
	d, err := s.catalog.Lookup(cid)
	if err != nil {
		return registers.Value{}, fmt.Errorf("%w: cid %d", ErrUnknownParameter, cid)
	}

	raw, err := s.exec.Read(d)
	if err != nil {
		s.logger.Printf("characteristic #%d (%s) read fail, err = %v", d.CID, d.Name, err)
		return registers.Value{}, err
	}

	v, err := modbuscomm.Decode(d, raw)
	if err != nil {
		s.logger.Printf("characteristic #%d (%s) read fail, err = %v", d.CID, d.Name, err)
		return registers.Value{}, err
	}
	s.store.Put(d, v)

	s.logSample(d, v, raw)
	return v, nil
}

// Set encodes the value at the parameter's declared width and executes a
// wire write. The register store is untouched; the next poll reads the
// device truth back.
func (s *Service) Set(cid uint16, v registers.Value) error {
	d, err := s.catalog.Lookup(cid)
	if err != nil {
		return fmt.Errorf("%w: cid %d", ErrUnknownParameter, cid)
	}

	payload, err := modbuscomm.Encode(d, v)
	if err != nil {
		s.logger.Printf("characteristic #%d (%s) write fail, err = %v", d.CID, d.Name, err)
		return err
	}

	if err := s.exec.Write(d, payload); err != nil {
		s.logger.Printf("characteristic #%d (%s) write fail, err = %v", d.CID, d.Name, err)
		return err
	}

	s.logger.Printf("characteristic #%d %s (%s) value = %v write successful",
		d.CID, d.Name, d.Units, display(d, v))
	return nil
}

// Last returns the last-known value for the parameter without touching the
// bus
func (s *Service) Last(cid uint16) (registers.Value, error) {
	d, err := s.catalog.Lookup(cid)
	if err != nil {
		return registers.Value{}, fmt.Errorf("%w: cid %d", ErrUnknownParameter, cid)
	}
	return s.store.Last(d), nil
}

func (s *Service) logSample(d registers.Descriptor, v registers.Value, raw []byte) {
	s.logger.Printf("characteristic #%d %s (%s) value = %v (0x%x) read successful",
		d.CID, d.Name, d.Units, display(d, v), raw)
}

// display renders a value the way operators read it: word registers as
// numbers, bit registers as ON/OFF against the alarm mask, ASCII as text.
func display(d registers.Descriptor, v registers.Value) interface{} {
	switch d.Class {
	case registers.Coil, registers.Discrete:
		if m, ok := d.Opts.(registers.Mask); ok && v.U16&m.Bits != 0 {
			return "ON"
		}
		return "OFF"
	}
	switch v.Type {
	case registers.Float32:
		return v.F32
	case registers.ASCII:
		return string(v.Bytes)
	default:
		return v.U16
	}
}
