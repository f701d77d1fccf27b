package registers

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// cell is the backing slot for one parameter. Scalars are packed into bits
// and read/written atomically so a concurrent reader never observes a torn
// Float32. ASCII payloads go through the mutex and buf.
type cell struct {
	bits uint32
	mu   sync.Mutex
	buf  []byte
}

// Store holds the last-known value of every catalogued parameter, one slot
// slice per register class. It is constructed once at startup and written
// only by the parameter access layer on successful reads.
type Store struct {
	holding  []cell
	input    []cell
	coil     []cell
	discrete []cell
}

// NewStore allocates a store with the given slot count per register class
func NewStore(holding, input, coil, discrete int) *Store {
	return &Store{
		holding:  make([]cell, holding),
		input:    make([]cell, input),
		coil:     make([]cell, coil),
		discrete: make([]cell, discrete),
	}
}

// slots returns the slice backing a register class. An unrecognized class
// is a descriptor-authoring bug, not a runtime condition.
func (s *Store) slots(c Class) []cell {
	switch c {
	case Holding:
		return s.holding
	case Input:
		return s.input
	case Coil:
		return s.coil
	case Discrete:
		return s.discrete
	}
	panic(fmt.Sprintf("registers: unrecognized register class %q", c))
}

// slot resolves a descriptor to its backing cell. SlotID 0 is the reserved
// invalid sentinel and fails fast rather than resolving to the first slot.
func (s *Store) slot(d Descriptor) *cell {
	if d.Slot == 0 {
		panic(fmt.Sprintf("registers: zero slot for CID #%d", d.CID))
	}
	slots := s.slots(d.Class)
	i := int(d.Slot) - 1
	if i >= len(slots) {
		panic(fmt.Sprintf("registers: slot %d out of range for CID #%d", d.Slot, d.CID))
	}
	return &slots[i]
}

// Put records a decoded value into the descriptor's backing slot
func (s *Store) Put(d Descriptor, v Value) {
	c := s.slot(d)
	switch d.Type {
	case Float32:
		atomic.StoreUint32(&c.bits, math.Float32bits(v.F32))
	case ASCII:
		c.mu.Lock()
		c.buf = append(c.buf[:0], v.Bytes...)
		c.mu.Unlock()
	default:
		atomic.StoreUint32(&c.bits, uint32(v.U16))
	}
}

// Last returns the last-known value held in the descriptor's backing slot
func (s *Store) Last(d Descriptor) Value {
	c := s.slot(d)
	switch d.Type {
	case Float32:
		return F32Value(math.Float32frombits(atomic.LoadUint32(&c.bits)))
	case ASCII:
		c.mu.Lock()
		b := make([]byte, len(c.buf))
		copy(b, c.buf)
		c.mu.Unlock()
		return ASCIIValue(b)
	default:
		return U16Value(uint16(atomic.LoadUint32(&c.bits)))
	}
}
