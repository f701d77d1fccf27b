package registers

// Class selects one of the four Modbus register address spaces. It
// determines which store section a parameter's backing slot lives in and
// the wire function codes used to access it.
type Class string

// Constants of Class
const (
	Holding  Class = "holding"
	Input    Class = "input"
	Coil     Class = "coil"
	Discrete Class = "discrete"
)

// ValueType defines the decode/encode width of a parameter value
type ValueType string

// Constants of ValueType
const (
	U16     ValueType = "u16"
	Float32 ValueType = "f32"
	ASCII   ValueType = "ascii"
)

// Access describes the parameter read/write permission policy
type Access string

const (
	ReadOnly         Access = "read-only"
	ReadWrite        Access = "read-write"
	ReadWriteTrigger Access = "read-write-trigger"
)

// SlotID references a backing slot in the register store. IDs are 1-based;
// 0 is reserved as the invalid sentinel so an unset descriptor field can
// never silently resolve to the first slot.
type SlotID uint16

// Options is the per-parameter alarm policy, a tagged union of a numeric
// range (word registers) or a bitmask (bit registers).
type Options interface {
	// Exceeded reports whether a sampled value violates the policy.
	Exceeded(v Value) bool
}

// Range bounds a word-register value. Values outside [Min, Max] raise an
// alarm. Step is informational, carried for clients stepping the value.
type Range struct {
	Min  float64 `json:"Min"`
	Max  float64 `json:"Max"`
	Step float64 `json:"Step"`
}

// Exceeded reports true when the scalar value leaves [Min, Max].
func (r Range) Exceeded(v Value) bool {
	f := v.Scalar()
	return f < r.Min || f > r.Max
}

// Mask flags a bit-register value. A nonzero AND with Bits raises an alarm.
type Mask struct {
	Bits uint16 `json:"Bits"`
}

// Exceeded reports true when the sampled word has any masked bit set.
func (m Mask) Exceeded(v Value) bool {
	return v.U16&m.Bits != 0
}

// Descriptor is the immutable metadata record for one parameter: its
// identity, wire address, backing slot, type and alarm policy. Descriptors
// are authored as a compiled-in table and validated by NewCatalog.
type Descriptor struct {
	CID       uint16
	Name      string
	Units     string
	Slave     byte
	Class     Class
	WireStart uint16
	WireCount uint16
	Slot      SlotID
	Type      ValueType
	Size      uint16
	Opts      Options
	Access    Access
}

// Value is a decoded parameter sample
type Value struct {
	Type  ValueType
	U16   uint16
	F32   float32
	Bytes []byte
}

// U16Value wraps a raw word
func U16Value(v uint16) Value {
	return Value{Type: U16, U16: v}
}

// F32Value wraps a float sample
func F32Value(v float32) Value {
	return Value{Type: Float32, F32: v}
}

// ASCIIValue wraps a byte-array sample
func ASCIIValue(b []byte) Value {
	return Value{Type: ASCII, Bytes: b}
}

// Scalar widens the value to float64 for range comparison and display
func (v Value) Scalar() float64 {
	switch v.Type {
	case Float32:
		return float64(v.F32)
	default:
		return float64(v.U16)
	}
}
