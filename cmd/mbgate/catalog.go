package main

import "github.com/mbgate/mbgate_core/internal/pkg/registers"

// Register store sizing, one slot per backing field. Slot IDs are 1-based;
// 0 stays reserved as the invalid sentinel.
const (
	numHoldingSlots  = 2
	numInputSlots    = 2
	numCoilSlots     = 1
	numDiscreteSlots = 1
)

// deviceParameters is the compiled-in parameter descriptor table for the
// attached slave devices. The catalog is dense: CID equals table position,
// checked at construction.
var deviceParameters = []registers.Descriptor{
	{
		CID: 0, Name: "Holding", Units: "counts",
		Slave: 1, Class: registers.Holding, WireStart: 0, WireCount: 1,
		Slot: 1, Type: registers.U16, Size: 2,
		Opts:   registers.Range{Min: 0, Max: 65535, Step: 1},
		Access: registers.ReadWriteTrigger,
	},
	{
		CID: 1, Name: "Input", Units: "counts",
		Slave: 1, Class: registers.Input, WireStart: 0, WireCount: 1,
		Slot: 1, Type: registers.U16, Size: 2,
		Opts:   registers.Range{Min: 0, Max: 65535, Step: 1},
		Access: registers.ReadOnly,
	},
	{
		CID: 2, Name: "Coil", Units: "on/off",
		Slave: 1, Class: registers.Coil, WireStart: 0, WireCount: 1,
		Slot: 1, Type: registers.U16, Size: 2,
		Opts:   registers.Mask{Bits: 0x1},
		Access: registers.ReadWriteTrigger,
	},
	{
		CID: 3, Name: "Temperature", Units: "C",
		Slave: 1, Class: registers.Input, WireStart: 2, WireCount: 2,
		Slot: 2, Type: registers.Float32, Size: 4,
		Opts:   registers.Range{Min: -10, Max: 10, Step: 0.1},
		Access: registers.ReadOnly,
	},
	{
		CID: 4, Name: "SerialNumber", Units: "-",
		Slave: 1, Class: registers.Holding, WireStart: 100, WireCount: 4,
		Slot: 2, Type: registers.ASCII, Size: 8,
		Opts:   registers.Range{Min: 0, Max: 65535, Step: 1},
		Access: registers.ReadOnly,
	},
}
