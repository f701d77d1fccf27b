package registers

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup for a CID outside the catalog.
// Sequential sweepers treat it as end-of-table, not as a failure.
var ErrNotFound = errors.New("cid not found in catalog")

// Catalog is the ordered, immutable parameter descriptor table, indexed by
// CID. It is built once at startup and safe for concurrent reads.
type Catalog struct {
	descriptors []Descriptor
}

// NewCatalog validates the descriptor table against the store and returns
// the catalog. A malformed table is a build-time authoring bug: sparse or
// duplicate CIDs, a zero or out-of-range slot, or an alarm policy that
// does not match the register class all panic here rather than surfacing
// later as a runtime error.
func NewCatalog(store *Store, descriptors []Descriptor) Catalog {
	for i, d := range descriptors {
		if int(d.CID) != i {
			panic(fmt.Sprintf("registers: CID #%d at catalog position %d, table must be dense", d.CID, i))
		}
		store.slot(d) // panics on zero or out-of-range slot

		switch d.Class {
		case Holding, Input:
			if _, ok := d.Opts.(Range); !ok {
				panic(fmt.Sprintf("registers: CID #%d (%s) word register requires a range policy", d.CID, d.Name))
			}
		case Coil, Discrete:
			if _, ok := d.Opts.(Mask); !ok {
				panic(fmt.Sprintf("registers: CID #%d (%s) bit register requires a mask policy", d.CID, d.Name))
			}
		}
	}
	return Catalog{descriptors: descriptors}
}

// Lookup returns the descriptor keyed by cid, or ErrNotFound past the end
// of the table.
func (c Catalog) Lookup(cid uint16) (Descriptor, error) {
	if int(cid) >= len(c.descriptors) {
		return Descriptor{}, ErrNotFound
	}
	return c.descriptors[cid], nil
}

// Len returns the number of catalogued parameters
func (c Catalog) Len() int {
	return len(c.descriptors)
}
