package module

import (
	"strconv"
	"sync/atomic"
)

// Identifier is the stable identity of a module, usually its absolute
// resource path plus any loader/query suffix.
type Identifier string

func (id Identifier) String() string { return string(id) }

// DependencyID identifies a dependency for the lifetime of the process.
type DependencyID uint32

func (id DependencyID) String() string { return strconv.FormatUint(uint64(id), 10) }

var nextDependencyID atomic.Uint32

// NewDependencyID allocates a fresh, process-unique dependency id.
func NewDependencyID() DependencyID {
	return DependencyID(nextDependencyID.Add(1))
}

// BlockID identifies a dependency block. It is derived from the owning
// module and a key unique within that module.
type BlockID string

// NewBlockID derives a block id from its owning module and key.
func NewBlockID(owner Identifier, key string) BlockID {
	return BlockID(string(owner) + "|" + key)
}

func (id BlockID) String() string { return string(id) }
