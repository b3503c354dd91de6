package world

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/dm-vev/synth/server/block/cube"
)

// BlockKey identifies a single cell in a dimension.
type BlockKey struct {
	Dim Dimension
	Pos cube.Pos
}

// BlockHash returns a fingerprint of the block passed. Blocks with the same
// name and properties produce the same hash. BlockHash returns 0 only for a
// nil block, so 0 may be used to represent a block that could not be
// resolved.
func BlockHash(b Block) uint64 {
	if b == nil {
		return 0
	}
	name, properties := b.EncodeBlock()

	h := xxhash.New()
	_, _ = h.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(properties)) {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(fmt.Sprint(properties[k]))
	}
	if sum := h.Sum64(); sum != 0 {
		return sum
	}
	return 1
}

// BlockName returns the name of a block, or an empty string for nil.
func BlockName(b Block) string {
	if b == nil {
		return ""
	}
	name, _ := b.EncodeBlock()
	return name
}

// sameBlockType reports if two blocks share a name, regardless of their
// properties.
func sameBlockType(a, b Block) bool {
	if a == nil || b == nil {
		return false
	}
	return BlockName(a) == BlockName(b)
}
