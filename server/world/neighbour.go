package world

import (
	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/internal/lru"
)

// Fingerprint holds the BlockHash of the six neighbours of a cell, in the
// order north, south, east, west, up, down.
type Fingerprint [6]uint64

// fingerprintFaces is the order in which neighbours are sampled and compared.
var fingerprintFaces = [6]cube.Face{cube.FaceNorth, cube.FaceSouth, cube.FaceEast, cube.FaceWest, cube.FaceUp, cube.FaceDown}

// NeighbourDetector detects changes to the neighbours of a cell between two
// polls of the same cell. The last fingerprint of every polled cell is kept in
// an LRU cache, so cells polled rarely are eventually forgotten and treated as
// new.
type NeighbourDetector struct {
	src   BlockSource
	cache *lru.Cache[BlockKey, Fingerprint]
}

// NewNeighbourDetector creates a NeighbourDetector that resolves neighbours
// through src and remembers fingerprints in cache.
func NewNeighbourDetector(src BlockSource, cache *lru.Cache[BlockKey, Fingerprint]) *NeighbourDetector {
	return &NeighbourDetector{src: src, cache: cache}
}

// Fingerprint samples the six neighbours of a cell. Neighbours that cannot be
// resolved hash to 0.
func (d *NeighbourDetector) Fingerprint(dim Dimension, pos cube.Pos) Fingerprint {
	var f Fingerprint
	for i, face := range fingerprintFaces {
		if b, err := d.src.Block(dim, pos.Side(face)); err == nil {
			f[i] = BlockHash(b)
		}
	}
	return f
}

// Detect samples the neighbours of the cell at pos and compares them with the
// ones found by the previous call for the same cell. If one changed, the face
// of the first neighbour changed is returned, in the order north, south, east,
// west, up, down, and the new fingerprint is remembered. The first call for a
// cell remembers the fingerprint and reports no change.
func (d *NeighbourDetector) Detect(dim Dimension, pos cube.Pos) (cube.Face, bool) {
	key := BlockKey{Dim: dim, Pos: pos}
	current := d.Fingerprint(dim, pos)

	prev, ok := d.cache.Get(key)
	if !ok {
		d.cache.Set(key, current)
		return 0, false
	}
	for i, face := range fingerprintFaces {
		if prev[i] != current[i] {
			d.cache.Set(key, current)
			return face, true
		}
	}
	return 0, false
}

// Forget drops the fingerprint remembered for a cell. The next Detect call for
// the cell reports no change.
func (d *NeighbourDetector) Forget(dim Dimension, pos cube.Pos) {
	d.cache.Remove(BlockKey{Dim: dim, Pos: pos})
}

// Len returns the amount of cells with a remembered fingerprint.
func (d *NeighbourDetector) Len() int {
	return d.cache.Len()
}
