package world

import (
	"cmp"
	"fmt"
	"math"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// ChunkPos holds the position of a 16x16 column of cells. The first value is
// the column X, the second the column Z.
type ChunkPos [2]int32

// X returns the X coordinate of the column.
func (p ChunkPos) X() int32 {
	return p[0]
}

// Z returns the Z coordinate of the column.
func (p ChunkPos) Z() int32 {
	return p[1]
}

// String implements fmt.Stringer and returns (x, z).
func (p ChunkPos) String() string {
	return fmt.Sprintf("(%v, %v)", p[0], p[1])
}

// chunkPosFromVec3 returns the column position that contains the vector.
func chunkPosFromVec3(vec3 mgl64.Vec3) ChunkPos {
	return ChunkPos{int32(math.Floor(vec3[0])) >> 4, int32(math.Floor(vec3[2])) >> 4}
}

// chunkPosFromBlockPos returns the column position that contains the cell.
func chunkPosFromBlockPos(p cube.Pos) ChunkPos {
	return ChunkPos{int32(p[0] >> 4), int32(p[2] >> 4)}
}

// CellKey identifies a column in a dimension. It is the unit the chunk tracker
// loads, unloads and ticks.
type CellKey struct {
	Dim Dimension
	Pos ChunkPos
}

// String ...
func (k CellKey) String() string {
	return k.Dim.String() + k.Pos.String()
}

// pack packs the column coordinates into a single int64.
func (p ChunkPos) pack() int64 {
	return int64(p[0])<<32 | int64(uint32(p[1]))
}

// unpackChunkPos reverses ChunkPos.pack.
func unpackChunkPos(v int64) ChunkPos {
	return ChunkPos{int32(v >> 32), int32(uint32(v))}
}

// morton returns the Z-order value of the column, used to visit columns in a
// deterministic, spatially coherent order.
func (p ChunkPos) morton() uint64 {
	return morton2(toUnsigned(p[0]), toUnsigned(p[1]))
}

// compareCellKeys orders keys by dimension, then by the Morton order of their
// column.
func compareCellKeys(a, b CellKey) int {
	if c := cmp.Compare(a.Dim, b.Dim); c != 0 {
		return c
	}
	return cmp.Compare(a.Pos.morton(), b.Pos.morton())
}

func toUnsigned(v int32) uint32 {
	return uint32(v) ^ (1 << 31)
}

func splitBy1(x uint32) uint64 {
	x64 := uint64(x)
	x64 = (x64 | x64<<16) & 0x0000FFFF0000FFFF
	x64 = (x64 | x64<<8) & 0x00FF00FF00FF00FF
	x64 = (x64 | x64<<4) & 0x0F0F0F0F0F0F0F0F
	x64 = (x64 | x64<<2) & 0x3333333333333333
	x64 = (x64 | x64<<1) & 0x5555555555555555
	return x64
}

func morton2(x, z uint32) uint64 {
	return splitBy1(x) | splitBy1(z)<<1
}
