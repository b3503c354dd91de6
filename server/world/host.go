package world

import (
	"errors"
	"iter"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var (
	// ErrOutOfBounds is returned by a BlockSource for positions outside the
	// vertical range of a dimension.
	ErrOutOfBounds = errors.New("position out of world bounds")
	// ErrUnloaded is returned by a BlockSource for positions in a column that
	// is not currently loaded.
	ErrUnloaded = errors.New("position in unloaded column")
)

// Block is the identity of the occupant of a single cell. Two blocks with the
// same name and properties are considered the same block.
type Block interface {
	// EncodeBlock returns the name of the block (for example
	// "minecraft:stone") and its properties.
	EncodeBlock() (name string, properties map[string]any)
}

// BlockSource resolves the block at a position. Resolution may fail, for
// example with ErrOutOfBounds or ErrUnloaded. The engine treats every error as
// transient.
type BlockSource interface {
	Block(dim Dimension, pos cube.Pos) (Block, error)
}

// Entity is a live object of the host sampled by the engine once every tick.
type Entity interface {
	// UUID returns the identity of the entity. It must remain the same across
	// ticks and reloads.
	UUID() uuid.UUID
	// Type returns the type name of the entity, such as "minecraft:pig".
	Type() string
	// Dimension returns the dimension the entity is currently in.
	Dimension() Dimension
	// Position returns the position of the entity's feet.
	Position() mgl64.Vec3
	// OnGround reports if the entity is currently standing on the ground.
	OnGround() bool
	// Falling reports if the entity is currently falling.
	Falling() bool
	// Riding returns the UUID of the entity ridden, if any.
	Riding() (uuid.UUID, bool)
	// Valid reports if the entity is still live. Invalid entities are
	// forgotten by the engine.
	Valid() bool
}

// Observer is an object, typically a connected player, whose position keeps
// the columns around it active.
type Observer interface {
	Dimension() Dimension
	Position() mgl64.Vec3
	// ChunkRadius returns the radius in columns kept active around the
	// observer. A value of 0 or lower means the engine default.
	ChunkRadius() int
}

// Host is the environment sampled by an Engine every tick.
type Host interface {
	BlockSource
	// Entities returns all currently live entities.
	Entities() iter.Seq[Entity]
	// Observers returns all currently active observers.
	Observers() iter.Seq[Observer]
}

// HostTicker may be implemented by a Host to be notified at the start of every
// engine tick, before any state is sampled.
type HostTicker interface {
	Tick(tick int64)
}
