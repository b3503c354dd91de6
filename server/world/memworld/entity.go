package memworld

import (
	"sync"

	"github.com/dm-vev/synth/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Entity is an entity of a World. Its state may be changed directly through
// its setters, or by the physics applied in World.Tick.
type Entity struct {
	id  uuid.UUID
	typ string

	mu       sync.Mutex
	dim      world.Dimension
	pos      mgl64.Vec3
	onGround bool
	falling  bool
	riding   uuid.UUID
	removed  bool

	physics bool
	wander  bool
	heading float64
}

// EntityOpts holds options for a new Entity.
type EntityOpts struct {
	// ID is the UUID of the entity. If uuid.Nil, a random UUID is generated.
	ID        uuid.UUID
	Dimension world.Dimension
	Position  mgl64.Vec3
	// Physics makes World.Tick apply gravity to the entity.
	Physics bool
	// Wander makes the entity walk around randomly while on the ground. It
	// implies Physics.
	Wander bool
}

// NewEntity creates an Entity of the type passed.
func NewEntity(typ string, opts EntityOpts) *Entity {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	return &Entity{
		id:      opts.ID,
		typ:     typ,
		dim:     opts.Dimension,
		pos:     opts.Position,
		physics: opts.Physics || opts.Wander,
		wander:  opts.Wander,
	}
}

// UUID ...
func (e *Entity) UUID() uuid.UUID {
	return e.id
}

// Type ...
func (e *Entity) Type() string {
	return e.typ
}

// Dimension ...
func (e *Entity) Dimension() world.Dimension {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// Position ...
func (e *Entity) Position() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// OnGround ...
func (e *Entity) OnGround() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onGround
}

// Falling ...
func (e *Entity) Falling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.falling
}

// Riding ...
func (e *Entity) Riding() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.riding, e.riding != uuid.Nil
}

// Valid reports if the entity was not removed from its World.
func (e *Entity) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.removed
}

// Teleport moves the entity to a position in a dimension.
func (e *Entity) Teleport(dim world.Dimension, pos mgl64.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dim, e.pos = dim, pos
}

// Move moves the entity to a position in its current dimension.
func (e *Entity) Move(pos mgl64.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = pos
}

// SetOnGround sets if the entity is on the ground. Standing on the ground
// also stops a fall.
func (e *Entity) SetOnGround(onGround bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onGround = onGround
	if onGround {
		e.falling = false
	}
}

// SetFalling sets if the entity is falling. Falling also leaves the ground.
func (e *Entity) SetFalling(falling bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.falling = falling
	if falling {
		e.onGround = false
	}
}

// Mount makes the entity ride the entity with the UUID passed.
func (e *Entity) Mount(target uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.riding = target
}

// Dismount makes the entity stop riding.
func (e *Entity) Dismount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.riding = uuid.Nil
}

// Observer keeps the columns around it active.
type Observer struct {
	mu     sync.Mutex
	dim    world.Dimension
	pos    mgl64.Vec3
	radius int
}

// NewObserver creates an Observer at a position. A radius of 0 or less uses
// the radius configured for the engine.
func NewObserver(dim world.Dimension, pos mgl64.Vec3, radius int) *Observer {
	return &Observer{dim: dim, pos: pos, radius: radius}
}

// Dimension ...
func (o *Observer) Dimension() world.Dimension {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dim
}

// Position ...
func (o *Observer) Position() mgl64.Vec3 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pos
}

// ChunkRadius ...
func (o *Observer) ChunkRadius() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.radius
}

// Teleport moves the observer to a position in a dimension.
func (o *Observer) Teleport(dim world.Dimension, pos mgl64.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dim, o.pos = dim, pos
}

// SetChunkRadius changes the radius of the observer.
func (o *Observer) SetChunkRadius(radius int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius = radius
}
