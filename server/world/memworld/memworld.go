// Package memworld implements an in-memory world.Host. It holds blocks,
// entities and observers in maps and applies a simple gravity and wandering
// model to entities every tick. It is used by tests and by the demo server.
package memworld

import (
	"iter"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Block is a block identified by its name and properties.
type Block struct {
	Name       string
	Properties map[string]any
}

// EncodeBlock ...
func (b Block) EncodeBlock() (string, map[string]any) {
	return b.Name, b.Properties
}

// Air is the block returned for cells that were never set.
var Air = Block{Name: "minecraft:air"}

// Solid reports if entities stand on the block. Entities walk through blocks
// that are not solid.
func Solid(b world.Block) bool {
	name := world.BlockName(b)
	switch name {
	case "", Air.Name, "minecraft:water", "minecraft:lava", "minecraft:tall_grass":
		return false
	}
	return !strings.HasSuffix(name, "_pressure_plate")
}

// Config holds the options of a World.
type Config struct {
	// Range is the vertical range of every dimension. Cells outside of it
	// resolve to world.ErrOutOfBounds. If zero, -64 to 319 is used.
	Range cube.Range
	// Seed seeds the wandering of entities.
	Seed uint64
}

// World is an in-memory world.Host. It is safe for concurrent use.
type World struct {
	mu sync.Mutex
	r  cube.Range

	rand *rand.Rand

	blocks    map[world.BlockKey]world.Block
	unloaded  map[world.CellKey]struct{}
	entities  map[uuid.UUID]*Entity
	order     []uuid.UUID
	observers []*Observer
	tick      int64
}

// New creates an empty World.
func New(conf Config) *World {
	if conf.Range == (cube.Range{}) {
		conf.Range = cube.Range{-64, 319}
	}
	return &World{
		r:        conf.Range,
		rand:     rand.New(rand.NewPCG(conf.Seed, conf.Seed^0x9e3779b97f4a7c15)),
		blocks:   make(map[world.BlockKey]world.Block),
		unloaded: make(map[world.CellKey]struct{}),
		entities: make(map[uuid.UUID]*Entity),
	}
}

// Range returns the vertical range of the World.
func (w *World) Range() cube.Range {
	return w.r
}

// Block returns the block at a position. Cells never set hold Air.
func (w *World) Block(dim world.Dimension, pos cube.Pos) (world.Block, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blockLocked(dim, pos)
}

func (w *World) blockLocked(dim world.Dimension, pos cube.Pos) (world.Block, error) {
	if pos.OutOfBounds(w.r) {
		return nil, world.ErrOutOfBounds
	}
	if _, ok := w.unloaded[cellKey(dim, pos)]; ok {
		return nil, world.ErrUnloaded
	}
	if b, ok := w.blocks[world.BlockKey{Dim: dim, Pos: pos}]; ok {
		return b, nil
	}
	return Air, nil
}

// SetBlock sets the block at a position. Passing nil sets Air.
func (w *World) SetBlock(dim world.Dimension, pos cube.Pos, b world.Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := world.BlockKey{Dim: dim, Pos: pos}
	if b == nil || world.BlockName(b) == Air.Name {
		delete(w.blocks, key)
		return
	}
	w.blocks[key] = b
}

// Fill sets all cells between two corners, both inclusive, to b.
func (w *World) Fill(dim world.Dimension, from, to cube.Pos, b world.Block) {
	for x := min(from[0], to[0]); x <= max(from[0], to[0]); x++ {
		for y := min(from[1], to[1]); y <= max(from[1], to[1]); y++ {
			for z := min(from[2], to[2]); z <= max(from[2], to[2]); z++ {
				w.SetBlock(dim, cube.Pos{x, y, z}, b)
			}
		}
	}
}

// SetLoaded marks a column as loaded or unloaded. Blocks in unloaded columns
// resolve to world.ErrUnloaded and entities in them are not enumerated.
func (w *World) SetLoaded(key world.CellKey, loaded bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if loaded {
		delete(w.unloaded, key)
		return
	}
	w.unloaded[key] = struct{}{}
}

// AddEntity adds an entity to the World.
func (w *World) AddEntity(e *Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[e.id]; !ok {
		w.order = append(w.order, e.id)
	}
	w.entities[e.id] = e
}

// RemoveEntity removes an entity from the World. The entity reports itself
// invalid from then on.
func (w *World) RemoveEntity(id uuid.UUID) {
	w.mu.Lock()
	e, ok := w.entities[id]
	delete(w.entities, id)
	w.order = slices.DeleteFunc(w.order, func(other uuid.UUID) bool { return other == id })
	w.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
}

// Entity returns the entity with the UUID passed, if it is in the World.
func (w *World) Entity(id uuid.UUID) (*Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the entities of the World in the order they were added.
// Entities in unloaded columns are skipped.
func (w *World) Entities() iter.Seq[world.Entity] {
	w.mu.Lock()
	list := make([]*Entity, 0, len(w.order))
	for _, id := range w.order {
		e := w.entities[id]
		if _, unloaded := w.unloaded[cellKey(e.Dimension(), cube.PosFromVec3(e.Position()))]; unloaded {
			continue
		}
		list = append(list, e)
	}
	w.mu.Unlock()
	return func(yield func(world.Entity) bool) {
		for _, e := range list {
			if !yield(e) {
				return
			}
		}
	}
}

// AddObserver adds an observer to the World.
func (w *World) AddObserver(o *Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, o)
}

// RemoveObserver removes an observer from the World.
func (w *World) RemoveObserver(o *Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = slices.DeleteFunc(w.observers, func(other *Observer) bool { return other == o })
}

// Observers ...
func (w *World) Observers() iter.Seq[world.Observer] {
	w.mu.Lock()
	list := slices.Clone(w.observers)
	w.mu.Unlock()
	return func(yield func(world.Observer) bool) {
		for _, o := range list {
			if !yield(o) {
				return
			}
		}
	}
}

// CurrentTick returns the last tick passed to Tick.
func (w *World) CurrentTick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// Tick moves entities with physics enabled: wandering entities take a step in
// a random direction and every entity without solid ground below falls.
func (w *World) Tick(tick int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = tick

	for _, id := range w.order {
		e := w.entities[id]
		e.mu.Lock()
		if e.physics {
			w.stepLocked(e)
		}
		e.mu.Unlock()
	}
}

// stepLocked applies one tick of movement to an entity.
func (w *World) stepLocked(e *Entity) {
	if e.riding != uuid.Nil {
		if target, ok := w.entities[e.riding]; ok && target != e {
			// Riders are moved along by the entity they ride.
			target.mu.Lock()
			e.dim, e.pos = target.dim, target.pos.Add(mgl64.Vec3{0, 1, 0})
			target.mu.Unlock()
			e.onGround, e.falling = false, false
			return
		}
	}
	if e.wander && e.onGround {
		if w.rand.IntN(20) == 0 {
			e.heading = w.rand.Float64() * 2 * math.Pi
		}
		next := e.pos.Add(mgl64.Vec3{wanderSpeed * math.Cos(e.heading), 0, wanderSpeed * math.Sin(e.heading)})
		if b, err := w.blockLocked(e.dim, cube.PosFromVec3(next)); err == nil && !Solid(b) {
			e.pos = next
		} else {
			e.heading += math.Pi / 2
		}
	}

	feet := cube.PosFromVec3(e.pos)
	below, err := w.blockLocked(e.dim, feet.Side(cube.FaceDown))
	if err != nil {
		// Don't fall into unloaded columns or out of the world.
		return
	}
	if e.pos[1] == float64(feet[1]) && Solid(below) {
		e.onGround, e.falling = true, false
		return
	}
	e.onGround, e.falling = false, true
	next := e.pos.Sub(mgl64.Vec3{0, fallSpeed, 0})
	for y := feet[1] - 1; float64(y+1) > next[1]; y-- {
		pos := cube.Pos{feet[0], y, feet[2]}
		b, err := w.blockLocked(e.dim, pos)
		if err != nil {
			return
		}
		if Solid(b) {
			next[1] = float64(y + 1)
			break
		}
	}
	e.pos = next
}

const (
	fallSpeed   = 0.5
	wanderSpeed = 0.15
)

func cellKey(dim world.Dimension, pos cube.Pos) world.CellKey {
	return world.CellKey{Dim: dim, Pos: world.ChunkPos{int32(pos[0] >> 4), int32(pos[2] >> 4)}}
}
