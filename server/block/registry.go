package block

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/world"
)

// EntityInsider represents a block that reacts to an entity being inside of it,
// every tick the entity is.
type EntityInsider interface {
	// EntityInside is called every tick an entity is inside the block.
	EntityInside(e *world.Engine, ev world.BlockEvent)
}

// EntityEnterer represents a block that reacts to an entity entering its cell.
type EntityEnterer interface {
	// EntityEnter is called when an entity moves into the cell of the block.
	EntityEnter(e *world.Engine, ev world.BlockEvent)
}

// EntityLeaver represents a block that reacts to an entity leaving its cell.
type EntityLeaver interface {
	// EntityLeave is called when an entity moves out of the cell of the block.
	EntityLeave(e *world.Engine, ev world.BlockEvent)
}

// EntityStepper represents a block that reacts to entities stepping on and off
// of it.
type EntityStepper interface {
	// EntityStepOn is called when an entity starts standing on the block.
	EntityStepOn(e *world.Engine, ev world.BlockEvent)
	// EntityStepOff is called when an entity stops standing on the block.
	EntityStepOff(e *world.Engine, ev world.BlockEvent)
}

// EntityLander represents a block that reacts to an entity landing on it after
// a fall.
type EntityLander interface {
	// EntityLand is called when an entity lands on the block.
	EntityLand(e *world.Engine, ev world.FallEvent)
}

// ScheduledTicker represents a block that is ticked after a delay through
// Registry.Schedule.
type ScheduledTicker interface {
	// ScheduledTick is called when a tick scheduled for the block at pos is
	// due and the block was not replaced in the meantime.
	ScheduledTick(e *world.Engine, dim world.Dimension, pos cube.Pos)
}

// NeighbourUpdater represents a block that reacts to a change of one of its
// neighbours, detected by Registry.PollNeighbours.
type NeighbourUpdater interface {
	// NeighbourUpdate is called with the face of the neighbour that changed.
	NeighbourUpdate(e *world.Engine, dim world.Dimension, pos cube.Pos, face cube.Face)
}

var (
	// ErrNoBehaviour is returned when registering a value that implements none
	// of the behaviour interfaces of this package.
	ErrNoBehaviour = errors.New("block: value implements no behaviour")
	// ErrRegistered is returned when registering a behaviour for a block name
	// that already has one.
	ErrRegistered = errors.New("block: behaviour already registered")
)

// Registry maps block names to behaviours and routes the events of an Engine
// to the behaviour of the block involved. The zero value is not usable: use
// NewRegistry.
type Registry struct {
	log *slog.Logger

	mu         sync.RWMutex
	behaviours map[string]any
}

// NewRegistry creates an empty Registry. If log is nil, slog.Default() is
// used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log.With("subsystem", "block.registry"), behaviours: make(map[string]any)}
}

// Register registers the behaviour b for blocks with the name passed, such as
// "minecraft:magma". b must implement at least one of the behaviour interfaces
// of this package.
func (r *Registry) Register(name string, b any) error {
	if !isBehaviour(b) {
		return fmt.Errorf("%w: %T", ErrNoBehaviour, b)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.behaviours[name]; ok {
		return fmt.Errorf("%w: %v", ErrRegistered, name)
	}
	r.behaviours[name] = b
	r.log.Debug("Registered block behaviour.", "block", name, "behaviour", fmt.Sprintf("%T", b))
	return nil
}

// Unregister removes the behaviour registered for a block name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.behaviours[name]
	delete(r.behaviours, name)
	return ok
}

// Names returns the names of all blocks with a behaviour, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.behaviours))
	for name := range r.behaviours {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Behaviour returns the behaviour registered for a block, if any.
func (r *Registry) Behaviour(b world.Block) (any, bool) {
	if b == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.behaviours[world.BlockName(b)]
	return v, ok
}

func isBehaviour(b any) bool {
	switch b.(type) {
	case EntityInsider, EntityEnterer, EntityLeaver, EntityStepper, EntityLander, ScheduledTicker, NeighbourUpdater:
		return true
	}
	return false
}

// behaviourOf returns the behaviour of a block if it implements T.
func behaviourOf[T any](r *Registry, b world.Block) (T, bool) {
	v, ok := r.Behaviour(b)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Attach subscribes the Registry to the events of an Engine. The function
// returned detaches it again.
func (r *Registry) Attach(e *world.Engine) (detach func()) {
	return e.Handle(registryHandler{r: r, e: e})
}

// Schedule schedules a ScheduledTick for the block at pos after delay ticks.
// Nothing is scheduled if the block has no ScheduledTicker behaviour. The tick
// is dropped if the block is replaced before it is due.
func (r *Registry) Schedule(e *world.Engine, dim world.Dimension, pos cube.Pos, delay int) bool {
	b, err := e.Block(dim, pos)
	if err != nil {
		return false
	}
	t, ok := behaviourOf[ScheduledTicker](r, b)
	if !ok {
		return false
	}
	sc := e.After(world.BlockOwner{Dim: dim, Pos: pos}, func() {
		t.ScheduledTick(e, dim, pos)
	}, delay)
	return sc != nil
}

// PollNeighbours checks if a neighbour of the block at pos changed since the
// last poll and calls NeighbourUpdate on its behaviour if so. It reports if a
// change was found.
func (r *Registry) PollNeighbours(e *world.Engine, dim world.Dimension, pos cube.Pos) bool {
	face, changed := e.NeighbourChanged(dim, pos)
	if !changed {
		return false
	}
	b, err := e.Block(dim, pos)
	if err != nil {
		return true
	}
	if u, ok := behaviourOf[NeighbourUpdater](r, b); ok {
		u.NeighbourUpdate(e, dim, pos, face)
	}
	return true
}

// registryHandler routes the events of an Engine to the behaviours of a
// Registry.
type registryHandler struct {
	world.NopHandler
	r *Registry
	e *world.Engine
}

func (h registryHandler) HandleEnterBlock(ev world.BlockEvent) {
	if b, ok := behaviourOf[EntityEnterer](h.r, ev.Block); ok {
		b.EntityEnter(h.e, ev)
	}
}

func (h registryHandler) HandleLeaveBlock(ev world.BlockEvent) {
	if b, ok := behaviourOf[EntityLeaver](h.r, ev.Block); ok {
		b.EntityLeave(h.e, ev)
	}
}

func (h registryHandler) HandleStepOn(ev world.BlockEvent) {
	if b, ok := behaviourOf[EntityStepper](h.r, ev.Block); ok {
		b.EntityStepOn(h.e, ev)
	}
}

func (h registryHandler) HandleStepOff(ev world.BlockEvent) {
	if b, ok := behaviourOf[EntityStepper](h.r, ev.Block); ok {
		b.EntityStepOff(h.e, ev)
	}
}

func (h registryHandler) HandleInsideBlock(ev world.BlockEvent) {
	if b, ok := behaviourOf[EntityInsider](h.r, ev.Block); ok {
		b.EntityInside(h.e, ev)
	}
}

func (h registryHandler) HandleFallOn(ev world.FallEvent) {
	if b, ok := behaviourOf[EntityLander](h.r, ev.Block); ok {
		b.EntityLand(h.e, ev)
	}
}
