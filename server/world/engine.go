package world

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/google/uuid"
)

// Engine synthesizes events from the state of a Host. Every call to Tick
// samples all live entities and observers, compares what it finds with the
// state remembered from the previous tick and dispatches an event for every
// transition found. It also runs the scheduled callbacks registered through
// After.
//
// An Engine is driven from a single goroutine: Tick, After, Cancel and
// NeighbourChanged must not be called concurrently. Other goroutines use Exec
// to run code on the driving goroutine. Subscribing to and unsubscribing from
// the Events is safe at any time.
type Engine struct {
	conf  Config
	log   *slog.Logger
	host  Host
	facts FactStore

	events  *Events
	metrics *Metrics

	tick    int64
	running atomic.Bool
	tps     atomic.Uint64

	// entities holds the state of every entity seen in the last tick, indexed
	// by UUID. Entities not seen in a tick are dropped at the end of it.
	entities map[uuid.UUID]*entityState

	chunks     *chunkTracker
	scheduled  *scheduledCallbacks
	neighbours *NeighbourDetector

	queue chan transaction
}

// Events returns the signals of the Engine.
func (e *Engine) Events() *Events {
	return e.events
}

// CurrentTick returns the amount of ticks the Engine has completed.
func (e *Engine) CurrentTick() int64 {
	return e.tick
}

// TPS returns the ticks per second measured by Run. It is 0 if the Engine is
// not driven by Run.
func (e *Engine) TPS() float64 {
	return math.Float64frombits(e.tps.Load())
}

// Metrics returns a snapshot of the counters of the Engine.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Facts returns the facts currently remembered for the entity with the UUID
// passed.
func (e *Engine) Facts(id uuid.UUID) (Facts, bool) {
	st, ok := e.entities[id]
	if !ok {
		return Facts{}, false
	}
	return st.facts, true
}

// TrackedChunks returns the columns currently tracked, sorted by dimension and
// position.
func (e *Engine) TrackedChunks() []CellKey {
	return e.chunks.keys()
}

// NeighbourChanged checks if one of the six neighbours of the cell at pos
// changed since the last call for the same cell. The first call for a cell
// only records the neighbours and never reports a change.
func (e *Engine) NeighbourChanged(dim Dimension, pos cube.Pos) (cube.Face, bool) {
	return e.neighbours.Detect(dim, pos)
}

// Tick advances the Engine by a single tick. Entities are processed first,
// then columns, then scheduled callbacks. Tick returns early, between two of
// these phases, if ctx is cancelled. Functions queued through Exec run before
// any of the phases.
func (e *Engine) Tick(ctx context.Context) {
	e.handleTransactions()

	e.tick++
	tick := e.tick
	if t, ok := e.host.(HostTicker); ok {
		t.Tick(tick)
	}

	e.tickEntities(tick)
	if ctx.Err() != nil {
		return
	}
	e.tickChunks(tick)
	if ctx.Err() != nil {
		return
	}
	e.tickScheduled()

	e.metrics.IncTicks()
	e.metrics.SetTracked(e.chunks.len(), len(e.entities), e.scheduled.len())
}

// Entity looks up a live entity by its UUID. Entities enumerated by the host in
// the last tick are found directly, others are searched for in the host.
func (e *Engine) Entity(id uuid.UUID) (Entity, bool) {
	if st, ok := e.entities[id]; ok && st.ent != nil && st.ent.Valid() {
		return st.ent, true
	}
	for ent := range e.host.Entities() {
		if ent != nil && ent.UUID() == id && ent.Valid() {
			return ent, true
		}
	}
	return nil, false
}

// saveFacts persists the facts of an entity. Failures are logged and counted,
// but never stop the tick.
func (e *Engine) saveFacts(id uuid.UUID, f Facts) {
	if err := e.facts.SaveFacts(id, f); err != nil {
		e.metrics.IncFactErrors()
		e.log.Warn("Save entity facts.", "uuid", id, "error", err)
	}
}

// Block resolves the block at a position through the Host. A host returning a
// nil block without an error is treated as returning ErrUnloaded.
func (e *Engine) Block(dim Dimension, pos cube.Pos) (Block, error) {
	b, err := e.host.Block(dim, pos)
	if err == nil && b == nil {
		return nil, ErrUnloaded
	}
	return b, err
}
