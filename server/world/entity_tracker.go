package world

import (
	"math"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// positionPrecision is the amount of decimals positions are rounded to before
// they are compared, so that float noise below it never produces movement.
const positionPrecision = 2

// Quantize rounds every component of a position to two decimals.
func Quantize(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		mgl64.Round(v[0], positionPrecision),
		mgl64.Round(v[1], positionPrecision),
		mgl64.Round(v[2], positionPrecision),
	}
}

// Observation is the state of an entity sampled from the host in the current
// tick.
type Observation struct {
	Dimension Dimension
	// Position is the quantized position of the entity's feet.
	Position mgl64.Vec3
	OnGround bool
	Falling  bool
	// Riding is the UUID of the entity ridden, uuid.Nil if none.
	Riding uuid.UUID
	// Below is the block directly below the entity's feet. It is nil if the
	// cell could not be resolved.
	Below Block
}

// Cell returns the cell the entity's feet are in.
func (o Observation) Cell() cube.Pos {
	return cube.PosFromVec3(o.Position)
}

// observe samples the state of an entity.
func (e *Engine) observe(ent Entity) Observation {
	o := Observation{
		Dimension: ent.Dimension(),
		Position:  Quantize(ent.Position()),
		OnGround:  ent.OnGround(),
		Falling:   ent.Falling(),
	}
	if id, ok := ent.Riding(); ok {
		o.Riding = id
	}
	if b, err := e.Block(o.Dimension, o.Cell().Side(cube.FaceDown)); err == nil {
		o.Below = b
	}
	return o
}

// entityState is the in-memory state of an entity tracked by the engine. The
// facts are written to the FactStore in every tick they change in.
type entityState struct {
	ent   Entity
	facts Facts
	// seen is the last tick the entity was enumerated by the host.
	seen int64
	// step is a step check that could not be completed yet because the cell
	// below the new position did not resolve.
	step *stepCheck
}

// stepCheck is a pending comparison between the cell below an entity's old
// position and the one below its current position.
type stepCheck struct {
	dim Dimension
	pos cube.Pos
	// block is the block below the old position, nil if it did not resolve.
	block Block
}

// tickEntities runs the transition synthesizer for every live entity and
// forgets entities that were removed or not enumerated by the host.
func (e *Engine) tickEntities(tick int64) {
	for ent := range e.host.Entities() {
		if ent == nil {
			continue
		}
		id := ent.UUID()
		if !ent.Valid() {
			e.removeEntity(id)
			continue
		}
		st := e.entityState(id)
		if st.seen == tick {
			// Enumerated twice in the same tick.
			continue
		}
		st.seen, st.ent = tick, ent
		prev := st.facts
		e.tickEntity(ent, st, e.observe(ent))
		if st.facts != prev {
			e.saveFacts(id, st.facts)
		}
	}
	for id, st := range e.entities {
		if st.seen == tick {
			continue
		}
		if st.ent != nil && !st.ent.Valid() {
			e.removeEntity(id)
			continue
		}
		// The entity is no longer enumerated but still valid, for example
		// because its column was unloaded. Its facts stay in the store so
		// that they are picked up again once it returns.
		delete(e.entities, id)
	}
}

// entityState returns the state of an entity, loading its facts from the
// FactStore if the entity was not tracked yet.
func (e *Engine) entityState(id uuid.UUID) *entityState {
	if st, ok := e.entities[id]; ok {
		return st
	}
	st := &entityState{}
	f, ok, err := e.facts.LoadFacts(id)
	if err != nil {
		e.metrics.IncFactErrors()
		e.log.Warn("Load entity facts.", "uuid", id, "error", err)
	} else if ok {
		st.facts = f
	}
	e.entities[id] = st
	return st
}

// removeEntity forgets an entity that is no longer live, deleting its facts.
func (e *Engine) removeEntity(id uuid.UUID) {
	delete(e.entities, id)
	if err := e.facts.DeleteFacts(id); err != nil {
		e.metrics.IncFactErrors()
		e.log.Warn("Delete entity facts.", "uuid", id, "error", err)
	}
}

// tickEntity compares an observation of an entity with its facts and
// dispatches an event for every transition found. Every fact is updated
// before the event derived from it is dispatched.
func (e *Engine) tickEntity(ent Entity, st *entityState, o Observation) {
	e.tickMount(ent, st, o)
	e.tickMove(ent, st, o)
	e.tickInside(ent, o)
	e.tickFall(ent, st, o)
}

// tickMount dispatches Mount and Dismount events when the ride target of an
// entity changed. Switching directly from one target to another dispatches a
// Dismount for the old target before the Mount for the new one.
func (e *Engine) tickMount(ent Entity, st *entityState, o Observation) {
	prev := st.facts.Riding
	if prev == o.Riding {
		return
	}
	st.facts.Riding = o.Riding
	if prev != uuid.Nil {
		emit(e.metrics, EventDismount, e.events.Dismount, MountEvent{E: ent, Target: prev})
	}
	if o.Riding != uuid.Nil {
		emit(e.metrics, EventMount, e.events.Mount, MountEvent{E: ent, Target: o.Riding})
	}
}

// tickMove dispatches a MoveEvent when the quantized position of an entity
// changed, followed by the block enter, leave and step events derived from
// the move. The first observation of an entity only records its position.
func (e *Engine) tickMove(ent Entity, st *entityState, o Observation) {
	f := st.facts
	if !f.Positioned {
		st.facts.Dimension, st.facts.Position, st.facts.Positioned = o.Dimension, o.Position, true
		return
	}
	if f.Position == o.Position && f.Dimension == o.Dimension {
		e.retryStep(ent, st, o)
		return
	}
	st.facts.Dimension, st.facts.Position = o.Dimension, o.Position

	oldCell, newCell := cube.PosFromVec3(f.Position), o.Cell()
	changedDim := f.Dimension != o.Dimension
	ev := MoveEvent{
		E:                 ent,
		Previous:          f.Position,
		Position:          o.Position,
		PreviousDimension: f.Dimension,
		MovedBlock:        changedDim || oldCell != newCell,
		MovedChunk:        changedDim || chunkPosFromVec3(f.Position) != chunkPosFromVec3(o.Position),
	}
	emit(e.metrics, EventMove, e.events.Move, ev)
	if !ev.MovedBlock {
		e.retryStep(ent, st, o)
		return
	}
	e.enterLeave(ent, f.Dimension, oldCell, o.Dimension, newCell)

	// A pending check already holds the cell the entity stood on before the
	// move that started it.
	old := st.step
	if old == nil {
		old = &stepCheck{dim: f.Dimension, pos: oldCell.Side(cube.FaceDown)}
		old.block, _ = e.Block(old.dim, old.pos)
	}
	st.step = old
	e.retryStep(ent, st, o)
}

// enterLeave dispatches a LeaveBlock event for the old cell followed by an
// EnterBlock event for the new cell. A side that fails to resolve is skipped.
func (e *Engine) enterLeave(ent Entity, oldDim Dimension, oldCell cube.Pos, newDim Dimension, newCell cube.Pos) {
	oldBlock, oldErr := e.Block(oldDim, oldCell)
	newBlock, newErr := e.Block(newDim, newCell)
	same := oldErr == nil && newErr == nil && sameBlockType(oldBlock, newBlock)
	if oldErr == nil {
		emit(e.metrics, EventLeaveBlock, e.events.LeaveBlock, BlockEvent{E: ent, Pos: oldCell, Block: oldBlock, SameType: same})
	}
	if newErr == nil {
		emit(e.metrics, EventEnterBlock, e.events.EnterBlock, BlockEvent{E: ent, Pos: newCell, Block: newBlock, SameType: same})
	}
}

// retryStep completes the pending step check of an entity, if any. The check
// stays pending while the cell below the entity does not resolve.
func (e *Engine) retryStep(ent Entity, st *entityState, o Observation) {
	check := st.step
	if check == nil || o.Below == nil {
		return
	}
	st.step = nil

	newPos := o.Cell().Side(cube.FaceDown)
	if check.dim == o.Dimension && check.pos == newPos {
		return
	}
	if BlockHash(check.block) == BlockHash(o.Below) {
		return
	}
	same := sameBlockType(check.block, o.Below)
	if check.block != nil {
		emit(e.metrics, EventStepOff, e.events.StepOff, BlockEvent{E: ent, Pos: check.pos, Block: check.block, SameType: same})
	}
	emit(e.metrics, EventStepOn, e.events.StepOn, BlockEvent{E: ent, Pos: newPos, Block: o.Below, SameType: same})
}

// tickInside dispatches an InsideBlock event if the cell the entity is in
// resolves.
func (e *Engine) tickInside(ent Entity, o Observation) {
	pos := o.Cell()
	b, err := e.Block(o.Dimension, pos)
	if err != nil {
		return
	}
	emit(e.metrics, EventInsideBlock, e.events.InsideBlock, BlockEvent{E: ent, Pos: pos, Block: b})
}

// tickFall marks the start of a fall and dispatches a FallEvent once the
// entity lands. Only one fall is tracked at a time: a new fall only starts
// after the previous one landed.
func (e *Engine) tickFall(ent Entity, st *entityState, o Observation) {
	if !st.facts.Falling {
		if o.Falling && !o.OnGround {
			st.facts.Falling, st.facts.FallStart = true, o.Position
		}
		return
	}
	if !o.OnGround {
		return
	}
	start := st.facts.FallStart
	st.facts.Falling, st.facts.FallStart = false, mgl64.Vec3{}

	emit(e.metrics, EventFallOn, e.events.FallOn, FallEvent{
		E:        ent,
		Pos:      o.Cell().Side(cube.FaceDown),
		Block:    o.Below,
		Distance: FallDistance(start, o.Position),
	})
}

// FallDistance returns the height fallen between two positions. It is never
// negative: landing above the start of a fall yields 0.
func FallDistance(start, land mgl64.Vec3) float64 {
	return math.Max(0, mgl64.Round(start[1]-land[1], positionPrecision))
}
