package world

import (
	"log/slog"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/event"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// EntityEvent is implemented by every event concerning a single entity.
type EntityEvent interface {
	Entity() Entity
}

// MoveEvent is dispatched when the quantized position of an entity changed
// since the previous tick.
type MoveEvent struct {
	E Entity
	// Previous is the position the entity was at before, Position the one it
	// is at now.
	Previous, Position mgl64.Vec3
	// PreviousDimension is the dimension the entity was in before. It only
	// differs from the entity's current dimension after a dimension change.
	PreviousDimension Dimension
	// MovedBlock is true if the floored position of the entity changed.
	MovedBlock bool
	// MovedChunk is true if the entity moved into another column.
	MovedChunk bool
}

// Entity ...
func (e MoveEvent) Entity() Entity { return e.E }

// BlockEvent is dispatched for a single entity and cell: when entering or
// leaving the cell, stepping on or off the cell, or being inside it.
type BlockEvent struct {
	E     Entity
	Pos   cube.Pos
	Block Block
	// SameType reports, for enter and leave events, if the block on the other
	// side of the transition has the same type as Block. For step events it
	// reports the same for the cell below the other position. Types are
	// compared by name only, so a step between two states of the same block
	// fires with SameType set.
	SameType bool
}

// Entity ...
func (e BlockEvent) Entity() Entity { return e.E }

// MountEvent is dispatched when an entity starts or stops riding another
// entity.
type MountEvent struct {
	E      Entity
	Target uuid.UUID
}

// Entity ...
func (e MountEvent) Entity() Entity { return e.E }

// FallEvent is dispatched when an entity that was falling lands.
type FallEvent struct {
	E Entity
	// Pos is the cell the entity landed on and Block the block found there,
	// which is nil if the cell could not be resolved.
	Pos   cube.Pos
	Block Block
	// Distance is the height fallen, never negative.
	Distance float64
}

// Entity ...
func (e FallEvent) Entity() Entity { return e.E }

// ChunkEvent is dispatched when a column is loaded, unloaded or ticked.
type ChunkEvent struct {
	Key CellKey
	// Initial is true for a load event of a column never loaded before.
	Initial bool
	Tick    int64
}

// EventKind enumerates the events an Engine dispatches.
type EventKind uint8

const (
	EventMove EventKind = iota
	EventEnterBlock
	EventLeaveBlock
	EventStepOn
	EventStepOff
	EventInsideBlock
	EventMount
	EventDismount
	EventFallOn
	EventChunkLoad
	EventChunkUnload
	EventChunkTick
	eventKindCount
)

var eventKindNames = [eventKindCount]string{
	"move", "enter_block", "leave_block", "step_on", "step_off", "inside_block",
	"mount", "dismount", "fall_on", "chunk_load", "chunk_unload", "chunk_tick",
}

// String ...
func (k EventKind) String() string {
	if k < eventKindCount {
		return eventKindNames[k]
	}
	return "unknown"
}

// Events holds the signals of an Engine. Component logic subscribes to these
// to receive the events synthesized every tick.
type Events struct {
	Move        *event.Signal[MoveEvent]
	EnterBlock  *event.Signal[BlockEvent]
	LeaveBlock  *event.Signal[BlockEvent]
	StepOn      *event.Signal[BlockEvent]
	StepOff     *event.Signal[BlockEvent]
	InsideBlock *event.Signal[BlockEvent]
	Mount       *event.Signal[MountEvent]
	Dismount    *event.Signal[MountEvent]
	FallOn      *event.Signal[FallEvent]
	ChunkLoad   *event.Signal[ChunkEvent]
	ChunkUnload *event.Signal[ChunkEvent]
	ChunkTick   *event.Signal[ChunkEvent]
}

func newEvents(log *slog.Logger, m *Metrics) *Events {
	conf := func(k EventKind) event.Config {
		return event.Config{Name: k.String(), Log: log, PanicHook: func(string, any) { m.IncPanics(k) }}
	}
	return &Events{
		Move:        event.NewSignal[MoveEvent](conf(EventMove)),
		EnterBlock:  event.NewSignal[BlockEvent](conf(EventEnterBlock)),
		LeaveBlock:  event.NewSignal[BlockEvent](conf(EventLeaveBlock)),
		StepOn:      event.NewSignal[BlockEvent](conf(EventStepOn)),
		StepOff:     event.NewSignal[BlockEvent](conf(EventStepOff)),
		InsideBlock: event.NewSignal[BlockEvent](conf(EventInsideBlock)),
		Mount:       event.NewSignal[MountEvent](conf(EventMount)),
		Dismount:    event.NewSignal[MountEvent](conf(EventDismount)),
		FallOn:      event.NewSignal[FallEvent](conf(EventFallOn)),
		ChunkLoad:   event.NewSignal[ChunkEvent](conf(EventChunkLoad)),
		ChunkUnload: event.NewSignal[ChunkEvent](conf(EventChunkUnload)),
		ChunkTick:   event.NewSignal[ChunkEvent](conf(EventChunkTick)),
	}
}

// emit dispatches ev through s and records the dispatch in the metrics.
func emit[E any](m *Metrics, k EventKind, s *event.Signal[E], ev E) {
	m.IncDispatched(k)
	s.Dispatch(ev)
}
