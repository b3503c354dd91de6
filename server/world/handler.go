package world

import (
	"sync"

	"github.com/dm-vev/synth/server/event"
)

// Handler handles the events dispatched by an Engine. Embed NopHandler to only
// implement the methods needed.
type Handler interface {
	// HandleMove handles an entity moving.
	HandleMove(ev MoveEvent)
	// HandleEnterBlock handles an entity entering a cell.
	HandleEnterBlock(ev BlockEvent)
	// HandleLeaveBlock handles an entity leaving a cell.
	HandleLeaveBlock(ev BlockEvent)
	// HandleStepOn handles an entity stepping on a block.
	HandleStepOn(ev BlockEvent)
	// HandleStepOff handles an entity stepping off a block.
	HandleStepOff(ev BlockEvent)
	// HandleInsideBlock handles an entity being inside a block for a tick.
	HandleInsideBlock(ev BlockEvent)
	// HandleMount handles an entity starting to ride another entity.
	HandleMount(ev MountEvent)
	// HandleDismount handles an entity no longer riding another entity.
	HandleDismount(ev MountEvent)
	// HandleFallOn handles an entity landing after a fall.
	HandleFallOn(ev FallEvent)
	// HandleChunkLoad handles a column starting to be tracked.
	HandleChunkLoad(ev ChunkEvent)
	// HandleChunkUnload handles a column no longer being tracked.
	HandleChunkUnload(ev ChunkEvent)
	// HandleChunkTick handles a tracked column being ticked.
	HandleChunkTick(ev ChunkEvent)
}

// NopHandler implements the Handler interface but does not execute any code
// when an event is called.
type NopHandler struct{}

// Compile time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

func (NopHandler) HandleMove(MoveEvent)         {}
func (NopHandler) HandleEnterBlock(BlockEvent)  {}
func (NopHandler) HandleLeaveBlock(BlockEvent)  {}
func (NopHandler) HandleStepOn(BlockEvent)      {}
func (NopHandler) HandleStepOff(BlockEvent)     {}
func (NopHandler) HandleInsideBlock(BlockEvent) {}
func (NopHandler) HandleMount(MountEvent)       {}
func (NopHandler) HandleDismount(MountEvent)    {}
func (NopHandler) HandleFallOn(FallEvent)       {}
func (NopHandler) HandleChunkLoad(ChunkEvent)   {}
func (NopHandler) HandleChunkUnload(ChunkEvent) {}
func (NopHandler) HandleChunkTick(ChunkEvent)   {}

// Handle subscribes every method of h to the matching signal of the Engine.
// If Config.HandlerWrap is set, h is wrapped by it first. A nil Handler is
// replaced with NopHandler. The function returned detaches the handler again;
// calling it more than once has no effect.
func (e *Engine) Handle(h Handler) (detach func()) {
	h = e.wrapHandler(h)
	ev := e.events
	handles := []func(){
		subscription(ev.Move, h.HandleMove),
		subscription(ev.EnterBlock, h.HandleEnterBlock),
		subscription(ev.LeaveBlock, h.HandleLeaveBlock),
		subscription(ev.StepOn, h.HandleStepOn),
		subscription(ev.StepOff, h.HandleStepOff),
		subscription(ev.InsideBlock, h.HandleInsideBlock),
		subscription(ev.Mount, h.HandleMount),
		subscription(ev.Dismount, h.HandleDismount),
		subscription(ev.FallOn, h.HandleFallOn),
		subscription(ev.ChunkLoad, h.HandleChunkLoad),
		subscription(ev.ChunkUnload, h.HandleChunkUnload),
		subscription(ev.ChunkTick, h.HandleChunkTick),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsubscribe := range handles {
				unsubscribe()
			}
		})
	}
}

// subscription subscribes fn to s and returns a function that unsubscribes it.
func subscription[E any](s *event.Signal[E], fn func(E)) func() {
	h := s.Subscribe(fn)
	return func() { s.Unsubscribe(h) }
}
