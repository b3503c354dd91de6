package world

import (
	"io"
	"iter"
	"log/slog"
	"testing"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type testBlock struct {
	name  string
	props map[string]any
}

func (b testBlock) EncodeBlock() (string, map[string]any) {
	return b.name, b.props
}

var (
	testAir   = testBlock{name: "minecraft:air"}
	testStone = testBlock{name: "minecraft:stone"}
	testDirt  = testBlock{name: "minecraft:dirt"}
	testSand  = testBlock{name: "minecraft:sand"}
)

type testEntity struct {
	id       uuid.UUID
	typ      string
	dim      Dimension
	pos      mgl64.Vec3
	onGround bool
	falling  bool
	riding   uuid.UUID
	invalid  bool
}

func newTestEntity(typ string, pos mgl64.Vec3) *testEntity {
	return &testEntity{id: uuid.New(), typ: typ, pos: pos, onGround: true}
}

func (e *testEntity) UUID() uuid.UUID           { return e.id }
func (e *testEntity) Type() string              { return e.typ }
func (e *testEntity) Dimension() Dimension      { return e.dim }
func (e *testEntity) Position() mgl64.Vec3      { return e.pos }
func (e *testEntity) OnGround() bool            { return e.onGround }
func (e *testEntity) Falling() bool             { return e.falling }
func (e *testEntity) Valid() bool               { return !e.invalid }
func (e *testEntity) Riding() (uuid.UUID, bool) { return e.riding, e.riding != uuid.Nil }

type testObserver struct {
	dim    Dimension
	pos    mgl64.Vec3
	radius int
}

func (o *testObserver) Dimension() Dimension { return o.dim }
func (o *testObserver) Position() mgl64.Vec3 { return o.pos }
func (o *testObserver) ChunkRadius() int     { return o.radius }

// testHost is a Host holding blocks in a map. Cells never set hold air, cells
// outside of the range hold nothing and columns marked unloaded fail to
// resolve.
type testHost struct {
	r         cube.Range
	blocks    map[BlockKey]Block
	unloaded  map[CellKey]bool
	entities  []*testEntity
	observers []*testObserver
	ticks     []int64
}

func newTestHost() *testHost {
	return &testHost{r: cube.Range{0, 255}, blocks: make(map[BlockKey]Block), unloaded: make(map[CellKey]bool)}
}

func (h *testHost) Block(dim Dimension, pos cube.Pos) (Block, error) {
	if pos.OutOfBounds(h.r) {
		return nil, ErrOutOfBounds
	}
	if h.unloaded[CellKey{Dim: dim, Pos: chunkPosFromBlockPos(pos)}] {
		return nil, ErrUnloaded
	}
	if b, ok := h.blocks[BlockKey{Dim: dim, Pos: pos}]; ok {
		return b, nil
	}
	return testAir, nil
}

func (h *testHost) set(pos cube.Pos, b Block) {
	h.blocks[BlockKey{Pos: pos}] = b
}

func (h *testHost) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, e := range h.entities {
			if !yield(e) {
				return
			}
		}
	}
}

func (h *testHost) Observers() iter.Seq[Observer] {
	return func(yield func(Observer) bool) {
		for _, o := range h.observers {
			if !yield(o) {
				return
			}
		}
	}
}

func (h *testHost) Tick(tick int64) {
	h.ticks = append(h.ticks, tick)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, h Host, facts FactStore) *Engine {
	t.Helper()
	e, err := Config{Log: discardLogger(), Host: h, Facts: facts, NeighbourCacheSize: 16}.New()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	return e
}

// recorder records the names of the events dispatched by an Engine in order.
type recorder struct {
	NopHandler
	events []string
	moves  []MoveEvent
	blocks []BlockEvent
	mounts []MountEvent
	falls  []FallEvent
	chunks []ChunkEvent
}

func (r *recorder) HandleMove(ev MoveEvent) {
	r.events = append(r.events, "move")
	r.moves = append(r.moves, ev)
}

func (r *recorder) block(name string, ev BlockEvent) {
	r.events = append(r.events, name)
	r.blocks = append(r.blocks, ev)
}

func (r *recorder) HandleEnterBlock(ev BlockEvent) { r.block("enter", ev) }
func (r *recorder) HandleLeaveBlock(ev BlockEvent) { r.block("leave", ev) }
func (r *recorder) HandleStepOn(ev BlockEvent)     { r.block("step_on", ev) }
func (r *recorder) HandleStepOff(ev BlockEvent)    { r.block("step_off", ev) }

func (r *recorder) HandleMount(ev MountEvent) {
	r.events = append(r.events, "mount")
	r.mounts = append(r.mounts, ev)
}

func (r *recorder) HandleDismount(ev MountEvent) {
	r.events = append(r.events, "dismount")
	r.mounts = append(r.mounts, ev)
}

func (r *recorder) HandleFallOn(ev FallEvent) {
	r.events = append(r.events, "fall")
	r.falls = append(r.falls, ev)
}

func (r *recorder) HandleChunkLoad(ev ChunkEvent) {
	r.events = append(r.events, "load")
	r.chunks = append(r.chunks, ev)
}

func (r *recorder) HandleChunkUnload(ev ChunkEvent) {
	r.events = append(r.events, "unload")
	r.chunks = append(r.chunks, ev)
}

func (r *recorder) HandleChunkTick(ev ChunkEvent) {
	r.events = append(r.events, "tick")
	r.chunks = append(r.chunks, ev)
}

func (r *recorder) reset() {
	*r = recorder{}
}

func (r *recorder) count(name string) int {
	n := 0
	for _, ev := range r.events {
		if ev == name {
			n++
		}
	}
	return n
}
