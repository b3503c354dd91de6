package world

import (
	"context"
	"slices"
	"testing"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

func setupEntity(t *testing.T, pos mgl64.Vec3) (*testHost, *testEntity, *Engine, *recorder) {
	t.Helper()
	h := newTestHost()
	ent := newTestEntity("minecraft:pig", pos)
	h.entities = append(h.entities, ent)
	e := newTestEngine(t, h, nil)
	rec := &recorder{}
	e.Handle(rec)
	return h, ent, e, rec
}

func TestFirstTickEstablishesBaseline(t *testing.T) {
	_, ent, e, rec := setupEntity(t, mgl64.Vec3{10, 64, 10})

	e.Tick(context.Background())
	if n := rec.count("move"); n != 0 {
		t.Fatalf("expected no move on first tick, got %v", n)
	}

	ent.pos = mgl64.Vec3{10, 64, 11}
	e.Tick(context.Background())
	if len(rec.moves) != 1 {
		t.Fatalf("expected exactly one move, got %v", len(rec.moves))
	}
	ev := rec.moves[0]
	if ev.Previous != (mgl64.Vec3{10, 64, 10}) || ev.Position != (mgl64.Vec3{10, 64, 11}) {
		t.Fatalf("unexpected move positions: %v -> %v", ev.Previous, ev.Position)
	}
	if !ev.MovedBlock {
		t.Fatalf("expected move to another block")
	}
	if ev.MovedChunk {
		t.Fatalf("expected move within the same column")
	}
	if f, _ := e.Facts(ent.id); f.Position != ev.Position {
		t.Fatalf("expected facts to hold %v, got %v", ev.Position, f.Position)
	}
}

func TestMoveAtMostOncePerTransition(t *testing.T) {
	_, ent, e, rec := setupEntity(t, mgl64.Vec3{10, 64, 10})
	ctx := context.Background()

	e.Tick(ctx)
	ent.pos = mgl64.Vec3{10.001, 64, 10.004}
	e.Tick(ctx)
	e.Tick(ctx)
	if n := rec.count("move"); n != 0 {
		t.Fatalf("expected movement below precision to be ignored, got %v moves", n)
	}

	ent.pos = mgl64.Vec3{10.3, 64, 10}
	e.Tick(ctx)
	e.Tick(ctx)
	if n := rec.count("move"); n != 1 {
		t.Fatalf("expected one move, got %v", n)
	}
	if rec.moves[0].MovedBlock {
		t.Fatalf("expected move within the same block")
	}
	if rec.moves[0].Previous == rec.moves[0].Position {
		t.Fatalf("expected positions of a move to differ")
	}
}

func TestQuantize(t *testing.T) {
	tests := map[mgl64.Vec3]mgl64.Vec3{
		{10.001, 64, 10.004}:   {10, 64, 10},
		{10.006, 63.999, -0.5}: {10.01, 64, -0.5},
		{-3.333, 0, 1.125}:     {-3.33, 0, 1.13},
	}
	for in, want := range tests {
		if got := Quantize(in); got != want {
			t.Errorf("Quantize(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestLeaveBeforeEnter(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{10.5, 64, 10.5})
	h.set(cube.Pos{10, 64, 10}, testSand)
	h.set(cube.Pos{11, 64, 10}, testSand)
	ctx := context.Background()

	e.Tick(ctx)
	ent.pos = mgl64.Vec3{11.5, 64, 10.5}
	e.Tick(ctx)

	want := []string{"move", "leave", "enter"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v, got %v", want, rec.events)
	}
	leave, enter := rec.blocks[0], rec.blocks[1]
	if leave.Pos != (cube.Pos{10, 64, 10}) || enter.Pos != (cube.Pos{11, 64, 10}) {
		t.Fatalf("unexpected positions: leave %v, enter %v", leave.Pos, enter.Pos)
	}
	if !leave.SameType || !enter.SameType {
		t.Fatalf("expected both sides to report the same block type")
	}
	if BlockName(enter.Block) != testSand.name {
		t.Fatalf("expected sand to be entered, got %v", BlockName(enter.Block))
	}
}

func TestEnterSkippedForUnresolvedBlock(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{15.5, 64, 0.5})
	h.set(cube.Pos{15, 63, 0}, testStone)
	h.set(cube.Pos{16, 63, 0}, testDirt)
	ctx := context.Background()

	e.Tick(ctx)
	h.unloaded[CellKey{Pos: ChunkPos{1, 0}}] = true
	ent.pos = mgl64.Vec3{16.5, 64, 0.5}
	e.Tick(ctx)

	want := []string{"move", "leave"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v, got %v", want, rec.events)
	}
	if !rec.moves[0].MovedChunk {
		t.Fatalf("expected move to another column")
	}

	// The step check is completed once the cell below resolves.
	delete(h.unloaded, CellKey{Pos: ChunkPos{1, 0}})
	rec.reset()
	e.Tick(ctx)
	want = []string{"step_off", "step_on"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v after retry, got %v", want, rec.events)
	}
	if rec.blocks[0].Pos != (cube.Pos{15, 63, 0}) || rec.blocks[1].Pos != (cube.Pos{16, 63, 0}) {
		t.Fatalf("unexpected step positions: off %v, on %v", rec.blocks[0].Pos, rec.blocks[1].Pos)
	}

	rec.reset()
	e.Tick(ctx)
	if len(rec.events) != 0 {
		t.Fatalf("expected no events once settled, got %v", rec.events)
	}
}

func TestStepOffBeforeStepOn(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{10.5, 64, 10.5})
	h.set(cube.Pos{10, 63, 10}, testStone)
	h.set(cube.Pos{10, 63, 11}, testDirt)
	h.set(cube.Pos{10, 63, 12}, testDirt)
	ctx := context.Background()

	e.Tick(ctx)
	ent.pos = mgl64.Vec3{10.5, 64, 11.5}
	e.Tick(ctx)
	want := []string{"move", "leave", "enter", "step_off", "step_on"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v, got %v", want, rec.events)
	}
	off, on := rec.blocks[2], rec.blocks[3]
	if BlockName(off.Block) != testStone.name || BlockName(on.Block) != testDirt.name {
		t.Fatalf("expected step off stone and on dirt, got %v and %v", BlockName(off.Block), BlockName(on.Block))
	}
	if off.SameType || on.SameType {
		t.Fatalf("expected step events to report different block types")
	}

	// Moving between two cells of the same block does not step.
	rec.reset()
	ent.pos = mgl64.Vec3{10.5, 64, 12.5}
	e.Tick(ctx)
	want = []string{"move", "leave", "enter"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v, got %v", want, rec.events)
	}
}

func TestStepBetweenBlockStates(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{10.5, 64, 10.5})
	h.set(cube.Pos{10, 63, 10}, testBlock{name: "minecraft:wool", props: map[string]any{"colour": "red"}})
	h.set(cube.Pos{10, 63, 11}, testBlock{name: "minecraft:wool", props: map[string]any{"colour": "blue"}})
	ctx := context.Background()

	e.Tick(ctx)
	ent.pos = mgl64.Vec3{10.5, 64, 11.5}
	e.Tick(ctx)
	want := []string{"move", "leave", "enter", "step_off", "step_on"}
	if !slices.Equal(rec.events, want) {
		t.Fatalf("expected events %v, got %v", want, rec.events)
	}
	if off, on := rec.blocks[2], rec.blocks[3]; !off.SameType || !on.SameType {
		t.Fatalf("expected steps between states of one block to report the same type")
	}
}

func TestStepOutOfBoundsIgnored(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{0.5, 0, 0.5})
	h.set(cube.Pos{0, 0, 0}, testStone)
	ctx := context.Background()

	e.Tick(ctx)
	ent.pos = mgl64.Vec3{1.5, 0, 0.5}
	e.Tick(ctx)
	e.Tick(ctx)
	if rec.count("step_on")+rec.count("step_off") != 0 {
		t.Fatalf("expected no step events below the world, got %v", rec.events)
	}
	if rec.count("move") != 1 {
		t.Fatalf("expected one move, got %v", rec.events)
	}
}

func TestInsideBlockEveryTick(t *testing.T) {
	h, _, e, _ := setupEntity(t, mgl64.Vec3{10.5, 64, 10.5})
	h.set(cube.Pos{10, 64, 10}, testBlock{name: "minecraft:water"})
	var inside []BlockEvent
	e.Events().InsideBlock.Subscribe(func(ev BlockEvent) { inside = append(inside, ev) })
	ctx := context.Background()

	for range 3 {
		e.Tick(ctx)
	}
	if len(inside) != 3 {
		t.Fatalf("expected an inside event every tick, got %v", len(inside))
	}
	if BlockName(inside[0].Block) != "minecraft:water" || inside[0].Pos != (cube.Pos{10, 64, 10}) {
		t.Fatalf("unexpected inside event %+v", inside[0])
	}

	h.unloaded[CellKey{}] = true
	e.Tick(ctx)
	if len(inside) != 3 {
		t.Fatalf("expected no inside event for an unresolved cell")
	}
}

func TestMountDismount(t *testing.T) {
	_, ent, e, rec := setupEntity(t, mgl64.Vec3{10, 64, 10})
	first, second := uuid.New(), uuid.New()
	ctx := context.Background()

	e.Tick(ctx)
	ent.riding = first
	e.Tick(ctx)
	e.Tick(ctx)
	if !slices.Equal(rec.events, []string{"mount"}) || rec.mounts[0].Target != first {
		t.Fatalf("expected a single mount of the first target, got %v", rec.events)
	}

	rec.reset()
	ent.riding = second
	e.Tick(ctx)
	if !slices.Equal(rec.events, []string{"dismount", "mount"}) {
		t.Fatalf("expected dismount before mount, got %v", rec.events)
	}
	if rec.mounts[0].Target != first || rec.mounts[1].Target != second {
		t.Fatalf("unexpected targets %v and %v", rec.mounts[0].Target, rec.mounts[1].Target)
	}

	rec.reset()
	ent.riding = uuid.Nil
	e.Tick(ctx)
	if !slices.Equal(rec.events, []string{"dismount"}) || rec.mounts[0].Target != second {
		t.Fatalf("expected dismount of the last target, got %v", rec.events)
	}
	if f, _ := e.Facts(ent.id); f.Riding != uuid.Nil {
		t.Fatalf("expected ride target to be cleared, got %v", f.Riding)
	}
}

func TestMountBeforeMove(t *testing.T) {
	_, ent, e, rec := setupEntity(t, mgl64.Vec3{10, 64, 10})
	ctx := context.Background()

	e.Tick(ctx)
	ent.riding = uuid.New()
	ent.pos = mgl64.Vec3{10, 65, 10}
	e.Tick(ctx)
	if len(rec.events) < 2 || rec.events[0] != "mount" || rec.events[1] != "move" {
		t.Fatalf("expected mount to precede move, got %v", rec.events)
	}
}

func TestFallOn(t *testing.T) {
	h, ent, e, rec := setupEntity(t, mgl64.Vec3{10.5, 80, 10.5})
	h.set(cube.Pos{10, 63, 10}, testStone)
	ent.onGround, ent.falling = false, true
	ctx := context.Background()

	e.Tick(ctx)
	if f, _ := e.Facts(ent.id); !f.Falling || f.FallStart[1] != 80 {
		t.Fatalf("expected fall to start at 80, got %+v", f)
	}
	ent.pos = mgl64.Vec3{10.5, 70, 10.5}
	e.Tick(ctx)
	if rec.count("fall") != 0 {
		t.Fatalf("expected no landing while falling")
	}

	ent.pos = mgl64.Vec3{10.5, 64, 10.5}
	ent.onGround, ent.falling = true, false
	e.Tick(ctx)
	e.Tick(ctx)
	if len(rec.falls) != 1 {
		t.Fatalf("expected exactly one landing, got %v", len(rec.falls))
	}
	ev := rec.falls[0]
	if ev.Distance != 16 {
		t.Fatalf("expected fall distance 16, got %v", ev.Distance)
	}
	if ev.Pos != (cube.Pos{10, 63, 10}) || BlockName(ev.Block) != testStone.name {
		t.Fatalf("expected landing on stone at (10, 63, 10), got %v at %v", BlockName(ev.Block), ev.Pos)
	}
	if f, _ := e.Facts(ent.id); f.Falling {
		t.Fatalf("expected falling marker to be cleared")
	}
}

func TestFallDistanceNeverNegative(t *testing.T) {
	if d := FallDistance(mgl64.Vec3{0, 64, 0}, mgl64.Vec3{0, 66.5, 0}); d != 0 {
		t.Fatalf("expected 0 when landing above the start, got %v", d)
	}
	if d := FallDistance(mgl64.Vec3{0, 70.25, 0}, mgl64.Vec3{0, 64, 0}); d != 6.25 {
		t.Fatalf("expected 6.25, got %v", d)
	}
}

func TestDimensionChange(t *testing.T) {
	_, ent, e, rec := setupEntity(t, mgl64.Vec3{10, 64, 10})
	ctx := context.Background()

	e.Tick(ctx)
	ent.dim = Nether
	e.Tick(ctx)
	if len(rec.moves) != 1 {
		t.Fatalf("expected a move on dimension change, got %v", len(rec.moves))
	}
	ev := rec.moves[0]
	if ev.PreviousDimension != Overworld || !ev.MovedBlock || !ev.MovedChunk {
		t.Fatalf("unexpected move %+v", ev)
	}
}

func TestRemovedEntityForgotten(t *testing.T) {
	h := newTestHost()
	ent := newTestEntity("minecraft:cow", mgl64.Vec3{1, 64, 1})
	h.entities = append(h.entities, ent)
	store := NewMemoryFactStore()
	e := newTestEngine(t, h, store)
	ctx := context.Background()

	e.Tick(ctx)
	if store.Len() != 1 {
		t.Fatalf("expected facts to be saved, got %v entries", store.Len())
	}

	ent.invalid = true
	e.Tick(ctx)
	if _, ok := e.Facts(ent.id); ok {
		t.Fatalf("expected removed entity to be forgotten")
	}
	if store.Len() != 0 {
		t.Fatalf("expected facts of removed entity to be deleted")
	}
}

func TestRemovedEntityNoLongerListed(t *testing.T) {
	h := newTestHost()
	ent := newTestEntity("minecraft:cow", mgl64.Vec3{1, 64, 1})
	h.entities = append(h.entities, ent)
	store := NewMemoryFactStore()
	e := newTestEngine(t, h, store)
	ctx := context.Background()

	e.Tick(ctx)
	// The host stops listing the entity as soon as it is removed.
	ent.invalid, h.entities = true, nil
	e.Tick(ctx)
	if _, ok := e.Facts(ent.id); ok {
		t.Fatalf("expected removed entity to be forgotten")
	}
	if store.Len() != 0 {
		t.Fatalf("expected facts of removed entity to be deleted, got %v entries", store.Len())
	}
}

// countingStore counts the writes made to a FactStore.
type countingStore struct {
	*MemoryFactStore
	saves int
}

func (s *countingStore) SaveFacts(id uuid.UUID, f Facts) error {
	s.saves++
	return s.MemoryFactStore.SaveFacts(id, f)
}

func TestFactsSavedOnlyOnChange(t *testing.T) {
	h := newTestHost()
	ent := newTestEntity("minecraft:cow", mgl64.Vec3{1, 64, 1})
	h.entities = append(h.entities, ent)
	store := &countingStore{MemoryFactStore: NewMemoryFactStore()}
	e := newTestEngine(t, h, store)
	ctx := context.Background()

	for range 100 {
		e.Tick(ctx)
	}
	if store.saves != 1 {
		t.Fatalf("expected a motionless entity to be saved once, got %v saves", store.saves)
	}

	ent.pos = mgl64.Vec3{1, 64, 3}
	e.Tick(ctx)
	e.Tick(ctx)
	if store.saves != 2 {
		t.Fatalf("expected a single save for a single move, got %v saves", store.saves)
	}
	if f, ok, _ := store.LoadFacts(ent.id); !ok || f.Position != ent.pos {
		t.Fatalf("expected stored position %v, got %+v", ent.pos, f)
	}
}

func TestUnloadedEntityKeepsFacts(t *testing.T) {
	h := newTestHost()
	ent := newTestEntity("minecraft:cow", mgl64.Vec3{1, 64, 1})
	h.entities = append(h.entities, ent)
	store := NewMemoryFactStore()
	e := newTestEngine(t, h, store)
	rec := &recorder{}
	e.Handle(rec)
	ctx := context.Background()

	e.Tick(ctx)
	h.entities = nil
	e.Tick(ctx)
	if _, ok := e.Facts(ent.id); ok {
		t.Fatalf("expected absent entity to be dropped from memory")
	}
	if store.Len() != 1 {
		t.Fatalf("expected facts of absent entity to be kept")
	}

	// The entity returns somewhere else: its facts are picked up again.
	ent.pos = mgl64.Vec3{1, 64, 3}
	h.entities = append(h.entities, ent)
	e.Tick(ctx)
	if len(rec.moves) != 1 || rec.moves[0].Previous != (mgl64.Vec3{1, 64, 1}) {
		t.Fatalf("expected a move from the stored position, got %+v", rec.moves)
	}
}

func TestFactsSurviveEngineRestart(t *testing.T) {
	h := newTestHost()
	ent := newTestEntity("minecraft:cow", mgl64.Vec3{5, 64, 5})
	h.entities = append(h.entities, ent)
	store := NewMemoryFactStore()

	newTestEngine(t, h, store).Tick(context.Background())

	e := newTestEngine(t, h, store)
	rec := &recorder{}
	e.Handle(rec)
	ent.pos = mgl64.Vec3{5, 64, 6}
	e.Tick(context.Background())
	if len(rec.moves) != 1 || rec.moves[0].Previous != (mgl64.Vec3{5, 64, 5}) {
		t.Fatalf("expected move from the persisted position, got %+v", rec.moves)
	}
}
