package world

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestEntityQueryMatches(t *testing.T) {
	pig := newTestEntity("minecraft:pig", mgl64.Vec3{})
	cow := newTestEntity("minecraft:cow", mgl64.Vec3{})
	netherPig := newTestEntity("minecraft:pig", mgl64.Vec3{})
	netherPig.dim = Nether

	tests := []struct {
		name string
		q    EntityQuery
		want [3]bool
	}{
		{name: "empty", q: EntityQuery{}, want: [3]bool{true, true, true}},
		{name: "types", q: EntityQuery{Types: []string{"MINECRAFT:PIG"}}, want: [3]bool{true, false, true}},
		{name: "exclude", q: EntityQuery{ExcludeTypes: []string{"minecraft:pig"}}, want: [3]bool{false, true, false}},
		{name: "exclude wins", q: EntityQuery{Types: []string{"minecraft:pig", "minecraft:cow"}, ExcludeTypes: []string{"minecraft:cow"}}, want: [3]bool{true, false, true}},
		{name: "dimensions", q: EntityQuery{Dimensions: []Dimension{Nether}}, want: [3]bool{false, false, true}},
	}
	for _, tt := range tests {
		for i, ent := range []Entity{pig, cow, netherPig} {
			if got := tt.q.Matches(ent); got != tt.want[i] {
				t.Errorf("%v: entity %v: expected %v, got %v", tt.name, i, tt.want[i], got)
			}
		}
	}
	if (EntityQuery{}).Matches(nil) {
		t.Fatalf("expected nil entity never to match")
	}
}

func TestMatchEntityFilter(t *testing.T) {
	h := newTestHost()
	pig := newTestEntity("minecraft:pig", mgl64.Vec3{0, 64, 0})
	cow := newTestEntity("minecraft:cow", mgl64.Vec3{4, 64, 0})
	h.entities = append(h.entities, pig, cow)
	e := newTestEngine(t, h, nil)

	q := EntityQuery{Types: []string{"minecraft:cow"}}
	var moved []Entity
	e.Events().Move.Subscribe(func(ev MoveEvent) { moved = append(moved, ev.E) }, MatchEntity[MoveEvent](q))
	q.Types[0] = "minecraft:pig"

	e.Tick(context.Background())
	pig.pos, cow.pos = mgl64.Vec3{0, 64, 1}, mgl64.Vec3{4, 64, 1}
	e.Tick(context.Background())
	if len(moved) != 1 || moved[0] != Entity(cow) {
		t.Fatalf("expected only the cow to be delivered, got %v", moved)
	}
}
