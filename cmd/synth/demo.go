package main

import (
	"fmt"
	"log/slog"

	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/world"
	"github.com/dm-vev/synth/server/world/memworld"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	stone   = memworld.Block{Name: "minecraft:stone"}
	magma   = memworld.Block{Name: "minecraft:magma"}
	slime   = memworld.Block{Name: "minecraft:slime"}
	water   = memworld.Block{Name: "minecraft:water", Properties: map[string]any{"liquid_depth": int32(0)}}
	lamp    = memworld.Block{Name: "minecraft:redstone_lamp"}
	lampLit = memworld.Block{Name: "minecraft:lit_redstone_lamp"}
)

// plate returns a pressure plate with the signal strength passed.
func plate(signal int32) memworld.Block {
	return memworld.Block{Name: "minecraft:stone_pressure_plate", Properties: map[string]any{"redstone_signal": signal}}
}

var (
	platePos = cube.Pos{4, 64, 4}
	lampPos  = cube.Pos{5, 64, 4}
)

// newDemoWorld creates a flat world with a few special blocks, wandering
// entities dropped from the sky and a single observer at the origin.
func newDemoWorld(seed uint64, entities, radius int) *memworld.World {
	w := memworld.New(memworld.Config{Seed: seed})
	dim := world.Overworld

	w.Fill(dim, cube.Pos{-32, 63, -32}, cube.Pos{31, 63, 31}, stone)
	w.Fill(dim, cube.Pos{-6, 63, -6}, cube.Pos{-3, 63, -3}, magma)
	w.Fill(dim, cube.Pos{3, 63, -6}, cube.Pos{6, 63, -3}, slime)
	w.Fill(dim, cube.Pos{-6, 62, 3}, cube.Pos{-3, 62, 6}, stone)
	w.Fill(dim, cube.Pos{-6, 63, 3}, cube.Pos{-3, 63, 6}, water)
	w.SetBlock(dim, platePos, plate(0))
	w.SetBlock(dim, lampPos, lamp)

	for i := range entities {
		typ := "minecraft:pig"
		if i%3 == 0 {
			typ = "minecraft:cow"
		}
		x, z := float64(i%4*4-6)+0.5, float64(i/4*4-6)+0.5
		w.AddEntity(memworld.NewEntity(typ, memworld.EntityOpts{
			Dimension: dim,
			Position:  mgl64.Vec3{x, 64 + float64(i%5)*3, z},
			Wander:    true,
		}))
	}
	w.AddObserver(memworld.NewObserver(dim, mgl64.Vec3{}, radius))
	return w
}

// demoPlugin registers the behaviours of the special blocks of the demo world.
type demoPlugin struct{}

func (demoPlugin) Name() string    { return "Demo" }
func (demoPlugin) Version() string { return "1.0.0" }
func (demoPlugin) Close() error    { return nil }

// demoFactory returns the Factory of the demo plugin. The plugin records the
// neighbours of the lamp when enabled, so that the first change next to it is
// noticed.
func demoFactory(w *memworld.World) plugin.Factory {
	return func(api *plugin.API) (plugin.Plugin, error) {
		log, r := api.Logger(), api.Registry()
		behaviours := []struct {
			name string
			b    any
		}{
			{name: magma.Name, b: magmaBehaviour{log: log}},
			{name: slime.Name, b: slimeBehaviour{log: log}},
			{name: water.Name, b: waterBehaviour{log: log}},
			{name: plate(0).Name, b: plateBehaviour{w: w, r: r, log: log}},
			{name: lamp.Name, b: lampBehaviour{w: w, log: log}},
			{name: lampLit.Name, b: lampBehaviour{w: w, log: log}},
		}
		for _, entry := range behaviours {
			if err := api.RegisterBehaviour(entry.name, entry.b); err != nil {
				return nil, fmt.Errorf("register %v: %w", entry.name, err)
			}
		}
		api.Engine().NeighbourChanged(world.Overworld, lampPos)
		return demoPlugin{}, nil
	}
}

type magmaBehaviour struct{ log *slog.Logger }

func (m magmaBehaviour) EntityStepOn(_ *world.Engine, ev world.BlockEvent) {
	m.log.Info("Entity is burning on magma.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "pos", ev.Pos)
}

func (m magmaBehaviour) EntityStepOff(_ *world.Engine, ev world.BlockEvent) {
	if !ev.SameType {
		m.log.Info("Entity left the magma.", "type", ev.E.Type(), "uuid", ev.E.UUID())
	}
}

type slimeBehaviour struct{ log *slog.Logger }

func (s slimeBehaviour) EntityLand(_ *world.Engine, ev world.FallEvent) {
	s.log.Info("Entity bounced on slime.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "distance", ev.Distance)
}

type waterBehaviour struct{ log *slog.Logger }

func (wb waterBehaviour) EntityInside(e *world.Engine, ev world.BlockEvent) {
	if e.CurrentTick()%20 == 0 {
		wb.log.Debug("Entity is swimming.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "pos", ev.Pos)
	}
}

// plateBehaviour powers a pressure plate while an entity is on it and turns it
// off again 20 ticks after it was last entered.
type plateBehaviour struct {
	w   *memworld.World
	r   *block.Registry
	log *slog.Logger
}

func (p plateBehaviour) EntityEnter(e *world.Engine, ev world.BlockEvent) {
	dim := ev.E.Dimension()
	if world.BlockHash(ev.Block) != world.BlockHash(plate(15)) {
		p.w.SetBlock(dim, ev.Pos, plate(15))
		p.log.Info("Pressure plate pressed.", "pos", ev.Pos, "by", ev.E.Type())
		p.updateNeighbours(e, dim, ev.Pos)
	}
	p.r.Schedule(e, dim, ev.Pos, 20)
}

func (p plateBehaviour) ScheduledTick(e *world.Engine, dim world.Dimension, pos cube.Pos) {
	if len(e.Scheduled(world.BlockOwner{Dim: dim, Pos: pos}.OwnerKey())) > 1 {
		// Pressed again since, a later release is pending.
		return
	}
	p.w.SetBlock(dim, pos, plate(0))
	p.log.Info("Pressure plate released.", "pos", pos)
	p.updateNeighbours(e, dim, pos)
}

func (p plateBehaviour) updateNeighbours(e *world.Engine, dim world.Dimension, pos cube.Pos) {
	for _, face := range cube.Faces() {
		p.r.PollNeighbours(e, dim, pos.Side(face))
	}
}

// lampBehaviour lights up while the pressure plate next to it is powered.
type lampBehaviour struct {
	w   *memworld.World
	log *slog.Logger
}

func (l lampBehaviour) NeighbourUpdate(e *world.Engine, dim world.Dimension, pos cube.Pos, face cube.Face) {
	b, err := e.Block(dim, platePos)
	if err != nil {
		return
	}
	_, props := b.EncodeBlock()
	lit := props["redstone_signal"] != int32(0)
	if lit {
		l.w.SetBlock(dim, pos, lampLit)
	} else {
		l.w.SetBlock(dim, pos, lamp)
	}
	l.log.Info("Lamp updated.", "pos", pos, "lit", lit, "face", face)
}
