package builtin

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dm-vev/synth/server"
	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/world"
	"github.com/dm-vev/synth/server/world/memworld"
	"github.com/go-gl/mathgl/mgl64"
)

type fakeServer struct {
	engine    *world.Engine
	commands  *cmd.Set
	plugins   *plugin.Manager
	registry  *block.Registry
	watchlist *server.Watchlist
	stopped   bool
}

func (s *fakeServer) Registry() *block.Registry    { return s.registry }
func (s *fakeServer) Plugins() *plugin.Manager     { return s.plugins }
func (s *fakeServer) Engine() *world.Engine        { return s.engine }
func (s *fakeServer) Commands() *cmd.Set           { return s.commands }
func (s *fakeServer) Watchlist() *server.Watchlist { return s.watchlist }
func (s *fakeServer) StartTime() time.Time         { return time.Now().Add(-time.Minute) }
func (s *fakeServer) Stop()                        { s.stopped = true }

type source struct {
	name     string
	messages []string
	errors   []string
}

func (s *source) Name() string { return s.name }

func (s *source) SendCommandOutput(o *cmd.Output) {
	s.messages = append(s.messages, o.Messages()...)
	for _, err := range o.Errors() {
		s.errors = append(s.errors, err.Error())
	}
}

type noopStep struct{}

func (noopStep) EntityStepOn(*world.Engine, world.BlockEvent)  {}
func (noopStep) EntityStepOff(*world.Engine, world.BlockEvent) {}

func setup(t *testing.T) (*cmd.Set, *fakeServer, *world.Engine, *memworld.Entity) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	wl, err := server.LoadWatchlist(filepath.Join(t.TempDir(), "watchlist.toml"))
	if err != nil {
		t.Fatalf("load watchlist: %v", err)
	}
	w := memworld.New(memworld.Config{})
	w.Fill(world.Overworld, cube.Pos{-2, 63, -2}, cube.Pos{2, 63, 2}, memworld.Block{Name: "minecraft:stone"})
	ent := memworld.NewEntity("minecraft:pig", memworld.EntityOpts{Position: mgl64.Vec3{0.5, 64, 0.5}})
	w.AddEntity(ent)
	w.AddObserver(memworld.NewObserver(world.Overworld, mgl64.Vec3{}, 1))
	e, err := world.Config{Log: log, Host: w, NeighbourCacheSize: 8}.New()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	e.Tick(context.Background())

	set := cmd.NewSet()
	srv := &fakeServer{engine: e, commands: set, registry: block.NewRegistry(log), watchlist: wl}
	srv.plugins = plugin.NewManager(srv, plugin.Config{Directory: t.TempDir()}, log)
	if err := Register(set, srv); err != nil {
		t.Fatalf("register: %v", err)
	}
	return set, srv, e, ent
}

func contains(lines []string, sub string) bool {
	return slices.ContainsFunc(lines, func(l string) bool { return strings.Contains(l, sub) })
}

func TestHelp(t *testing.T) {
	set, _, e, _ := setup(t)
	console := &source{name: consoleName}
	cmd.ExecuteLine(set, console, "/help", e)
	if !contains(console.messages, "/stop - Stops the server.") || !contains(console.messages, "/status") {
		t.Fatalf("expected all commands to be listed, got %v", console.messages)
	}

	other := &source{name: "Remote"}
	cmd.ExecuteLine(set, other, "/?", e)
	if contains(other.messages, "/stop") {
		t.Fatalf("expected console only commands to be hidden, got %v", other.messages)
	}
	cmd.ExecuteLine(set, other, "/help /facts", e)
	if !contains(other.messages, "Usage: /facts <uuid>") {
		t.Fatalf("expected usage of facts, got %v", other.messages)
	}
	cmd.ExecuteLine(set, other, "/help stop", e)
	if len(other.errors) != 1 {
		t.Fatalf("expected stop to be unknown to a remote source, got %v", other.errors)
	}
}

func TestStatusAndChunks(t *testing.T) {
	set, _, e, _ := setup(t)
	src := &source{name: consoleName}
	cmd.ExecuteLine(set, src, "/status", e)
	if !contains(src.messages, "Tick: 1 | Chunks: 9 | Entities: 1 | Callbacks: 0") {
		t.Fatalf("unexpected status %v", src.messages)
	}

	src.messages = nil
	cmd.ExecuteLine(set, src, "/chunks overworld", e)
	if !contains(src.messages, "Tracked columns: 9") || !contains(src.messages, "- overworld: 9") {
		t.Fatalf("unexpected chunks output %v", src.messages)
	}
	src.messages = nil
	cmd.ExecuteLine(set, src, "/chunks nether", e)
	if !contains(src.messages, "Tracked columns: 0") {
		t.Fatalf("expected no nether columns, got %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/chunks moon", e)
	if len(src.errors) != 1 {
		t.Fatalf("expected an invalid dimension error")
	}
}

func TestFacts(t *testing.T) {
	set, _, e, ent := setup(t)
	src := &source{name: consoleName}
	cmd.ExecuteLine(set, src, "/facts "+ent.UUID().String(), e)
	if !contains(src.messages, "minecraft:pig") || !contains(src.messages, "Position: overworld") {
		t.Fatalf("unexpected facts output %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/facts nope", e)
	if len(src.errors) != 1 || !strings.Contains(src.errors[0], "Invalid parameter") {
		t.Fatalf("expected an invalid parameter error, got %v", src.errors)
	}
}

func TestWatchlistCommand(t *testing.T) {
	set, srv, e, _ := setup(t)
	src := &source{name: consoleName}
	cmd.ExecuteLine(set, src, "/watchlist watch minecraft:pig", e)
	cmd.ExecuteLine(set, src, "/watchlist watch minecraft:pig", e)
	cmd.ExecuteLine(set, src, "/watchlist ignore minecraft:cow", e)
	want := []string{"Now watching minecraft:pig.", "minecraft:pig is already watched.", "Now ignoring minecraft:cow."}
	if !slices.Equal(src.messages, want) {
		t.Fatalf("expected %v, got %v", want, src.messages)
	}
	if q := srv.watchlist.Query(); !slices.Equal(q.Types, []string{"minecraft:pig"}) {
		t.Fatalf("unexpected query %+v", q)
	}

	src.messages = nil
	cmd.ExecuteLine(set, src, "/watch list", e)
	if !contains(src.messages, "Watching 1 type(s): minecraft:pig") || !contains(src.messages, "Ignoring 1 type(s): minecraft:cow") {
		t.Fatalf("unexpected list %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/watchlist frobnicate x", e)
	if len(src.errors) != 1 {
		t.Fatalf("expected a usage error, got %v", src.errors)
	}
}

func TestBehavioursAndStop(t *testing.T) {
	set, srv, e, _ := setup(t)
	if err := srv.registry.Register("minecraft:magma", noopStep{}); err != nil {
		t.Fatalf("register behaviour: %v", err)
	}
	src := &source{name: consoleName}
	cmd.ExecuteLine(set, src, "/behaviours", e)
	if !contains(src.messages, "- minecraft:magma") {
		t.Fatalf("expected magma to be listed, got %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/behaviours remove minecraft:magma", e)
	if len(srv.registry.Names()) != 0 {
		t.Fatalf("expected behaviour to be removed")
	}

	cmd.ExecuteLine(set, src, "/stop", e)
	if !srv.stopped {
		t.Fatalf("expected stop to stop the server")
	}
}

type namedPlugin string

func (p namedPlugin) Name() string { return string(p) }
func (namedPlugin) Close() error   { return nil }

func TestPluginCommand(t *testing.T) {
	set, srv, e, _ := setup(t)
	src := &source{name: consoleName}
	cmd.ExecuteLine(set, src, "/plugin", e)
	if !contains(src.messages, "No plugins enabled.") {
		t.Fatalf("unexpected output %v", src.messages)
	}

	_, err := srv.plugins.EnableFactory("demo", func(api *plugin.API) (plugin.Plugin, error) {
		return namedPlugin("Demo"), api.RegisterBehaviour("minecraft:magma", noopStep{})
	})
	if err != nil {
		t.Fatalf("enable plugin: %v", err)
	}
	src.messages = nil
	cmd.ExecuteLine(set, src, "/pl list", e)
	if !contains(src.messages, "- Demo") {
		t.Fatalf("expected demo plugin to be listed, got %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/plugin disable demo", e)
	if !contains(src.messages, "Disabled plugin Demo.") || len(srv.registry.Names()) != 0 {
		t.Fatalf("expected plugin and its behaviour to be removed, got %v", src.messages)
	}
	cmd.ExecuteLine(set, src, "/plugin disable demo", e)
	cmd.ExecuteLine(set, src, "/plugin enable demo.so", e)
	if len(src.errors) != 2 || !strings.Contains(src.errors[0], "not enabled") {
		t.Fatalf("unexpected errors %v", src.errors)
	}
}
