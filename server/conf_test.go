package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/world"
	"github.com/dm-vev/synth/server/world/factdb"
	"github.com/dm-vev/synth/server/world/memworld"
	"github.com/go-gl/mathgl/mgl64"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestUserConfig(t *testing.T) {
	dir := t.TempDir()
	uc := DefaultConfig()
	uc.Engine.TicksPerSecond = 40
	uc.Facts.Folder = filepath.Join(dir, "facts")
	uc.Watchlist.File = filepath.Join(dir, "watchlist.toml")

	conf, err := uc.Config(discardLogger())
	if err != nil {
		t.Fatalf("convert config: %v", err)
	}
	if conf.TickInterval != 25*time.Millisecond || conf.ChunkRadius != 4 {
		t.Fatalf("unexpected config %+v", conf)
	}
	if conf.Watchlist == nil || conf.QueryAddress != "" || conf.Plugins.Directory != "plugins" {
		t.Fatalf("unexpected watchlist, query or plugin config %+v", conf)
	}
	db, ok := conf.Facts.(*factdb.DB)
	if !ok {
		t.Fatalf("expected a fact database, got %T", conf.Facts)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fact database: %v", err)
	}

	uc.Engine.TicksPerSecond = -1
	if _, err := uc.Config(discardLogger()); err == nil {
		t.Fatalf("expected error for negative ticks per second")
	}
}

func TestUserConfigWithoutSaving(t *testing.T) {
	uc := DefaultConfig()
	uc.Facts.SaveData = false
	uc.Watchlist.File = filepath.Join(t.TempDir(), "watchlist.toml")
	conf, err := uc.Config(discardLogger())
	if err != nil {
		t.Fatalf("convert config: %v", err)
	}
	if conf.Facts != nil {
		t.Fatalf("expected facts to be kept in memory, got %T", conf.Facts)
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, " error ": slog.LevelError} {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v (%v)", name, want, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for an unknown level")
	}
}

func TestConfigNewWithoutHost(t *testing.T) {
	if _, err := (Config{Log: discardLogger()}).New(); !errors.Is(err, world.ErrNoHost) {
		t.Fatalf("expected world.ErrNoHost, got %v", err)
	}
}

func TestServerRunAndClose(t *testing.T) {
	w := memworld.New(memworld.Config{})
	w.Fill(world.Overworld, cube.Pos{-4, 63, -4}, cube.Pos{4, 63, 4}, memworld.Block{Name: "minecraft:stone"})
	w.AddEntity(memworld.NewEntity("minecraft:pig", memworld.EntityOpts{Position: mgl64.Vec3{0.5, 64, 0.5}, Wander: true}))
	w.AddObserver(memworld.NewObserver(world.Overworld, mgl64.Vec3{}, 1))

	db, err := factdb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open fact database: %v", err)
	}
	srv, err := Config{Log: discardLogger(), Host: w, Facts: db, TickInterval: time.Millisecond, LogEvents: true}.New()
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := srv.Run(ctx); err != nil {
		t.Fatalf("expected Run to stop without error, got %v", err)
	}
	if srv.Engine().Metrics().Ticks == 0 {
		t.Fatalf("expected the engine to tick")
	}
	if srv.Engine().Events().Move.Len() != 2 {
		t.Fatalf("expected registry and event logger to be attached")
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("expected second close to do nothing, got %v", err)
	}
	if srv.Engine().Events().Move.Len() != 0 {
		t.Fatalf("expected handlers to be detached")
	}
	if err := db.Close(); !errors.Is(err, factdb.ErrClosed) {
		t.Fatalf("expected fact database to be closed, got %v", err)
	}
}

type consoleSource struct{ messages []string }

func (consoleSource) Name() string { return "Console" }

func (s *consoleSource) SendCommandOutput(o *cmd.Output) {
	s.messages = append(s.messages, o.Messages()...)
}

func TestServerStopCommandAndQuery(t *testing.T) {
	w := memworld.New(memworld.Config{})
	w.AddObserver(memworld.NewObserver(world.Overworld, mgl64.Vec3{}, 0))
	srv, err := Config{Log: discardLogger(), Host: w, TickInterval: time.Millisecond, QueryAddress: "127.0.0.1:0", Name: "Test", Plugins: plugin.Config{Directory: t.TempDir()}}.New()
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	defer srv.Close()
	err = srv.Commands().Register(cmd.New("halt", "", "", nil, cmd.RunnableFunc(func(_ cmd.Source, _ []string, o *cmd.Output, _ *world.Engine) {
		o.Print("halting")
		srv.Stop()
	})))
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	if _, err := srv.Plugins().EnableFactory("test", func(*plugin.API) (plugin.Plugin, error) { return testPlugin{}, nil }); err != nil {
		t.Fatalf("enable plugin: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	src := &consoleSource{}
	executed, err := srv.ExecuteCommand(src, "/halt")
	if err != nil {
		t.Fatalf("execute command: %v", err)
	}
	select {
	case <-executed:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected command to run")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to return nil after Stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Run to return after Stop")
	}
	if len(src.messages) != 1 || src.messages[0] != "halting" {
		t.Fatalf("unexpected output %v", src.messages)
	}
	if srv.StartTime().IsZero() {
		t.Fatalf("expected start time to be set")
	}
	// Nothing drains the queue anymore: commands must not block once it is
	// full.
	for range 100 {
		if _, err := srv.ExecuteCommand(src, "/halt"); !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped after Run returned, got %v", err)
		}
	}

	d := srv.queryData("127.0.0.1", 19132)
	if d.HostName != "Test" || d.HostPort != 19132 || len(d.Plugins) != 1 || d.Plugins[0] != "Test Plugin" {
		t.Fatalf("unexpected query data %+v", d)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(srv.Plugins().Infos()) != 0 {
		t.Fatalf("expected plugins to be disabled on close")
	}
}

func TestServerQueryAddressInUse(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	srv, err := Config{Log: discardLogger(), Host: memworld.New(memworld.Config{}), QueryAddress: conn.LocalAddr().String()}.New()
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	defer srv.Close()
	if err := srv.Run(context.Background()); err == nil {
		t.Fatalf("expected an error for a query address in use")
	}
}

type testPlugin struct{}

func (testPlugin) Name() string { return "Test Plugin" }
func (testPlugin) Close() error { return nil }
