package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/query"
	"github.com/dm-vev/synth/server/world"
)

// Server drives a world.Engine over a Host and routes its events to the block
// behaviours of a Registry. It also holds the commands operators may run and
// answers status queries if configured to.
type Server struct {
	conf     Config
	log      *slog.Logger
	engine   *world.Engine
	registry *block.Registry
	commands *cmd.Set
	plugins  *plugin.Manager

	mu     sync.Mutex
	start  time.Time
	cancel context.CancelFunc

	// stopped is cancelled once Run returned.
	stopped     context.Context
	markStopped context.CancelFunc

	detach []func()
	once   sync.Once
}

// Engine returns the engine of the Server.
func (srv *Server) Engine() *world.Engine {
	return srv.engine
}

// Registry returns the block behaviour Registry of the Server.
func (srv *Server) Registry() *block.Registry {
	return srv.registry
}

// Commands returns the command Set of the Server. It is empty until commands
// are registered on it.
func (srv *Server) Commands() *cmd.Set {
	return srv.commands
}

// Plugins returns the plugin Manager of the Server.
func (srv *Server) Plugins() *plugin.Manager {
	return srv.plugins
}

// LoadPlugins enables the plugins selected by Config.Plugins. It only has an
// effect the first time it is called.
func (srv *Server) LoadPlugins() {
	srv.plugins.LoadConfigured()
}

// Watchlist returns the Watchlist selecting the entities whose events are
// logged. It may be nil.
func (srv *Server) Watchlist() *Watchlist {
	return srv.conf.Watchlist
}

// StartTime returns the time Run was last called, or the zero time if it was
// never called.
func (srv *Server) StartTime() time.Time {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.start
}

// ErrStopped is returned by Server.ExecuteCommand once Server.Run returned.
var ErrStopped = errors.New("server: stopped")

// ExecuteCommand executes a command line on behalf of src on the goroutine
// driving the engine. The channel returned is closed once the command ran.
// Commands may be queued before Run is called. Once Run returned, ExecuteCommand
// returns ErrStopped instead of waiting for an engine that no longer ticks.
func (srv *Server) ExecuteCommand(src cmd.Source, commandLine string) (<-chan struct{}, error) {
	c, err := srv.engine.ExecContext(srv.stopped, func(e *world.Engine) {
		cmd.ExecuteLine(srv.commands, src, commandLine, e)
	})
	if err != nil {
		return nil, ErrStopped
	}
	return c, nil
}

// Run ticks the engine until ctx is cancelled or Stop is called. If a query
// address is configured, a query responder answers status requests while the
// engine runs. Run returns nil if it stopped because ctx was cancelled or Stop
// was called.
func (srv *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv.mu.Lock()
	srv.start, srv.cancel = time.Now(), cancel
	srv.mu.Unlock()

	if srv.conf.QueryAddress != "" {
		l, err := query.Listen(srv.conf.QueryAddress, srv.queryData, srv.log)
		if err != nil {
			return fmt.Errorf("start query responder: %w", err)
		}
		defer l.Close()
		go func() {
			if err := l.Serve(); err != nil {
				srv.log.Error("Query responder stopped.", "error", err)
			}
		}()
		srv.log.Info("Query responder listening.", "addr", l.Addr().String())
	}

	srv.log.Info("Engine running.")
	err := srv.engine.Run(ctx)
	if errors.Is(err, world.ErrRunning) {
		return err
	}
	srv.markStopped()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	m := srv.engine.Metrics()
	srv.log.Info("Engine stopped.", "ticks", m.Ticks, "chunks", m.TrackedChunks, "entities", m.TrackedEntities)
	return err
}

// Stop makes a running Run return. It does nothing if Run is not running.
func (srv *Server) Stop() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.cancel != nil {
		srv.cancel()
	}
}

// Close disables all plugins, detaches all handlers from the engine and closes
// the FactStore if it implements io.Closer.
func (srv *Server) Close() error {
	var err error
	srv.once.Do(func() {
		srv.plugins.Shutdown()
		for i := len(srv.detach) - 1; i >= 0; i-- {
			srv.detach[i]()
		}
		srv.detach = nil
		if c, ok := srv.conf.Facts.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// eventLogger logs the events of entities selected by a Watchlist at debug
// level.
type eventLogger struct {
	world.NopHandler
	log   *slog.Logger
	watch *Watchlist
}

// logs checks if events of the entity passed are logged.
func (l eventLogger) logs(e world.Entity) bool {
	return l.log.Enabled(context.Background(), slog.LevelDebug) && l.watch.Query().Matches(e)
}

func (l eventLogger) HandleMove(ev world.MoveEvent) {
	if ev.MovedBlock && l.logs(ev.E) {
		l.log.Debug("Entity moved.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "from", ev.Previous, "to", ev.Position, "chunk", ev.MovedChunk)
	}
}

func (l eventLogger) HandleStepOn(ev world.BlockEvent) {
	if l.logs(ev.E) {
		l.log.Debug("Entity stepped on block.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "block", world.BlockName(ev.Block), "pos", ev.Pos)
	}
}

func (l eventLogger) HandleMount(ev world.MountEvent) {
	if l.logs(ev.E) {
		l.log.Debug("Entity mounted.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "target", ev.Target)
	}
}

func (l eventLogger) HandleDismount(ev world.MountEvent) {
	if l.logs(ev.E) {
		l.log.Debug("Entity dismounted.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "target", ev.Target)
	}
}

func (l eventLogger) HandleFallOn(ev world.FallEvent) {
	if l.logs(ev.E) {
		l.log.Debug("Entity landed.", "type", ev.E.Type(), "uuid", ev.E.UUID(), "block", world.BlockName(ev.Block), "distance", ev.Distance)
	}
}

func (l eventLogger) HandleChunkLoad(ev world.ChunkEvent) {
	l.log.Debug("Chunk loaded.", "chunk", ev.Key, "initial", ev.Initial)
}

func (l eventLogger) HandleChunkUnload(ev world.ChunkEvent) {
	l.log.Debug("Chunk unloaded.", "chunk", ev.Key)
}
