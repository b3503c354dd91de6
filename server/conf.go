package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/world"
	"github.com/dm-vev/synth/server/world/factdb"
)

// Config contains options for starting a Server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Host is the environment the engine of the Server samples every tick. It
	// must be set.
	Host world.Host
	// Facts stores entity facts and column flags. If nil, facts are kept in
	// memory and lost when the Server is closed.
	Facts world.FactStore
	// Registry holds the block behaviours that receive the events of the
	// engine. If nil, an empty Registry is created.
	Registry *block.Registry
	// ChunkRadius is the default radius in columns kept active around
	// observers. If 0, the engine default of 4 is used.
	ChunkRadius int
	// NeighbourCacheSize is the amount of neighbour fingerprints remembered.
	// If 0, a size is derived from the memory of the machine.
	NeighbourCacheSize int
	// TickInterval is the time between two ticks. If 0, the engine ticks 20
	// times per second.
	TickInterval time.Duration
	// LogEvents makes the Server log every event dispatched for entities
	// selected by Watchlist at debug level.
	LogEvents bool
	// Watchlist selects the entities whose events are logged if LogEvents is
	// set. Changes to it apply immediately. If nil, all entities are selected.
	Watchlist *Watchlist
	// QueryAddress is the UDP address the query responder listens on. If
	// empty, no query responder is started.
	QueryAddress string
	// Name is the name of the Server reported to query clients.
	Name string
	// Plugins configures the loading of plugins from shared objects.
	Plugins plugin.Config
	// HandlerWrap, if set, wraps every world.Handler attached to the engine.
	HandlerWrap func(world.Handler) world.Handler
}

// New creates a Server using fields of conf. The engine starts ticking once
// Server.Run is called.
func (conf Config) New() (*Server, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Registry == nil {
		conf.Registry = block.NewRegistry(conf.Log)
	}
	e, err := world.Config{
		Log:                conf.Log,
		Host:               conf.Host,
		Facts:              conf.Facts,
		ChunkRadius:        conf.ChunkRadius,
		NeighbourCacheSize: conf.NeighbourCacheSize,
		TickInterval:       conf.TickInterval,
		HandlerWrap:        conf.HandlerWrap,
	}.New()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	srv := &Server{conf: conf, log: conf.Log, engine: e, registry: conf.Registry, commands: cmd.NewSet()}
	srv.stopped, srv.markStopped = context.WithCancel(context.Background())
	srv.plugins = plugin.NewManager(srv, conf.Plugins, conf.Log)
	srv.detach = append(srv.detach, conf.Registry.Attach(e))
	if conf.LogEvents {
		srv.detach = append(srv.detach, e.Handle(eventLogger{log: conf.Log.With("subsystem", "events"), watch: conf.Watchlist}))
	}
	return srv, nil
}

// UserConfig is the user configuration of a Server. It may be serialised and
// can be converted to a Config by calling UserConfig.Config().
type UserConfig struct {
	Engine struct {
		// TicksPerSecond is the amount of ticks the engine aims to run every
		// second.
		TicksPerSecond int
		// ChunkRadius is the default radius in columns kept active around
		// observers.
		ChunkRadius int
		// NeighbourCacheSize is the amount of neighbour fingerprints
		// remembered. Set to 0 to derive it from the memory of the machine.
		NeighbourCacheSize int
	}
	Facts struct {
		// SaveData controls whether entity facts are saved to disk. If true,
		// facts are stored in a LevelDB database in Folder and survive
		// restarts. If false, they are kept in memory.
		SaveData bool
		// Folder is the folder the fact database resides in.
		Folder string
	}
	Log struct {
		// Level is the minimum level logged: "debug", "info", "warn" or
		// "error".
		Level string
		// Events controls whether dispatched events are logged at debug
		// level.
		Events bool
	}
	Watchlist struct {
		// File is the path to the watchlist TOML file that selects the entity
		// types whose events are logged.
		File string
	}
	Query struct {
		// Enabled controls whether the UDP query responder is started.
		Enabled bool
		// Address is the UDP address the query responder listens on.
		Address string
		// Name is the name reported to query clients.
		Name string
	}
	Plugins struct {
		// Enabled controls whether plugins are loaded from shared objects.
		Enabled bool
		// Directory is the directory plugins and their data are stored in.
		Directory string
		// Autoload enables every .so file found in Directory on start.
		Autoload bool
		// Files lists additional plugin files to enable on start.
		Files []string
	}
	Console struct {
		// Enabled controls whether commands are read from standard input.
		Enabled bool
	}
	Demo struct {
		// Seed seeds the wandering of the demo entities.
		Seed uint64
		// Entities is the amount of wandering entities spawned in the demo
		// world.
		Entities int
		// ObserverRadius is the radius in columns of the demo observer. Set to
		// 0 to use the engine default.
		ObserverRadius int
	}
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// a Server. The Host of the Config returned is not set. An error is returned
// if opening the fact database or loading the watchlist failed.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	if uc.Engine.TicksPerSecond < 0 {
		return Config{}, fmt.Errorf("ticks per second must not be negative (got %d)", uc.Engine.TicksPerSecond)
	}
	conf := Config{
		Log:                log,
		ChunkRadius:        uc.Engine.ChunkRadius,
		NeighbourCacheSize: uc.Engine.NeighbourCacheSize,
		LogEvents:          uc.Log.Events,
	}
	if uc.Engine.TicksPerSecond > 0 {
		conf.TickInterval = time.Second / time.Duration(uc.Engine.TicksPerSecond)
	}
	watchFile := strings.TrimSpace(uc.Watchlist.File)
	if watchFile == "" {
		watchFile = "watchlist.toml"
	}
	wl, err := LoadWatchlist(watchFile)
	if err != nil {
		return conf, fmt.Errorf("load watchlist: %w", err)
	}
	conf.Watchlist = wl
	conf.Plugins = plugin.Config{
		Enabled:   uc.Plugins.Enabled,
		Directory: uc.Plugins.Directory,
		Autoload:  uc.Plugins.Autoload,
		Files:     uc.Plugins.Files,
	}
	if uc.Query.Enabled {
		conf.QueryAddress = uc.Query.Address
		conf.Name = uc.Query.Name
	}
	if uc.Facts.SaveData {
		conf.Facts, err = factdb.Config{Log: log}.Open(uc.Facts.Folder)
		if err != nil {
			return conf, fmt.Errorf("create fact store: %w", err)
		}
	}
	return conf, nil
}

// ParseLevel parses the name of a log level as used in UserConfig.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, errors.Join(fmt.Errorf("unknown log level %q", name), err)
	}
	return l, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Engine.TicksPerSecond = 20
	c.Engine.ChunkRadius = 4
	c.Engine.NeighbourCacheSize = 0
	c.Facts.SaveData = true
	c.Facts.Folder = "facts"
	c.Log.Level = "info"
	c.Log.Events = false
	c.Watchlist.File = "watchlist.toml"
	c.Query.Enabled = false
	c.Query.Address = ":19132"
	c.Query.Name = "Synth"
	c.Plugins.Enabled = false
	c.Plugins.Directory = "plugins"
	c.Plugins.Autoload = true
	c.Console.Enabled = true
	c.Demo.Seed = 0
	c.Demo.Entities = 8
	c.Demo.ObserverRadius = 0
	return c
}
