package world

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dm-vev/synth/server/internal/lru"
	"github.com/google/uuid"
)

// ErrNoHost is returned by Config.New if no Host was set.
var ErrNoHost = errors.New("world: config has no host")

// Config may be used to create a new Engine. The zero value is usable apart
// from Host, which must be set.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Host is the environment sampled every tick.
	Host Host
	// Facts stores the facts of entities and columns. If nil, a
	// MemoryFactStore is used, meaning nothing survives a restart.
	Facts FactStore
	// ChunkRadius is the radius in columns kept active around observers that
	// do not specify their own. If 0, 4 is used. Negative values are invalid.
	ChunkRadius int
	// NeighbourCacheSize is the amount of cell fingerprints remembered by the
	// neighbour change detector. If 0, a size is derived from the memory of
	// the host (512 on a machine with 4 to 8 GiB). Negative values are
	// invalid.
	NeighbourCacheSize int
	// TickInterval is the duration between two ticks when the Engine is driven
	// by Engine.Run. If 0, 50ms (20 ticks per second) is used.
	TickInterval time.Duration
	// HandlerWrap, if set, is applied to every Handler passed to
	// Engine.Handle before it is attached.
	HandlerWrap func(Handler) Handler
}

func (conf Config) withDefaults() Config {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Facts == nil {
		conf.Facts = NewMemoryFactStore()
	}
	if conf.ChunkRadius == 0 {
		conf.ChunkRadius = 4
	}
	if conf.NeighbourCacheSize == 0 {
		conf.NeighbourCacheSize = lru.DefaultCapacity()
	}
	if conf.TickInterval == 0 {
		conf.TickInterval = time.Second / 20
	}
	return conf
}

// New creates an Engine using the fields of conf. An error is returned if the
// configuration is invalid; no other operation of the Engine returns errors
// caused by configuration.
func (conf Config) New() (*Engine, error) {
	if conf.Host == nil {
		return nil, ErrNoHost
	}
	conf = conf.withDefaults()
	if conf.ChunkRadius < 0 {
		return nil, fmt.Errorf("world: chunk radius must not be negative (got %d)", conf.ChunkRadius)
	}
	if conf.TickInterval < 0 {
		return nil, fmt.Errorf("world: tick interval must not be negative (got %v)", conf.TickInterval)
	}
	cache, err := lru.New[BlockKey, Fingerprint](conf.NeighbourCacheSize)
	if err != nil {
		return nil, fmt.Errorf("world: neighbour cache: %w", err)
	}

	m := NewMetrics()
	e := &Engine{
		conf:      conf,
		log:       conf.Log.With("subsystem", "world.engine"),
		host:      conf.Host,
		facts:     conf.Facts,
		metrics:   m,
		entities:  make(map[uuid.UUID]*entityState),
		chunks:    newChunkTracker(),
		scheduled: newScheduledCallbacks(),
		queue:     make(chan transaction, execQueueSize),
	}
	e.events = newEvents(conf.Log.With("subsystem", "world.events"), m)
	e.neighbours = NewNeighbourDetector(conf.Host, cache)
	return e, nil
}
