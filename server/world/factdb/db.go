// Package factdb implements a world.FactStore persisted in a LevelDB
// database. Entity facts are encoded as little endian NBT.
package factdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/dm-vev/synth/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// ErrClosed is returned by operations on a DB that was closed.
var ErrClosed = errors.New("factdb: database closed")

const (
	keyFacts = 'f'
	keyChunk = 'c'
)

// DB is a world.FactStore backed by LevelDB. It is safe for concurrent use.
type DB struct {
	log *slog.Logger
	ldb *leveldb.DB

	mu     sync.RWMutex
	closed bool
}

// Compile time check to make sure DB implements world.FactStore.
var _ world.FactStore = (*DB)(nil)

// Config holds the options used to open a DB.
type Config struct {
	// Log is the Logger used by the DB. If nil, slog.Default() is used.
	Log *slog.Logger
	// ReadOnly opens the database without write access.
	ReadOnly bool
}

// Open opens the DB in the directory passed, creating it if it does not yet
// exist.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	ldb, err := leveldb.OpenFile(dir, &opt.Options{
		BlockSize: 16 * opt.KiB,
		ReadOnly:  conf.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("factdb: open %v: %w", dir, err)
	}
	db := New(ldb)
	db.log = conf.Log.With("subsystem", "factdb", "dir", dir)
	return db, nil
}

// Open opens a DB in the directory passed using the default Config.
func Open(dir string) (*DB, error) {
	return Config{}.Open(dir)
}

// New wraps an already opened LevelDB database. Closing the DB closes ldb.
func New(ldb *leveldb.DB) *DB {
	return &DB{ldb: ldb, log: slog.Default().With("subsystem", "factdb")}
}

// LoadFacts ...
func (db *DB) LoadFacts(id uuid.UUID) (world.Facts, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return world.Facts{}, false, ErrClosed
	}
	data, err := db.ldb.Get(factsKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return world.Facts{}, false, nil
	} else if err != nil {
		return world.Facts{}, false, fmt.Errorf("factdb: read facts of %v: %w", id, err)
	}
	f, err := decodeFacts(data)
	if err != nil {
		return world.Facts{}, false, fmt.Errorf("factdb: decode facts of %v: %w", id, err)
	}
	return f, true, nil
}

// SaveFacts ...
func (db *DB) SaveFacts(id uuid.UUID, f world.Facts) error {
	data, err := encodeFacts(f)
	if err != nil {
		return fmt.Errorf("factdb: encode facts of %v: %w", id, err)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.ldb.Put(factsKey(id), data, nil); err != nil {
		return fmt.Errorf("factdb: write facts of %v: %w", id, err)
	}
	return nil
}

// DeleteFacts ...
func (db *DB) DeleteFacts(id uuid.UUID) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.ldb.Delete(factsKey(id), nil); err != nil {
		return fmt.Errorf("factdb: delete facts of %v: %w", id, err)
	}
	return nil
}

// ChunkGenerated ...
func (db *DB) ChunkGenerated(key world.CellKey) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return false, ErrClosed
	}
	ok, err := db.ldb.Has(chunkKey(key), nil)
	if err != nil {
		return false, fmt.Errorf("factdb: read chunk %v: %w", key, err)
	}
	return ok, nil
}

// SetChunkGenerated ...
func (db *DB) SetChunkGenerated(key world.CellKey) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.ldb.Put(chunkKey(key), []byte{1}, nil); err != nil {
		return fmt.Errorf("factdb: write chunk %v: %w", key, err)
	}
	return nil
}

// Close closes the DB. Operations on a closed DB return ErrClosed. Closing a
// DB more than once returns ErrClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	db.log.Debug("Closing fact database.")
	if err := db.ldb.Close(); err != nil {
		return fmt.Errorf("factdb: close: %w", err)
	}
	return nil
}

// factsKey returns the key the facts of an entity are stored under.
func factsKey(id uuid.UUID) []byte {
	return append([]byte{keyFacts}, id[:]...)
}

// chunkKey returns the key the generated flag of a column is stored under.
func chunkKey(key world.CellKey) []byte {
	b := make([]byte, 13)
	b[0] = keyChunk
	binary.LittleEndian.PutUint32(b[1:], uint32(key.Dim))
	binary.LittleEndian.PutUint32(b[5:], uint32(key.Pos.X()))
	binary.LittleEndian.PutUint32(b[9:], uint32(key.Pos.Z()))
	return b
}

// factsData is the NBT representation of world.Facts.
type factsData struct {
	Dimension  int32   `nbt:"Dimension"`
	X          float64 `nbt:"X"`
	Y          float64 `nbt:"Y"`
	Z          float64 `nbt:"Z"`
	Positioned uint8   `nbt:"Positioned"`
	Riding     string  `nbt:"Riding"`
	FallX      float64 `nbt:"FallX"`
	FallY      float64 `nbt:"FallY"`
	FallZ      float64 `nbt:"FallZ"`
	Falling    uint8   `nbt:"Falling"`
}

func encodeFacts(f world.Facts) ([]byte, error) {
	d := factsData{
		Dimension:  int32(f.Dimension),
		X:          f.Position[0],
		Y:          f.Position[1],
		Z:          f.Position[2],
		Positioned: boolByte(f.Positioned),
		FallX:      f.FallStart[0],
		FallY:      f.FallStart[1],
		FallZ:      f.FallStart[2],
		Falling:    boolByte(f.Falling),
	}
	if f.Riding != uuid.Nil {
		d.Riding = f.Riding.String()
	}
	return nbt.MarshalEncoding(d, nbt.LittleEndian)
}

func decodeFacts(data []byte) (world.Facts, error) {
	var d factsData
	if err := nbt.UnmarshalEncoding(data, &d, nbt.LittleEndian); err != nil {
		return world.Facts{}, err
	}
	f := world.Facts{
		Dimension:  world.Dimension(d.Dimension),
		Position:   mgl64.Vec3{d.X, d.Y, d.Z},
		Positioned: d.Positioned != 0,
		FallStart:  mgl64.Vec3{d.FallX, d.FallY, d.FallZ},
		Falling:    d.Falling != 0,
	}
	if d.Riding != "" {
		id, err := uuid.Parse(d.Riding)
		if err != nil {
			return world.Facts{}, fmt.Errorf("riding: %w", err)
		}
		f.Riding = id
	}
	return f, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
