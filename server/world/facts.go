package world

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Facts is the state the engine persists for a single entity between ticks.
// Every event for an entity is derived by comparing a fresh Observation with
// the entity's Facts.
type Facts struct {
	// Dimension and Position hold the last quantized position of the entity.
	// They are only meaningful if Positioned is true.
	Dimension  Dimension
	Position   mgl64.Vec3
	Positioned bool
	// Riding is the UUID of the entity last ridden, uuid.Nil if none.
	Riding uuid.UUID
	// FallStart is the position a fall that has not landed yet started at.
	// It is only meaningful if Falling is true.
	FallStart mgl64.Vec3
	Falling   bool
}

// FactStore stores the Facts of entities and the generated flags of columns so
// that they survive entity reloads and process restarts. Implementations do
// not need to be safe for concurrent use: the engine calls them from the tick
// only.
type FactStore interface {
	// LoadFacts returns the Facts stored for an entity. ok is false if none
	// were stored.
	LoadFacts(id uuid.UUID) (f Facts, ok bool, err error)
	// SaveFacts stores the Facts of an entity, replacing any stored before.
	SaveFacts(id uuid.UUID, f Facts) error
	// DeleteFacts removes the Facts of an entity.
	DeleteFacts(id uuid.UUID) error
	// ChunkGenerated reports if a column was ever loaded before.
	ChunkGenerated(key CellKey) (bool, error)
	// SetChunkGenerated marks a column as loaded before.
	SetChunkGenerated(key CellKey) error
}

// MemoryFactStore is a FactStore that keeps everything in memory. It is the
// FactStore used if none is configured. It is safe for concurrent use.
type MemoryFactStore struct {
	mu     sync.Mutex
	facts  map[uuid.UUID]Facts
	chunks map[CellKey]struct{}
}

// NewMemoryFactStore returns an empty MemoryFactStore.
func NewMemoryFactStore() *MemoryFactStore {
	return &MemoryFactStore{facts: make(map[uuid.UUID]Facts), chunks: make(map[CellKey]struct{})}
}

// LoadFacts ...
func (s *MemoryFactStore) LoadFacts(id uuid.UUID) (Facts, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facts[id]
	return f, ok, nil
}

// SaveFacts ...
func (s *MemoryFactStore) SaveFacts(id uuid.UUID, f Facts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[id] = f
	return nil
}

// DeleteFacts ...
func (s *MemoryFactStore) DeleteFacts(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.facts, id)
	return nil
}

// ChunkGenerated ...
func (s *MemoryFactStore) ChunkGenerated(key CellKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chunks[key]
	return ok, nil
}

// SetChunkGenerated ...
func (s *MemoryFactStore) SetChunkGenerated(key CellKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[key] = struct{}{}
	return nil
}

// Len returns the amount of entities with stored Facts.
func (s *MemoryFactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}
