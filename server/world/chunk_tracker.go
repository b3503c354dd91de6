package world

import (
	"slices"

	"github.com/brentp/intintmap"
)

// chunkTracker holds the set of columns currently kept active by observers.
// Columns are indexed per dimension by their packed position, mapped to the
// tick they started being tracked at.
type chunkTracker struct {
	dims map[Dimension]*intintmap.Map
	size int
}

func newChunkTracker() *chunkTracker {
	return &chunkTracker{dims: make(map[Dimension]*intintmap.Map)}
}

// len returns the amount of tracked columns.
func (t *chunkTracker) len() int {
	return t.size
}

// tracked reports if a column is tracked.
func (t *chunkTracker) tracked(key CellKey) bool {
	m, ok := t.dims[key.Dim]
	if !ok {
		return false
	}
	_, ok = m.Get(key.Pos.pack())
	return ok
}

// keys returns all tracked columns, sorted with compareCellKeys.
func (t *chunkTracker) keys() []CellKey {
	keys := make([]CellKey, 0, t.size)
	for dim, m := range t.dims {
		for packed := range m.Keys() {
			keys = append(keys, CellKey{Dim: dim, Pos: unpackChunkPos(packed)})
		}
	}
	slices.SortFunc(keys, compareCellKeys)
	return keys
}

func (t *chunkTracker) add(key CellKey, tick int64) {
	m, ok := t.dims[key.Dim]
	if !ok {
		m = intintmap.New(64, 0.6)
		t.dims[key.Dim] = m
	}
	m.Put(key.Pos.pack(), tick)
	t.size++
}

func (t *chunkTracker) remove(key CellKey) {
	m, ok := t.dims[key.Dim]
	if !ok {
		return
	}
	m.Del(key.Pos.pack())
	t.size--
	if m.Size() == 0 {
		delete(t.dims, key.Dim)
	}
}

// reconcile replaces the tracked set with current. It returns the columns
// that were not tracked before, the columns no longer tracked and all columns
// tracked afterwards, each sorted with compareCellKeys. A column is never
// both loaded and unloaded by the same call.
func (t *chunkTracker) reconcile(current map[CellKey]struct{}, tick int64) (loaded, unloaded, ticking []CellKey) {
	for _, key := range t.keys() {
		if _, ok := current[key]; !ok {
			unloaded = append(unloaded, key)
		}
	}
	for key := range current {
		if !t.tracked(key) {
			loaded = append(loaded, key)
		}
	}
	slices.SortFunc(loaded, compareCellKeys)

	for _, key := range unloaded {
		t.remove(key)
	}
	for _, key := range loaded {
		t.add(key, tick)
	}
	return loaded, unloaded, t.keys()
}

// chunksAround calls fn for every column within a taxicab distance of radius
// from pos, and for the four columns at radius+1 straight along the axes.
func chunksAround(pos ChunkPos, radius int, fn func(ChunkPos)) {
	r := int32(radius)
	for dx := -r - 1; dx <= r+1; dx++ {
		for dz := -r - 1; dz <= r+1; dz++ {
			d := abs32(dx) + abs32(dz)
			if d > r+1 || (d == r+1 && dx != 0 && dz != 0) {
				continue
			}
			fn(ChunkPos{pos[0] + dx, pos[1] + dz})
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// activeChunks returns the union of the columns around all observers.
func (e *Engine) activeChunks() map[CellKey]struct{} {
	current := make(map[CellKey]struct{})
	for o := range e.host.Observers() {
		if o == nil {
			continue
		}
		radius := o.ChunkRadius()
		if radius <= 0 {
			radius = e.conf.ChunkRadius
		}
		dim := o.Dimension()
		chunksAround(chunkPosFromVec3(o.Position()), radius, func(pos ChunkPos) {
			current[CellKey{Dim: dim, Pos: pos}] = struct{}{}
		})
	}
	return current
}

// tickChunks reconciles the tracked columns with the observers of the host
// and dispatches the load, unload and tick events that follow.
func (e *Engine) tickChunks(tick int64) {
	loaded, unloaded, ticking := e.chunks.reconcile(e.activeChunks(), tick)
	for _, key := range loaded {
		emit(e.metrics, EventChunkLoad, e.events.ChunkLoad, ChunkEvent{Key: key, Initial: e.markGenerated(key), Tick: tick})
	}
	for _, key := range unloaded {
		emit(e.metrics, EventChunkUnload, e.events.ChunkUnload, ChunkEvent{Key: key, Tick: tick})
	}
	for _, key := range ticking {
		emit(e.metrics, EventChunkTick, e.events.ChunkTick, ChunkEvent{Key: key, Tick: tick})
	}
}

// markGenerated records that a column was loaded and reports if it was never
// loaded before. Store failures are logged and the column is treated as not
// new.
func (e *Engine) markGenerated(key CellKey) bool {
	generated, err := e.facts.ChunkGenerated(key)
	if err != nil {
		e.metrics.IncFactErrors()
		e.log.Warn("Read chunk generated flag.", "chunk", key, "error", err)
		return false
	}
	if generated {
		return false
	}
	if err := e.facts.SetChunkGenerated(key); err != nil {
		e.metrics.IncFactErrors()
		e.log.Warn("Write chunk generated flag.", "chunk", key, "error", err)
	}
	return true
}
