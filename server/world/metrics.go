package world

import (
	"sync"
)

// Metrics tracks counters of an Engine for observability. A nil *Metrics is
// safe to use and records nothing.
type Metrics struct {
	mu sync.Mutex

	ticks      uint64
	dispatched [eventKindCount]uint64
	panics     [eventKindCount]uint64

	trackedChunks    int
	trackedEntities  int
	pendingCallbacks int

	firedCallbacks     uint64
	discardedCallbacks uint64
	callbackPanics     uint64
	factErrors         uint64
}

// MetricsSnapshot is a copy of the counters held by Metrics at one point in
// time.
type MetricsSnapshot struct {
	Ticks      uint64
	Dispatched map[EventKind]uint64
	Panics     map[EventKind]uint64

	TrackedChunks    int
	TrackedEntities  int
	PendingCallbacks int

	FiredCallbacks     uint64
	DiscardedCallbacks uint64
	CallbackPanics     uint64
	FactErrors         uint64
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncTicks increments the tick counter.
func (m *Metrics) IncTicks() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}

// IncDispatched increments the dispatch counter of an event kind.
func (m *Metrics) IncDispatched(k EventKind) {
	if m == nil || k >= eventKindCount {
		return
	}
	m.mu.Lock()
	m.dispatched[k]++
	m.mu.Unlock()
}

// IncPanics increments the recovered subscriber panic counter of an event
// kind.
func (m *Metrics) IncPanics(k EventKind) {
	if m == nil || k >= eventKindCount {
		return
	}
	m.mu.Lock()
	m.panics[k]++
	m.mu.Unlock()
}

// SetTracked stores the gauges of tracked chunks, entities and pending
// scheduled callbacks.
func (m *Metrics) SetTracked(chunks, entities, callbacks int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.trackedChunks, m.trackedEntities, m.pendingCallbacks = chunks, entities, callbacks
	m.mu.Unlock()
}

// AddCallbacks adds to the fired, discarded and panicked callback counters.
func (m *Metrics) AddCallbacks(fired, discarded, panicked uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.firedCallbacks += fired
	m.discardedCallbacks += discarded
	m.callbackPanics += panicked
	m.mu.Unlock()
}

// IncFactErrors increments the counter of failed FactStore operations.
func (m *Metrics) IncFactErrors() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.factErrors++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		Ticks:              m.ticks,
		Dispatched:         make(map[EventKind]uint64, eventKindCount),
		Panics:             make(map[EventKind]uint64),
		TrackedChunks:      m.trackedChunks,
		TrackedEntities:    m.trackedEntities,
		PendingCallbacks:   m.pendingCallbacks,
		FiredCallbacks:     m.firedCallbacks,
		DiscardedCallbacks: m.discardedCallbacks,
		CallbackPanics:     m.callbackPanics,
		FactErrors:         m.factErrors,
	}
	for k := EventKind(0); k < eventKindCount; k++ {
		s.Dispatched[k] = m.dispatched[k]
		if m.panics[k] > 0 {
			s.Panics[k] = m.panics[k]
		}
	}
	return s
}
