package world

import (
	"slices"

	"github.com/dm-vev/synth/server/block/cube"
	"github.com/dm-vev/synth/server/internal/guard"
	"github.com/google/uuid"
	"github.com/segmentio/fasthash/fnv1a"
)

// OwnerKey is the logical slot a scheduled callback is bound to: either a cell
// in a dimension or an entity. Callbacks are queued per OwnerKey.
type OwnerKey struct {
	Dim    Dimension
	Pos    cube.Pos
	Entity uuid.UUID
}

// Resolver resolves the objects that own scheduled callbacks. It is
// implemented by *Engine.
type Resolver interface {
	BlockSource
	Entity(id uuid.UUID) (Entity, bool)
}

// Owner is an object scheduled callbacks may be bound to.
type Owner interface {
	// OwnerKey returns the slot of the owner.
	OwnerKey() OwnerKey
	// Identity returns a token identifying the object currently occupying the
	// slot. Callbacks scheduled while a different object occupied the slot are
	// discarded instead of fired. ok is false if the slot could not be
	// resolved, in which case all callbacks of the owner are dropped.
	Identity(r Resolver) (id uint64, ok bool)
}

// BlockOwner is an Owner for the block at a position. Its identity is the
// BlockHash of the block, so replacing the block with a different one
// discards pending callbacks.
type BlockOwner struct {
	Dim Dimension
	Pos cube.Pos
}

// OwnerKey ...
func (o BlockOwner) OwnerKey() OwnerKey {
	return OwnerKey{Dim: o.Dim, Pos: o.Pos}
}

// Identity ...
func (o BlockOwner) Identity(r Resolver) (uint64, bool) {
	b, err := r.Block(o.Dim, o.Pos)
	if err != nil {
		return 0, false
	}
	return BlockHash(b), true
}

// EntityOwner is an Owner for an entity. It resolves for as long as the
// entity is live.
type EntityOwner struct {
	ID uuid.UUID
}

// OwnerKey ...
func (o EntityOwner) OwnerKey() OwnerKey {
	return OwnerKey{Entity: o.ID}
}

// Identity ...
func (o EntityOwner) Identity(r Resolver) (uint64, bool) {
	ent, ok := r.Entity(o.ID)
	if !ok {
		return 0, false
	}
	return fnv1a.AddString64(fnv1a.HashString64(o.ID.String()), ent.Type()), true
}

// ScheduledCallback is a callback registered through Engine.After.
type ScheduledCallback struct {
	key      OwnerKey
	identity uint64

	remaining, total int
	f                func()
	done             bool
}

// Owner returns the key of the owner the callback is bound to.
func (sc *ScheduledCallback) Owner() OwnerKey {
	return sc.key
}

// Remaining returns the amount of ticks left before the callback fires.
func (sc *ScheduledCallback) Remaining() int {
	return max(sc.remaining, 0)
}

// Total returns the delay the callback was scheduled with.
func (sc *ScheduledCallback) Total() int {
	return sc.total
}

// Done reports if the callback fired, was discarded or was cancelled.
func (sc *ScheduledCallback) Done() bool {
	return sc.done
}

// callbackQueue holds the pending callbacks of a single owner.
type callbackQueue struct {
	owner   Owner
	key     OwnerKey
	entries []*ScheduledCallback
}

// scheduledCallbacks holds the callback queues of all owners. Queues are kept
// in a slice indexed by a map so that removal does not have to search.
type scheduledCallbacks struct {
	queues []*callbackQueue
	index  map[OwnerKey]int
	size   int
}

func newScheduledCallbacks() *scheduledCallbacks {
	return &scheduledCallbacks{index: make(map[OwnerKey]int)}
}

// len returns the amount of pending callbacks.
func (s *scheduledCallbacks) len() int {
	return s.size
}

// queue returns the queue of an owner, or nil if it has none.
func (s *scheduledCallbacks) queue(key OwnerKey) *callbackQueue {
	if idx, ok := s.index[key]; ok {
		return s.queues[idx]
	}
	return nil
}

func (s *scheduledCallbacks) add(owner Owner, sc *ScheduledCallback) {
	q := s.queue(sc.key)
	if q == nil {
		q = &callbackQueue{owner: owner, key: sc.key}
		s.queues = append(s.queues, q)
		s.index[sc.key] = len(s.queues) - 1
	}
	q.entries = append(q.entries, sc)
	s.size++
}

// removeQueue drops the queue of an owner, marking all its callbacks done. It
// returns the amount of callbacks dropped.
func (s *scheduledCallbacks) removeQueue(key OwnerKey) int {
	idx, ok := s.index[key]
	if !ok {
		return 0
	}
	q := s.queues[idx]
	for _, sc := range q.entries {
		sc.done = true
	}
	last := len(s.queues) - 1
	if idx != last {
		s.queues[idx] = s.queues[last]
		s.index[s.queues[idx].key] = idx
	}
	s.queues[last] = nil
	s.queues = s.queues[:last]
	delete(s.index, key)
	s.size -= len(q.entries)
	return len(q.entries)
}

// remove removes a single callback from its queue, dropping the queue once it
// is empty. It returns false if the callback was not queued.
func (s *scheduledCallbacks) remove(sc *ScheduledCallback) bool {
	q := s.queue(sc.key)
	if q == nil {
		return false
	}
	i := slices.Index(q.entries, sc)
	if i == -1 {
		return false
	}
	sc.done = true
	q.entries = slices.Delete(q.entries, i, i+1)
	s.size--
	if len(q.entries) == 0 {
		s.removeQueue(sc.key)
	}
	return true
}

// After schedules f to be called once after delay ticks, bound to owner. A
// delay of 3 fires f during the third Tick after the call; delays of 0 or less
// fire it during the next Tick. f is not called if owner is occupied by a
// different object by then, or if owner can no longer be resolved.
//
// After returns nil and schedules nothing if owner cannot be resolved now.
func (e *Engine) After(owner Owner, f func(), delay int) *ScheduledCallback {
	if owner == nil || f == nil {
		return nil
	}
	id, ok := owner.Identity(e)
	if !ok {
		return nil
	}
	sc := &ScheduledCallback{key: owner.OwnerKey(), identity: id, remaining: delay, total: delay, f: f}
	e.scheduled.add(owner, sc)
	return sc
}

// Cancel removes a callback scheduled with After before it fires. It returns
// false if the callback already fired, was discarded or was cancelled before.
func (e *Engine) Cancel(sc *ScheduledCallback) bool {
	if sc == nil || sc.done {
		return false
	}
	return e.scheduled.remove(sc)
}

// Scheduled returns the pending callbacks bound to an owner, in the order they
// were scheduled.
func (e *Engine) Scheduled(key OwnerKey) []*ScheduledCallback {
	q := e.scheduled.queue(key)
	if q == nil {
		return nil
	}
	return slices.Clone(q.entries)
}

// tickScheduled counts down all pending callbacks and fires the ones that
// expire. Callbacks scheduled while this runs are first counted down in the
// next tick.
func (e *Engine) tickScheduled() {
	var fired, discarded, panicked uint64
	for _, q := range slices.Clone(e.scheduled.queues) {
		if e.scheduled.queue(q.key) != q {
			// Dropped by a callback fired earlier in this tick.
			continue
		}
		if _, ok := q.owner.Identity(e); !ok {
			discarded += uint64(e.scheduled.removeQueue(q.key))
			continue
		}
		for _, sc := range slices.Clone(q.entries) {
			if sc.done {
				continue
			}
			if sc.remaining--; sc.remaining > 0 {
				continue
			}
			if id, ok := q.owner.Identity(e); !ok || id != sc.identity {
				e.scheduled.remove(sc)
				discarded++
				continue
			}
			fired++
			if !e.fire(sc) {
				panicked++
			}
		}
	}
	e.metrics.AddCallbacks(fired, discarded, panicked)
}

// fire calls a callback and removes it from its queue, also if it panics.
func (e *Engine) fire(sc *ScheduledCallback) bool {
	defer e.scheduled.remove(sc)
	return guard.Run(sc.f, func(reason any, stack []byte) {
		e.log.Error("Scheduled callback panic.", "owner", sc.key, "panic", reason, "stack", string(stack))
	})
}
