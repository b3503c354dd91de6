package event

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dm-vev/synth/server/internal/guard"
)

// Handle identifies a single subscription to a Signal. Handles are never
// reused within the same Signal.
type Handle uint64

// Filter decides if a subscriber should receive an event. A subscriber with
// one or more filters is only called if every filter accepts the event.
type Filter[E any] func(E) bool

// Config holds the options used to create a Signal.
type Config struct {
	// Name identifies the Signal in log output.
	Name string
	// Log is the Logger subscriber panics are reported to. If nil,
	// slog.Default() is used.
	Log *slog.Logger
	// PanicHook, if set, is called after a subscriber panic was recovered and
	// logged.
	PanicHook func(name string, reason any)
}

type registration[E any] struct {
	id      Handle
	fn      func(E)
	filters []Filter[E]
}

func (r registration[E]) accepts(e E) bool {
	for _, f := range r.filters {
		if f != nil && !f(e) {
			return false
		}
	}
	return true
}

// Signal is a typed publish/subscribe primitive. Subscribers are called in
// the order they subscribed. A subscriber that panics is recovered and logged
// without affecting the remaining subscribers or the caller of Dispatch.
//
// Subscribing and unsubscribing is permitted at any time, including from
// within a subscriber: Dispatch iterates over the subscriber list as it was
// when Dispatch was called.
type Signal[E any] struct {
	name      string
	log       *slog.Logger
	panicHook func(name string, reason any)

	mu    sync.Mutex
	regs  []registration[E]
	next  Handle
	chain atomic.Pointer[[]registration[E]]
}

// NewSignal creates an empty Signal using the Config passed.
func NewSignal[E any](conf Config) *Signal[E] {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	s := &Signal[E]{
		name:      conf.Name,
		log:       conf.Log,
		panicHook: conf.PanicHook,
		next:      1,
	}
	s.chain.Store(&[]registration[E]{})
	return s
}

// Name returns the name the Signal was created with.
func (s *Signal[E]) Name() string {
	return s.name
}

// Subscribe adds fn to the end of the subscriber list. The Handle returned may
// be passed to Unsubscribe to remove it again.
func (s *Signal[E]) Subscribe(fn func(E), filters ...Filter[E]) Handle {
	if fn == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.regs = append(s.regs, registration[E]{id: id, fn: fn, filters: filters})
	s.publishLocked()
	return id
}

// Unsubscribe removes the subscriber with the Handle passed. It reports if the
// subscriber was found.
func (s *Signal[E]) Unsubscribe(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, reg := range s.regs {
		if reg.id == h {
			s.regs = append(s.regs[:i:i], s.regs[i+1:]...)
			s.publishLocked()
			return true
		}
	}
	return false
}

// Clear removes all subscribers.
func (s *Signal[E]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = nil
	s.publishLocked()
}

// Len returns the amount of subscribers currently registered.
func (s *Signal[E]) Len() int {
	return len(*s.chain.Load())
}

// publishLocked stores a copy of the subscriber list for Dispatch to iterate.
// The list published is never mutated afterwards.
func (s *Signal[E]) publishLocked() {
	out := make([]registration[E], len(s.regs))
	copy(out, s.regs)
	s.chain.Store(&out)
}

// Dispatch calls every subscriber whose filters accept e, in subscription
// order. Filters run behind the same panic guard as the subscriber itself.
func (s *Signal[E]) Dispatch(e E) {
	for _, reg := range *s.chain.Load() {
		guard.Run(func() {
			if reg.accepts(e) {
				reg.fn(e)
			}
		}, func(reason any, stack []byte) {
			s.log.Error("Event subscriber panic.", "signal", s.name, "subscriber", uint64(reg.id), "panic", reason, "stack", string(stack))
			if s.panicHook != nil {
				s.panicHook(s.name, reason)
			}
		})
	}
}
