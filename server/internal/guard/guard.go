package guard

import "runtime/debug"

// Reporter receives the value of a recovered panic together with the stack of
// the goroutine at the moment it was recovered.
type Reporter func(reason any, stack []byte)

// Run calls fn and recovers any panic raised by it. The panic is passed to
// report, if non-nil. ok is false if fn panicked.
func Run(fn func(), report Reporter) (ok bool) {
	if fn == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if report != nil {
				report(r, debug.Stack())
			}
		}
	}()
	fn()
	return true
}

// Value calls fn and returns its result. If fn panics, the zero value of T is
// returned and ok is false.
func Value[T any](fn func() T, report Reporter) (value T, ok bool) {
	ok = Run(func() {
		value = fn()
	}, report)
	return
}
