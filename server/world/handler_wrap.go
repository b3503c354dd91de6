package world

// wrapHandler normalises a Handler passed to Engine.Handle: nil handlers are
// replaced with NopHandler, after which Config.HandlerWrap, if set, may
// replace the handler with an alternate implementation. A wrapper returning
// nil leaves the handler unwrapped.
func (e *Engine) wrapHandler(h Handler) Handler {
	if h == nil {
		h = NopHandler{}
	}
	if e.conf.HandlerWrap == nil {
		return h
	}
	if wrapped := e.conf.HandlerWrap(h); wrapped != nil {
		return wrapped
	}
	return h
}
