package registry

import (
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
)

// HandlerRegistry is the Core's C2: an ordered list of handlers plus one
// optional default handler. Readers (the dispatcher and the response-open
// fan-out) walk a lock-free snapshot; writers are serialized by writeMu.
// Register and RegisterDefault return without waiting; Unregister and
// UnregisterDefault wait for readers of every earlier snapshot to drain
// before returning, so a handler is never invoked again once its
// Unregister call has returned.
type HandlerRegistry struct {
	writeMu sync.Mutex
	ordered *cow[[]interfaces.Handler]
	def     *cow[interfaces.Handler]
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		ordered: newCow[[]interfaces.Handler](nil),
		def:     newCow[interfaces.Handler](nil),
	}
}

// Register appends h to the end of the ordered list. Returns
// already-registered if h is already present (by identity).
func (r *HandlerRegistry) Register(h interfaces.Handler) error {
	if h == nil {
		return bmcerr.New("registry.Register", bmcerr.CodeInvalid, "nil handler")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.ordered.snapshot()
	for _, existing := range cur {
		if existing == h {
			return bmcerr.New("registry.Register", bmcerr.CodeAlreadyRegistered, "handler already registered")
		}
	}
	next := make([]interfaces.Handler, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, h)
	// A plain append never invalidates anything an in-flight reader is
	// looking at, so no drain wait is needed here.
	r.ordered.replaceNoWait(next)
	return nil
}

// Unregister removes h from the ordered list. Returns not-found if h is not
// present. On success, no in-flight call into h's Match/Handle that began
// before Unregister was invoked is still running once Unregister returns.
func (r *HandlerRegistry) Unregister(h interfaces.Handler) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.ordered.snapshot()
	idx := -1
	for i, existing := range cur {
		if existing == h {
			idx = i
			break
		}
	}
	if idx == -1 {
		return bmcerr.New("registry.Unregister", bmcerr.CodeNotFound, "handler not registered")
	}
	next := make([]interfaces.Handler, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	r.ordered.replace(next)
	return nil
}

// RegisterDefault installs h as the fallback handler used when no
// registered handler matches a request. Returns busy if a default handler
// is already installed.
func (r *HandlerRegistry) RegisterDefault(h interfaces.Handler) error {
	if h == nil {
		return bmcerr.New("registry.RegisterDefault", bmcerr.CodeInvalid, "nil handler")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.def.snapshot() != nil {
		return bmcerr.New("registry.RegisterDefault", bmcerr.CodeBusy, "default handler already installed")
	}
	r.def.replaceNoWait(h)
	return nil
}

// UnregisterDefault removes the default handler. Returns not-found if none
// is installed.
func (r *HandlerRegistry) UnregisterDefault(h interfaces.Handler) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.def.snapshot() != h || h == nil {
		return bmcerr.New("registry.UnregisterDefault", bmcerr.CodeNotFound, "default handler not registered")
	}
	r.def.replace(nil)
	return nil
}

// WithHandlers calls fn with the current ordered handler snapshot.
// fn must not retain the slice beyond the call.
func (r *HandlerRegistry) WithHandlers(fn func(handlers []interfaces.Handler, def interfaces.Handler)) {
	oe := r.ordered.enter()
	defer oe.leave()
	de := r.def.enter()
	defer de.leave()
	fn(oe.val, de.val)
}
