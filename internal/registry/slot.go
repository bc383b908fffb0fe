package registry

import (
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
)

// TransportSlot is the Core's C3: at most one bound transport at a time.
// Bind/Unbind have the same busy/not-found/quiescence discipline as the
// handler registry's default-handler slot; readers (SendResponse and
// IsResponseOpen callers) go through a lock-free snapshot.
type TransportSlot struct {
	writeMu sync.Mutex
	slot    *cow[interfaces.Transport]
}

// NewTransportSlot returns an unbound slot.
func NewTransportSlot() *TransportSlot {
	return &TransportSlot{slot: newCow[interfaces.Transport](nil)}
}

// Bind installs t as the bound transport. Returns busy if a transport is
// already bound.
func (s *TransportSlot) Bind(t interfaces.Transport) error {
	if t == nil {
		return bmcerr.New("registry.Bind", bmcerr.CodeInvalid, "nil transport")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.slot.snapshot() != nil {
		return bmcerr.New("registry.Bind", bmcerr.CodeBusy, "transport already bound")
	}
	s.slot.replaceNoWait(t)
	return nil
}

// Unbind removes t, the currently bound transport. Returns not-found if t is
// not the one currently bound. On success, no in-flight SendResponse or
// IsResponseOpen call against t that began before Unbind was invoked is
// still running once Unbind returns.
func (s *TransportSlot) Unbind(t interfaces.Transport) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.slot.snapshot() != t || t == nil {
		return bmcerr.New("registry.Unbind", bmcerr.CodeNotFound, "transport not bound")
	}
	s.slot.replace(nil)
	return nil
}

// With calls fn with the currently bound transport (nil if none is bound).
// fn must not retain t beyond the call.
func (s *TransportSlot) With(fn func(t interfaces.Transport)) {
	e := s.slot.enter()
	defer e.leave()
	fn(e.val)
}

// Bound reports whether a transport is currently bound, without tracking an
// in-flight read (diagnostic use only — never gate a call into the
// transport on this, use With instead, since a concurrent Unbind could
// invalidate the answer before you act on it).
func (s *TransportSlot) Bound() bool {
	return s.slot.snapshot() != nil
}
