// Package dispatch implements the Core's C4 Dispatcher, C5 Response-Open
// Fan-out and C7 Error Synthesiser on top of a registry.HandlerRegistry and
// registry.TransportSlot.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/message"
	"github.com/ipmibmc/bmccore/internal/registry"
)

// Dispatcher routes inbound requests to the first matching handler (or the
// default handler), fans out response-open signals, and synthesizes
// completion-code responses when nothing accepts a request or a handler
// fails. None of its methods block on a mutex held across a handler call,
// allocate unboundedly, or wait on a condition variable, so they are safe to
// call from a transport's interrupt-like callback path.
type Dispatcher struct {
	handlers  *registry.HandlerRegistry
	transport *registry.TransportSlot
	log       interfaces.Logger
	obs       interfaces.Observer
}

// New builds a Dispatcher over the given registry and transport slot.
func New(handlers *registry.HandlerRegistry, transport *registry.TransportSlot, log interfaces.Logger, obs interfaces.Observer) *Dispatcher {
	return &Dispatcher{handlers: handlers, transport: transport, log: log, obs: obs}
}

// Dispatch routes req to the first handler whose Match returns true, or the
// default handler if none match. A matching handler owns the request even
// if its Handle call fails: failure is reported via the Error Synthesiser,
// not papered over by trying the next handler or the default. If no
// handler matches and no default is installed, the request is refused as
// no-device.
func (d *Dispatcher) Dispatch(ctx context.Context, req message.Message) {
	start := time.Now()
	defer func() {
		if d.obs != nil {
			d.obs.ObserveDispatchDuration(time.Since(start).Seconds())
		}
	}()

	var (
		matched   interfaces.Handler
		isDefault bool
	)
	d.handlers.WithHandlers(func(ordered []interfaces.Handler, def interfaces.Handler) {
		for _, h := range ordered {
			if h.Match(req) {
				matched = h
				return
			}
		}
		if def != nil {
			matched = def
			isDefault = true
		}
	})

	if matched == nil {
		d.log.Warnf("dispatch: no handler matched and no default installed, cmd=0x%02x", req.Cmd)
		d.recordAndSynthesize(ctx, req, bmcerr.New("dispatch", bmcerr.CodeNoDevice, "no handler matched"))
		return
	}

	err := matched.Handle(ctx, req)
	if d.obs != nil {
		d.obs.RecordDispatch(!isDefault, err)
	}
	if err != nil {
		d.log.Warnf("dispatch: handler returned error, cmd=0x%02x: %v", req.Cmd, err)
		d.recordAndSynthesize(ctx, req, err)
	}
}

// FanOutResponseOpen notifies every registered handler, in registration
// order, followed by the default handler if one is installed, that the
// transport slot can now accept a response.
func (d *Dispatcher) FanOutResponseOpen() {
	d.handlers.WithHandlers(func(ordered []interfaces.Handler, def interfaces.Handler) {
		for _, h := range ordered {
			h.SignalResponseOpen()
		}
		if def != nil {
			def.SignalResponseOpen()
		}
	})
}

// recordAndSynthesize builds a completion-code response for err and
// attempts exactly one delivery via the bound transport. Delivery failure
// is logged and dropped, never retried — matching
// ipmi_bmc_send_error_response's behavior in the original driver.
func (d *Dispatcher) recordAndSynthesize(ctx context.Context, req message.Message, cause error) {
	code := CompletionCodeFor(cause)
	resp := req.ToResponse(code)
	if d.obs != nil {
		d.obs.RecordSynthesized(code)
	}

	var sendErr error
	d.transport.With(func(t interfaces.Transport) {
		if t == nil {
			sendErr = bmcerr.New("dispatch.synthesize", bmcerr.CodeNoDevice, "no transport bound")
			return
		}
		sendErr = t.SendResponse(ctx, resp)
	})
	if d.obs != nil {
		d.obs.RecordResponse(sendErr)
	}
	if sendErr != nil {
		d.log.Warnf("dispatch: failed to deliver synthesized response for cmd=0x%02x seq=%d: %v", req.Cmd, req.Seq, sendErr)
	}
}

// CompletionCodeFor maps a Core failure to the IPMI completion code the
// Error Synthesiser puts on the wire.
func CompletionCodeFor(err error) uint8 {
	var e *bmcerr.Error
	if !errors.As(err, &e) {
		return message.CompletionUnspecified
	}
	switch e.Code {
	case bmcerr.CodeBusy:
		return message.CompletionNodeBusy
	case bmcerr.CodeInvalid:
		return message.CompletionInvalidCommand
	case bmcerr.CodeTimeout:
		return message.CompletionTimeout
	case bmcerr.CodeOutOfMemory:
		return message.CompletionOutOfSpace
	default:
		return message.CompletionUnspecified
	}
}
