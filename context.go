// Package ipmibmc implements the BMC-side IPMI Block Transfer request
// router and response arbiter: it binds one transport to an ordered set of
// handlers, dispatches inbound requests to the first match (or a default
// handler), serializes outbound responses through the bound transport, fans
// out response-open notifications, and synthesizes completion-code
// responses when nothing accepts a request.
//
// The original Linux driver keeps a global singleton behind
// ipmi_bmc_get_global_ctx(). Here a Core is an ordinary value built with
// NewCore and handed to every transport and handler that registers with it;
// the package keeps no global instance.
package ipmibmc

import (
	"context"
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/dispatch"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/logging"
	"github.com/ipmibmc/bmccore/internal/message"
	"github.com/ipmibmc/bmccore/internal/registry"
)

// Message is a Block Transfer wire frame.
type Message = message.Message

// Handler matches and services inbound requests; see internal/interfaces
// for the full contract.
type Handler = interfaces.Handler

// Transport is the single bound sink for outbound responses.
type Transport = interfaces.Transport

// Logger is the leveled logging seam every Core component writes through.
type Logger = interfaces.Logger

// Core is the process-wide router/arbiter: one Handler Registry, one
// Transport Slot, and the Dispatcher/Fan-out built over them.
type Core struct {
	handlers   *registry.HandlerRegistry
	transport  *registry.TransportSlot
	dispatcher *dispatch.Dispatcher
	log        Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
	shutdown bool
}

// NewCore builds a Core. log and obs may be nil, in which case a default
// logger and a no-op observer are used.
func NewCore(log Logger, obs Observer) *Core {
	if log == nil {
		log = logging.Default()
	}
	handlers := registry.NewHandlerRegistry()
	transport := registry.NewTransportSlot()
	var iobs interfaces.Observer
	if obs != nil {
		iobs = obs
	}
	return &Core{
		handlers:   handlers,
		transport:  transport,
		dispatcher: dispatch.New(handlers, transport, log, iobs),
		log:        log,
	}
}

// RegisterHandler appends h to the ordered handler list.
func (c *Core) RegisterHandler(h Handler) error {
	if err := c.refuseIfShutdown("RegisterHandler"); err != nil {
		return err
	}
	return c.handlers.Register(h)
}

// UnregisterHandler removes h from the ordered handler list, blocking until
// any in-flight dispatch into h has returned.
func (c *Core) UnregisterHandler(h Handler) error {
	return c.handlers.Unregister(h)
}

// RegisterDefaultHandler installs h as the fallback used when no handler
// matches.
func (c *Core) RegisterDefaultHandler(h Handler) error {
	if err := c.refuseIfShutdown("RegisterDefaultHandler"); err != nil {
		return err
	}
	return c.handlers.RegisterDefault(h)
}

// UnregisterDefaultHandler removes the installed default handler.
func (c *Core) UnregisterDefaultHandler(h Handler) error {
	return c.handlers.UnregisterDefault(h)
}

// BindTransport installs t as the bound transport.
func (c *Core) BindTransport(t Transport) error {
	if err := c.refuseIfShutdown("BindTransport"); err != nil {
		return err
	}
	return c.transport.Bind(t)
}

// UnbindTransport removes t, blocking until any in-flight send through it
// has returned.
func (c *Core) UnbindTransport(t Transport) error {
	return c.transport.Unbind(t)
}

// Dispatch routes req through the Core, as described on dispatch.Dispatcher.
// Refuses with no-device if the Core has begun shutting down.
func (c *Core) Dispatch(ctx context.Context, req Message) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return bmcerr.New("Core.Dispatch", bmcerr.CodeNoDevice, "core is shutting down")
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	c.dispatcher.Dispatch(ctx, req)
	return nil
}

// SignalResponseOpen fans out a response-open notification to every
// registered handler and the default handler, in registration order.
func (c *Core) SignalResponseOpen() {
	c.dispatcher.FanOutResponseOpen()
}

// Shutdown marks the Core as no longer accepting new registrations or
// dispatches, then waits for in-flight Dispatch calls to finish before
// returning.
func (c *Core) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return bmcerr.New("Core.Shutdown", bmcerr.CodeTimeout, "shutdown canceled before drain completed")
	}
}

func (c *Core) refuseIfShutdown(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return bmcerr.New("Core."+op, bmcerr.CodeNoDevice, "core is shutting down")
	}
	return nil
}
