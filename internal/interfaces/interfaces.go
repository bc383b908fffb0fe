// Package interfaces collects the Core's small seams, mirroring the
// teacher's internal/interfaces/backend.go split between the production
// contract and the things that implement it.
package interfaces

import (
	"context"

	"github.com/ipmibmc/bmccore/internal/message"
)

// Handler matches and services inbound requests. Match must be cheap and
// side-effect free: the dispatcher may call it on handlers it ultimately
// does not deliver to. Handle takes ownership of req once it returns true
// from Match for it — the dispatcher does not try a later handler or the
// default handler after a matching Handle call, even if Handle itself
// fails; failure is reported to the caller, not papered over with fallback.
type Handler interface {
	// Match reports whether this handler accepts req.
	Match(req message.Message) bool
	// Handle services req. The error, if any, is surfaced to the Error
	// Synthesiser for completion-code mapping; Handle should not attempt
	// delivery of its own error response.
	Handle(ctx context.Context, req message.Message) error
	// SignalResponseOpen notifies the handler that the transport slot can
	// now accept a response (see Transport.IsResponseOpen). Called from
	// fan-out, never from Handle.
	SignalResponseOpen()
}

// Transport is the single bound sink for outbound responses and the
// authority on whether one can be sent right now.
type Transport interface {
	// SendResponse attempts delivery of resp. Returns an error with
	// code Busy if a response is already in flight.
	SendResponse(ctx context.Context, resp message.Message) error
	// IsResponseOpen reports whether SendResponse would not immediately
	// fail with Busy.
	IsResponseOpen() bool
}

// Logger is the leveled logging seam every Core component writes through.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer receives point-in-time counters from the Core, mirroring the
// teacher's metrics.Metrics surface generalized to this domain.
type Observer interface {
	RecordDispatch(matched bool, err error)
	RecordResponse(err error)
	RecordSynthesized(completionCode uint8)
	SetQueueDepth(n int)
	// ObserveDispatchDuration records how long a single Dispatch call took
	// to route and (if matched) run a handler, in seconds.
	ObserveDispatchDuration(seconds float64)
}
