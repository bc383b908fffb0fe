// Package mock is a Transport implementation for tests and local
// development, grounded on the teacher's stub-mode idiom
// (internal/queue/runner.go's NewStubRunner/stubLoop): no real hardware or
// bus access, just enough state to exercise the Core's send/response-open
// contract deterministically.
package mock

import (
	"context"
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/message"
)

// Transport is an in-memory Transport: at most one response in flight,
// closed by each successful SendResponse and reopened under direct control
// via Open.
type Transport struct {
	mu   sync.Mutex
	open bool
	sent []message.Message
}

// New returns a Transport with the response slot initially open.
func New() *Transport {
	return &Transport{open: true}
}

// SendResponse records resp if the slot is open, then closes it (a real
// response is in flight until the test reopens it via Open).
func (t *Transport) SendResponse(_ context.Context, resp message.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return bmcerr.New("mock.SendResponse", bmcerr.CodeBusy, "response already in flight")
	}
	t.sent = append(t.sent, resp)
	t.open = false
	return nil
}

// IsResponseOpen reports whether SendResponse would currently succeed.
func (t *Transport) IsResponseOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Open reopens the response slot, as if the host had drained the previous
// response from the wire.
func (t *Transport) Open() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = true
}

// Sent returns every response SendResponse has recorded, in order.
func (t *Transport) Sent() []message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]message.Message, len(t.sent))
	copy(out, t.sent)
	return out
}
