// Package i2cslave implements the Block Transfer Transport contract as an
// I2C slave device, grounded on the original driver's ipmi_bmc_bt_i2c.c: a
// byte-at-a-time event callback driven by the I2C core's slave-mode state
// machine (write-requested/write-received/read-requested/read-processed/
// stop), rather than a register window.
package i2cslave

import (
	"context"
	"sync"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/message"
)

// Event mirrors the Linux i2c-slave callback's event enum: the bus adapter
// reports what's happening one byte at a time, and the slave decides what
// byte (if any) to return for a read.
type Event int

const (
	WriteRequested Event = iota
	WriteReceived
	ReadRequested
	ReadProcessed
	Stop
)

// Transport is an I2C-slave-backed Transport. Callback is the function a
// real I2C slave driver binding (or a test) invokes for every bus event;
// val is read for WriteReceived, written for ReadRequested/ReadProcessed.
type Transport struct {
	mu                 sync.Mutex
	msgIdx             int
	request            []byte
	response           []byte
	responseInProgress bool

	addr      string
	log       interfaces.Logger
	onRequest func(ctx context.Context, req message.Message)
}

// New returns a Transport that delivers completed requests to onRequest.
// addr identifies which slave device this Transport is bound to (e.g.
// "1-1010" for bus 1, address 0x10), used only for logging when a host
// exposes more than one I2C BT slave; it plays no part in the callback
// state machine itself, since the I2C core already routes bus events to
// the correct slave's Callback.
func New(addr string, log interfaces.Logger, onRequest func(ctx context.Context, req message.Message)) *Transport {
	return &Transport{addr: addr, log: log, onRequest: onRequest, request: make([]byte, 0, 4+message.PayloadMax)}
}

// Addr returns the slave device address this Transport was constructed
// with.
func (t *Transport) Addr() string {
	return t.addr
}

// IsResponseOpen reports whether SendResponse would not immediately fail
// with busy.
func (t *Transport) IsResponseOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.responseInProgress
}

// SendResponse stages resp to be clocked out on the next series of
// READ_REQUESTED/READ_PROCESSED events, refusing with busy if a previous
// response hasn't finished being read yet.
func (t *Transport) SendResponse(_ context.Context, resp message.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.responseInProgress {
		return bmcerr.New("i2cslave.SendResponse", bmcerr.CodeBusy, "response already in flight")
	}
	t.response = resp.Marshal()
	t.responseInProgress = true
	return nil
}

// Callback is invoked by the I2C bus binding for every slave-mode event.
// For WriteReceived, val is the byte just received. For ReadRequested and
// ReadProcessed, val is an out-parameter: the slave fills in the byte to
// return to the master.
func (t *Transport) Callback(ctx context.Context, event Event, val *uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event {
	case WriteRequested:
		t.msgIdx = 0
		t.request = t.request[:0]

	case WriteReceived:
		if len(t.request) >= 4+message.PayloadMax {
			break
		}
		t.request = append(t.request, *val)
		t.msgIdx++
		if frameComplete(t.request) {
			req, err := message.Unmarshal(t.request)
			if err != nil {
				if t.log != nil {
					t.log.Warnf("i2cslave[%s]: malformed request: %v", t.addr, err)
				}
				break
			}
			t.onRequestLocked(ctx, req)
		}

	case ReadRequested:
		t.msgIdx = 0
		if len(t.response) > 0 {
			*val = t.response[0]
		} else {
			*val = 0
		}

	case ReadProcessed:
		respLen := responseWireLen(t.response)
		if len(t.response) > 0 && t.msgIdx < respLen {
			t.msgIdx++
			*val = t.response[t.msgIdx]
		} else {
			*val = 0
		}
		if t.msgIdx+1 >= respLen {
			t.response = nil
			t.responseInProgress = false
		}

	case Stop:
		t.msgIdx = 0
	}
}

// onRequestLocked dispatches a completed request. Called with t.mu held; the
// lock is released for the duration of onRequest, because the Dispatcher it
// is wired to may call SendResponse on this Transport to deliver a
// synthesized error response.
func (t *Transport) onRequestLocked(ctx context.Context, req message.Message) {
	if t.onRequest != nil {
		t.mu.Unlock()
		defer t.mu.Lock()
		t.onRequest(ctx, req)
	}
}

func frameComplete(buf []byte) bool {
	if len(buf) < 1 {
		return false
	}
	return len(buf) >= int(buf[0])+1
}

func responseWireLen(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	return int(buf[0]) + 1
}
