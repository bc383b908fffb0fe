// Package aspeed implements the Block Transfer Transport contract against
// the Aspeed AST2400/AST2500 memory-mapped BT register window, grounded on
// the original driver's ipmi_bmc_bt_aspeed.c: a single 32-bit-stride
// register block (BT_CR0..BT_INTMASK) with byte-wide control bits and a
// shared data port for both directions.
package aspeed

import (
	"context"
	"time"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/message"
)

// Register offsets, relative to the device's BT window base.
const (
	regCR0      = 0x0
	regCR1      = 0x4
	regCR2      = 0x8
	regCR3      = 0xc
	regCTRL     = 0x10
	regBMC2Host = 0x14
	regIntMask  = 0x18
)

// BT_CTRL bits.
const (
	ctrlBBusy    = 0x80
	ctrlHBusy    = 0x40
	ctrlOEM0     = 0x20
	ctrlSMSAtn   = 0x10
	ctrlB2HAtn   = 0x08
	ctrlH2BAtn   = 0x04
	ctrlClrRdPtr = 0x02
	ctrlClrWrPtr = 0x01
)

// pollInterval is the polling fallback period used when no interrupt line
// is configured, matching poll_timer's 500ms requeue in the original driver.
const pollInterval = 500 * time.Millisecond

// RegisterIO abstracts the 32-bit-stride register window so the transport
// can be driven by real MMIO (see OpenMMIO) or by a fake in tests.
type RegisterIO interface {
	ReadReg(offset int) uint8
	WriteReg(offset int, val uint8)
}

// Transport drives one Aspeed BT device. It satisfies interfaces.Transport
// and additionally exposes HandleInterrupt (for an interrupt handler) and
// Run (a fallback ticker), both of which poll the registers to notice an
// inbound request and deliver it to onRequest.
type Transport struct {
	io        RegisterIO
	log       interfaces.Logger
	onRequest func(ctx context.Context, req message.Message)
}

// New wires a Transport over io. onRequest is called with each request read
// off the wire (typically a wrapper around ipmibmc's Core.Dispatch).
func New(io RegisterIO, log interfaces.Logger, onRequest func(ctx context.Context, req message.Message)) *Transport {
	return &Transport{io: io, log: log, onRequest: onRequest}
}

func (t *Transport) ctrl() uint8 { return t.io.ReadReg(regCTRL) }

func (t *Transport) setBBusy() {
	if t.ctrl()&ctrlBBusy == 0 {
		t.io.WriteReg(regCTRL, ctrlBBusy)
	}
}

func (t *Transport) clrBBusy() {
	if t.ctrl()&ctrlBBusy != 0 {
		t.io.WriteReg(regCTRL, ctrlBBusy)
	}
}

func (t *Transport) clrH2BAtn() { t.io.WriteReg(regCTRL, ctrlH2BAtn) }
func (t *Transport) clrRdPtr()  { t.io.WriteReg(regCTRL, ctrlClrRdPtr) }
func (t *Transport) clrWrPtr()  { t.io.WriteReg(regCTRL, ctrlClrWrPtr) }
func (t *Transport) setB2HAtn() { t.io.WriteReg(regCTRL, ctrlB2HAtn) }

func (t *Transport) requestAvail() bool {
	return t.ctrl()&ctrlH2BAtn != 0
}

// IsResponseOpen reports whether SendResponse would not immediately fail
// with busy: the host must not be mid-read (H_BUSY) and no prior response
// must still be pending delivery (B2H_ATN).
func (t *Transport) IsResponseOpen() bool {
	return t.ctrl()&(ctrlHBusy|ctrlB2HAtn) == 0
}

// SendResponse writes resp's wire bytes to the shared data port and raises
// B2H_ATN for the host to notice, refusing with busy if the slot isn't
// open.
func (t *Transport) SendResponse(_ context.Context, resp message.Message) error {
	if !t.IsResponseOpen() {
		return bmcerr.New("aspeed.SendResponse", bmcerr.CodeBusy, "response slot not open")
	}
	t.clrWrPtr()
	for _, b := range resp.Marshal() {
		t.io.WriteReg(regBMC2Host, b)
	}
	t.setB2HAtn()
	return nil
}

// poll checks for an inbound request and, if one is pending, reads it and
// delivers it via onRequest. Mirrors get_request in the original driver.
func (t *Transport) poll(ctx context.Context) {
	if !t.requestAvail() {
		return
	}
	t.setBBusy()
	t.clrH2BAtn()
	t.clrRdPtr()

	length := t.io.ReadReg(regBMC2Host)
	frame := make([]byte, int(length)+1)
	frame[0] = length
	for i := 1; i <= int(length); i++ {
		frame[i] = t.io.ReadReg(regBMC2Host)
	}
	t.clrBBusy()

	req, err := message.Unmarshal(frame)
	if err != nil {
		if t.log != nil {
			t.log.Warnf("aspeed: malformed request frame: %v", err)
		}
		return
	}
	t.onRequest(ctx, req)
}

// Run polls the BT register window on a fixed interval until ctx is done,
// standing in for interrupt-driven dispatch when no IRQ line is wired
// (mirroring poll_timer's 500ms fallback in the original driver).
func (t *Transport) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

// HandleInterrupt performs one poll cycle immediately, for callers wiring a
// real IRQ line instead of relying on Run's ticker.
func (t *Transport) HandleInterrupt(ctx context.Context) {
	t.poll(ctx)
}
