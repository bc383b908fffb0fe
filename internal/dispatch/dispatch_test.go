package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/message"
	"github.com/ipmibmc/bmccore/internal/registry"
)

type recordingHandler struct {
	accepts     func(message.Message) bool
	handleErr   error
	handled     []message.Message
	signalCount int
}

func (h *recordingHandler) Match(req message.Message) bool { return h.accepts(req) }
func (h *recordingHandler) Handle(_ context.Context, req message.Message) error {
	h.handled = append(h.handled, req)
	return h.handleErr
}
func (h *recordingHandler) SignalResponseOpen() { h.signalCount++ }

type recordingTransport struct {
	sent    []message.Message
	sendErr error
	open    bool
}

func (t *recordingTransport) SendResponse(_ context.Context, resp message.Message) error {
	t.sent = append(t.sent, resp)
	return t.sendErr
}
func (t *recordingTransport) IsResponseOpen() bool { return t.open }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func newTestDispatcher(t *testing.T) (*Dispatcher, *registry.HandlerRegistry, *registry.TransportSlot, *recordingTransport) {
	t.Helper()
	hr := registry.NewHandlerRegistry()
	ts := registry.NewTransportSlot()
	tr := &recordingTransport{open: true}
	require.NoError(t, ts.Bind(tr))
	return New(hr, ts, nopLogger{}, nil), hr, ts, tr
}

func TestDispatchFirstMatchWins(t *testing.T) {
	d, hr, _, _ := newTestDispatcher(t)

	first := &recordingHandler{accepts: func(message.Message) bool { return true }}
	second := &recordingHandler{accepts: func(message.Message) bool { return true }}
	require.NoError(t, hr.Register(first))
	require.NoError(t, hr.Register(second))

	req, _ := message.New(0x18, 0x01, 0x02, nil)
	d.Dispatch(context.Background(), req)

	assert.Len(t, first.handled, 1)
	assert.Len(t, second.handled, 0)
}

func TestDispatchFallsBackToDefaultOnNoMatch(t *testing.T) {
	d, hr, _, _ := newTestDispatcher(t)

	never := &recordingHandler{accepts: func(message.Message) bool { return false }}
	def := &recordingHandler{accepts: func(message.Message) bool { return false }}
	require.NoError(t, hr.Register(never))
	require.NoError(t, hr.RegisterDefault(def))

	req, _ := message.New(0x18, 0x01, 0x02, nil)
	d.Dispatch(context.Background(), req)

	assert.Len(t, never.handled, 0)
	assert.Len(t, def.handled, 1)
}

func TestDispatchSynthesizesErrorWhenNothingMatches(t *testing.T) {
	d, _, _, tr := newTestDispatcher(t)

	req, _ := message.New(0x18, 0x05, 0x09, nil)
	d.Dispatch(context.Background(), req)

	require.Len(t, tr.sent, 1)
	resp := tr.sent[0]
	assert.True(t, resp.IsResponse())
	assert.Equal(t, req.Seq, resp.Seq)
	assert.Equal(t, []byte{message.CompletionUnspecified}, resp.Payload)
}

func TestDispatchSynthesizesErrorOnHandlerFailureWithoutFallback(t *testing.T) {
	d, hr, _, tr := newTestDispatcher(t)

	failing := &recordingHandler{
		accepts:   func(message.Message) bool { return true },
		handleErr: bmcerr.New("test", bmcerr.CodeInvalid, "bad command"),
	}
	def := &recordingHandler{accepts: func(message.Message) bool { return true }}
	require.NoError(t, hr.Register(failing))
	require.NoError(t, hr.RegisterDefault(def))

	req, _ := message.New(0x18, 0x05, 0x09, nil)
	d.Dispatch(context.Background(), req)

	assert.Len(t, failing.handled, 1)
	assert.Len(t, def.handled, 0, "default must not be tried after a matched handler fails")
	require.Len(t, tr.sent, 1)
	assert.Equal(t, []byte{message.CompletionInvalidCommand}, tr.sent[0].Payload)
}

func TestFanOutResponseOpenNotifiesHandlersThenDefault(t *testing.T) {
	d, hr, _, _ := newTestDispatcher(t)

	a := &recordingHandler{accepts: func(message.Message) bool { return false }}
	b := &recordingHandler{accepts: func(message.Message) bool { return false }}
	def := &recordingHandler{accepts: func(message.Message) bool { return false }}
	require.NoError(t, hr.Register(a))
	require.NoError(t, hr.Register(b))
	require.NoError(t, hr.RegisterDefault(def))

	d.FanOutResponseOpen()

	assert.Equal(t, 1, a.signalCount)
	assert.Equal(t, 1, b.signalCount)
	assert.Equal(t, 1, def.signalCount)
}

func TestCompletionCodeForMapsKnownCodes(t *testing.T) {
	assert.Equal(t, message.CompletionNodeBusy, CompletionCodeFor(bmcerr.New("", bmcerr.CodeBusy, "")))
	assert.Equal(t, message.CompletionInvalidCommand, CompletionCodeFor(bmcerr.New("", bmcerr.CodeInvalid, "")))
	assert.Equal(t, message.CompletionTimeout, CompletionCodeFor(bmcerr.New("", bmcerr.CodeTimeout, "")))
	assert.Equal(t, message.CompletionOutOfSpace, CompletionCodeFor(bmcerr.New("", bmcerr.CodeOutOfMemory, "")))
	assert.Equal(t, message.CompletionUnspecified, CompletionCodeFor(bmcerr.New("", bmcerr.CodeNoDevice, "")))
	assert.Equal(t, message.CompletionUnspecified, CompletionCodeFor(nil))
}
