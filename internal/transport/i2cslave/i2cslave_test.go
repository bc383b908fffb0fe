package i2cslave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/message"
)

func writeFrame(t *Transport, ctx context.Context, frame []byte) {
	t.Callback(ctx, WriteRequested, nil)
	for _, b := range frame {
		v := b
		t.Callback(ctx, WriteReceived, &v)
	}
}

func TestTransportDeliversCompletedWriteFrame(t *testing.T) {
	var delivered message.Message
	tr := New("1-1010", nil, func(_ context.Context, req message.Message) { delivered = req })

	req, _ := message.New(0x18, 0x02, 0x05, []byte{0xAA, 0xBB})
	writeFrame(tr, context.Background(), req.Marshal())

	assert.Equal(t, req.Seq, delivered.Seq)
	assert.Equal(t, req.Cmd, delivered.Cmd)
	assert.Equal(t, req.Payload, delivered.Payload)
}

func TestTransportReadSequencePreviewsFirstByteThenAdvances(t *testing.T) {
	tr := New("1-1010", nil, nil)
	resp, _ := message.New(0x1c, 0x02, 0x05, []byte{0x00})
	require.NoError(t, tr.SendResponse(context.Background(), resp))

	wire := resp.Marshal()
	ctx := context.Background()

	var v uint8
	tr.Callback(ctx, ReadRequested, &v)
	assert.Equal(t, wire[0], v, "ReadRequested previews the first byte without advancing")

	// A second ReadRequested (e.g. a repeated START) must still preview byte 0.
	tr.Callback(ctx, ReadRequested, &v)
	assert.Equal(t, wire[0], v)

	got := []byte{v}
	for i := 1; i < len(wire); i++ {
		tr.Callback(ctx, ReadProcessed, &v)
		got = append(got, v)
	}
	assert.Equal(t, wire, got)
}

func TestTransportCompletesResponseAndReopensSlot(t *testing.T) {
	tr := New("1-1010", nil, nil)
	resp, _ := message.New(0x1c, 0x02, 0x05, nil)
	require.NoError(t, tr.SendResponse(context.Background(), resp))
	assert.False(t, tr.IsResponseOpen())

	ctx := context.Background()
	wire := resp.Marshal()
	var v uint8
	tr.Callback(ctx, ReadRequested, &v)
	for i := 1; i < len(wire); i++ {
		tr.Callback(ctx, ReadProcessed, &v)
	}
	// the last in-frame ReadProcessed already completed the response; one
	// more past the end returns the trailing zero byte
	tr.Callback(ctx, ReadProcessed, &v)

	assert.True(t, tr.IsResponseOpen())
}

func TestTransportSendResponseBusyWhileInFlight(t *testing.T) {
	tr := New("1-1010", nil, nil)
	resp, _ := message.New(0x1c, 0x02, 0x05, nil)
	require.NoError(t, tr.SendResponse(context.Background(), resp))

	err := tr.SendResponse(context.Background(), resp)
	require.Error(t, err)
	assert.True(t, bmcerr.Is(err, bmcerr.CodeBusy))
}

func TestTransportStopResetsMsgIdx(t *testing.T) {
	tr := New("1-1010", nil, nil)
	ctx := context.Background()
	tr.Callback(ctx, WriteRequested, nil)
	v := uint8(0x03)
	tr.Callback(ctx, WriteReceived, &v)
	tr.Callback(ctx, Stop, nil)
	assert.Equal(t, 0, tr.msgIdx)
}
