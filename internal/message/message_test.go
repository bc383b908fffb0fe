package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndMarshalRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty payload", nil},
		{"small payload", []byte{0x01, 0x02, 0x03}},
		{"max payload", make([]byte, PayloadMax)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := New(0x18, 0x42, 0x01, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, len(tc.payload)+3, int(msg.Len))

			wire := msg.Marshal()
			assert.Equal(t, msg.WireLen(), len(wire))

			got, err := Unmarshal(wire)
			require.NoError(t, err)
			assert.Equal(t, msg.Len, got.Len)
			assert.Equal(t, msg.NetFnLUN, got.NetFnLUN)
			assert.Equal(t, msg.Seq, got.Seq)
			assert.Equal(t, msg.Cmd, got.Cmd)
			assert.True(t, bytes.Equal(tc.payload, got.Payload), "payload %x, got %x", tc.payload, got.Payload)
		})
	}
}

func TestNewRefusesOversizedPayload(t *testing.T) {
	_, err := New(0, 0, 0, make([]byte, PayloadMax+1))
	require.Error(t, err)
}

func TestUnmarshalRejectsShortAndMismatchedFrames(t *testing.T) {
	_, err := Unmarshal([]byte{0x01, 0x02})
	assert.Error(t, err)

	_, err = Unmarshal([]byte{0x05, 0x00, 0x00, 0x00})
	assert.Error(t, err, "declared len implies 6 bytes, got 4")
}

func TestWireLenAndPayloadLenInvariants(t *testing.T) {
	msg, err := New(0x18, 0x00, 0x01, []byte{0xAA, 0xBB})
	require.NoError(t, err)

	assert.Equal(t, int(msg.Len)+1, msg.WireLen())
	assert.Equal(t, int(msg.Len)-3, msg.PayloadLen())
	assert.Equal(t, len(msg.Payload), msg.PayloadLen())
}

func TestPayloadToLenClampsAtMax(t *testing.T) {
	assert.Equal(t, uint8(3), PayloadToLen(0))
	assert.Equal(t, uint8(255), PayloadToLen(PayloadMax))
	assert.Equal(t, uint8(255), PayloadToLen(255))
}

func TestToResponseSetsResponseBitAndPreservesSeqCmd(t *testing.T) {
	req, err := New(0x18, 0x07, 0x02, []byte{0x01})
	require.NoError(t, err)
	assert.False(t, req.IsResponse())

	resp := req.ToResponse(CompletionInvalidCommand)
	assert.True(t, resp.IsResponse())
	assert.Equal(t, req.Seq, resp.Seq)
	assert.Equal(t, req.Cmd, resp.Cmd)
	assert.Equal(t, []byte{CompletionInvalidCommand}, resp.Payload)
	assert.Equal(t, uint8(0x18|ResponseBit), resp.NetFnLUN)
}
