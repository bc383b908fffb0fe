// Package message defines the IPMI Block Transfer wire frame and the
// completion-code table used to synthesize error responses.
package message

import (
	"fmt"
)

// PayloadMax is the largest payload a Block Transfer frame can carry.
// The wire "len" field is 8 bits and must also account for netfn_lun,
// seq and cmd (3 bytes), so len <= 255 implies payload <= 252.
const PayloadMax = 252

// SeqMax is the largest sequence number value (also used to size the
// default-device FIFO: it must hold at least this many in-flight frames).
const SeqMax = 255

// ResponseBit marks netfn_lun as carrying a response rather than a request.
// It is bit 2 of the low nibble, the lowest netfn bit just above the
// 2-bit lun.
const ResponseBit = 1 << 2

// Message is a Block Transfer IPMI frame, in wire order:
//
//	offset 0: Len        — count of bytes after this one
//	offset 1: NetFnLUN    — netfn<<2 | lun; ResponseBit marks a response
//	offset 2: Seq
//	offset 3: Cmd
//	offset 4..: Payload   (0..PayloadMax bytes)
type Message struct {
	Len      uint8
	NetFnLUN uint8
	Seq      uint8
	Cmd      uint8
	Payload  []byte
}

// New builds a Message from its header fields and payload, validating the
// payload bound. A payload longer than PayloadMax cannot be represented on
// the wire (the len field is 8 bits) and is refused rather than truncated.
func New(netFnLUN, seq, cmd uint8, payload []byte) (Message, error) {
	if len(payload) > PayloadMax {
		return Message{}, fmt.Errorf("message: payload length %d exceeds max %d", len(payload), PayloadMax)
	}
	return Message{
		Len:      PayloadToLen(uint8(len(payload))),
		NetFnLUN: netFnLUN,
		Seq:      seq,
		Cmd:      cmd,
		Payload:  payload,
	}, nil
}

// WireLen returns the total number of bytes the frame occupies on the wire,
// including the Len byte itself: WireLen == Len + 1.
func (m Message) WireLen() int {
	return int(m.Len) + 1
}

// PayloadLen returns the length of the payload implied by the frame's Len
// field: PayloadLen == Len - 3.
func (m Message) PayloadLen() int {
	return int(m.Len) - 3
}

// IsResponse reports whether the response bit is set in NetFnLUN.
func (m Message) IsResponse() bool {
	return m.NetFnLUN&ResponseBit != 0
}

// ToResponse returns a copy of m with the response bit set in NetFnLUN,
// Seq and Cmd preserved, and the given single-byte completion-code payload.
func (m Message) ToResponse(completionCode uint8) Message {
	return Message{
		Len:      PayloadToLen(1),
		NetFnLUN: m.NetFnLUN | ResponseBit,
		Seq:      m.Seq,
		Cmd:      m.Cmd,
		Payload:  []byte{completionCode},
	}
}

// PayloadToLen computes the wire Len field for a given payload length,
// clamping to PayloadMax (mirrors the kernel's bt_msg_payload_to_len,
// which WARNs and truncates rather than refusing — callers that build
// frames programmatically should prefer New, which refuses instead).
func PayloadToLen(payloadLen uint8) uint8 {
	if payloadLen > PayloadMax {
		payloadLen = PayloadMax
	}
	return payloadLen + 3
}

// Marshal serializes m to its on-wire byte representation:
// len(result) == m.WireLen().
func (m Message) Marshal() []byte {
	buf := make([]byte, m.WireLen())
	buf[0] = m.Len
	buf[1] = m.NetFnLUN
	buf[2] = m.Seq
	buf[3] = m.Cmd
	copy(buf[4:], m.Payload)
	return buf
}

// Unmarshal parses a wire frame out of data. data must be at least 4 bytes
// (the fixed header) and data[0]+1 must equal len(data) exactly — callers
// that only have a prefix of the frame should wait for the rest before
// calling Unmarshal.
func Unmarshal(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, fmt.Errorf("message: frame too short: %d bytes", len(data))
	}
	length := data[0]
	wireLen := int(length) + 1
	if wireLen != len(data) {
		return Message{}, fmt.Errorf("message: declared len %d implies %d bytes, got %d", length, wireLen, len(data))
	}
	payload := make([]byte, len(data)-4)
	copy(payload, data[4:])
	return Message{
		Len:      length,
		NetFnLUN: data[1],
		Seq:      data[2],
		Cmd:      data[3],
		Payload:  payload,
	}, nil
}
