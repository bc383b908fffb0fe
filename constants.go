package ipmibmc

import (
	"github.com/ipmibmc/bmccore/internal/message"
	"github.com/ipmibmc/bmccore/internal/sink"
)

// Re-exported sizing constants for the public API.
const (
	PayloadMax       = message.PayloadMax
	SeqMax           = message.SeqMax
	DefaultFIFODepth = sink.MinCapacity
)
