package message

// Completion codes the Error Synthesiser maps internal failure kinds to.
// Values match the IPMI spec's generic completion code assignments.
const (
	CompletionNodeBusy       uint8 = 0xC0
	CompletionInvalidCommand uint8 = 0xC1
	CompletionTimeout        uint8 = 0xC3
	CompletionOutOfSpace     uint8 = 0xC4
	CompletionUnspecified    uint8 = 0xFF
)
