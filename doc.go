// Package ipmibmc is the public API of the BMC Core: a request router and
// response arbiter for the IPMI Block Transfer protocol.
//
// A Core binds one Transport (the host-facing wire, e.g. an Aspeed BT
// register window or an I2C slave) to an ordered set of Handlers. Inbound
// requests are routed to the first Handler whose Match accepts them, or to
// a default handler if none do; outbound responses are serialized through
// the bound Transport one at a time. See internal/dispatch, internal/sink
// and internal/registry for the implementation of routing, the
// default-device FIFO, and the RCU-style handler/transport registries.
package ipmibmc
