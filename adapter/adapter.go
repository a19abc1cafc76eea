// Package adapter defines the duplex-transport contract channel.Channel is
// built against. Concrete transports — stdio pipes, an
// in-process pipe, an HTTP request/response pairing, a Redis pub/sub
// channel — live under adapters/ and implement this contract; the core
// channel and dispatch packages never import a transport directly.
package adapter

import "context"

// DestroySentinel is the reserved frame value a peer sends to signal a
// graceful shutdown, ahead of closing the underlying transport. Adapters
// that frame messages as opaque strings (rather than already structured
// values) must never let an application-level message collide with it.
const DestroySentinel = "__DESTROY__"

// Capabilities describes what an adapter supports, so channel.Channel can
// pick a serialization and a framing strategy without asking it twice.
type Capabilities struct {
	// StructuredClone is true when values written through the adapter
	// survive intact — no serialization pass is needed, only callback
	// substitution. False means the adapter only moves text, and
	// channel.Channel must use the legacy text codec.
	StructuredClone bool

	// Bidirectional is false for adapters like the HTTP pseudo-adapter
	// where the peer cannot initiate its own requests. Channel uses this
	// only to reject outgoing calls that carry a callback argument; calls
	// without one are sent as usual.
	Bidirectional bool

	// Transfer is true when the adapter can move a typed-array-backed
	// argument by reference (transferring ownership of the underlying
	// buffer) rather than copying it onto the wire. channel.Channel does
	// not read it; it does not affect serialization mode the way
	// StructuredClone does.
	Transfer bool
}

// Frame is one unit the adapter carries: a request, response, or callback
// message already serialized to the wire form channel.Channel chose.
type Frame struct {
	Data string
}

// Adapter is the minimal duplex transport contract: write outgoing frames,
// read incoming ones, and describe what you support. Everything else
// (serialization, dispatch, callback wiring) lives above this line.
type Adapter interface {
	// Read blocks until a frame arrives, ctx is done, or the adapter is
	// destroyed. Returns ctx.Err() when ctx is done, and otherwise the
	// transport's own error (the bundled adapters return io.EOF once the
	// stream has ended or the adapter is destroyed).
	Read(ctx context.Context) (Frame, error)

	// Write sends one frame to the peer.
	Write(ctx context.Context, frame Frame) error

	// Capabilities reports what this adapter supports.
	Capabilities() Capabilities

	// Name identifies this adapter for logging and metrics labels, e.g.
	// "stdio" or "redis". Not used for any behavioral branching.
	Name() string
}

// MessageSink is implemented by adapters that deliver incoming frames via
// callback instead of (or in addition to) Read — e.g. an adapter wrapping
// an event-driven transport. channel.Channel prefers OnMessage when present.
type MessageSink interface {
	OnMessage(handler func(Frame))
}

// Destroyer is implemented by adapters that own a resource needing
// explicit teardown (a socket, a subscription) beyond what Go's garbage
// collector handles.
type Destroyer interface {
	Destroy() error
}

// DestroySignaler is implemented by adapters that can tell the channel a
// peer-initiated destroy arrived, distinct from a local Destroy() call.
type DestroySignaler interface {
	SignalDestroy(handler func())
}
