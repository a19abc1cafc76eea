// Package proxy builds up a dotted property path lazily, the way
// accessing nested fields on a remote API surface would without ever
// touching the wire until something actually invokes it. Node makes that
// laziness explicit: accessing Node.Prop appends to an accumulated path
// and returns a new Node; nothing reaches the channel until Call, Get, or
// Set is invoked on the accumulated path.
package proxy

import "context"

// Caller is the channel-side hook a Node dispatches through. channel.Channel
// implements it; Node itself knows nothing about wire formats or transports.
type Caller interface {
	CallMethod(ctx context.Context, path []string, args []any) (any, error)
	GetProperty(ctx context.Context, path []string) (any, error)
	SetProperty(ctx context.Context, path []string, value any) error
}

// Node is one point along a dotted path into the peer's exposed API.
// Node values are immutable: Prop always returns a new Node, leaving the
// receiver untouched, so holding onto an intermediate Node and branching
// from it in two directions is safe.
type Node struct {
	caller Caller
	path   []string
}

// Root returns a Node positioned at the top of caller's exposed API.
func Root(caller Caller) *Node {
	return &Node{caller: caller}
}

// Prop descends into the named property, returning a new Node whose path
// is the receiver's path with name appended. This alone never touches the
// wire — it is the Go equivalent of reading proxy.a.b without calling or
// awaiting it.
func (n *Node) Prop(name string) *Node {
	path := make([]string, len(n.path)+1)
	copy(path, n.path)
	path[len(n.path)] = name
	return &Node{caller: n.caller, path: path}
}

// Path returns the accumulated dotted path as its component names.
func (n *Node) Path() []string {
	return append([]string(nil), n.path...)
}

// Call invokes the method at the accumulated path with args, blocking
// until the peer's response arrives or ctx is done.
func (n *Node) Call(ctx context.Context, args ...any) (any, error) {
	return n.caller.CallMethod(ctx, n.path, args)
}

// Get reads the property at the accumulated path.
func (n *Node) Get(ctx context.Context) (any, error) {
	return n.caller.GetProperty(ctx, n.path)
}

// Set writes value to the property at the accumulated path.
func (n *Node) Set(ctx context.Context, value any) error {
	return n.caller.SetProperty(ctx, n.path, value)
}
