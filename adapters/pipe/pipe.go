// Package pipe implements an in-process duplex adapter: two Pipe values
// created together hand frames directly to each other over buffered Go
// channels, with no text framing involved. It is the adapter the
// channel package's own integration tests run against.
package pipe

import (
	"context"
	"io"
	"sync"

	"github.com/kkrpc-go/kkrpc/adapter"
)

// Pipe is one end of an in-process adapter pair.
type Pipe struct {
	out chan adapter.Frame
	in  chan adapter.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPair returns two Pipe values wired to each other: frames written to a
// are read from b, and vice versa.
func NewPair() (a, b *Pipe) {
	toB := make(chan adapter.Frame, 64)
	toA := make(chan adapter.Frame, 64)
	a = &Pipe{out: toB, in: toA, closed: make(chan struct{})}
	b = &Pipe{out: toA, in: toB, closed: make(chan struct{})}
	return a, b
}

// Read blocks until a frame arrives from the peer, ctx is done, or the
// pipe is closed.
func (p *Pipe) Read(ctx context.Context) (adapter.Frame, error) {
	select {
	case f, ok := <-p.in:
		if !ok {
			return adapter.Frame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return adapter.Frame{}, ctx.Err()
	case <-p.closed:
		return adapter.Frame{}, io.EOF
	}
}

// Write sends f to the peer.
func (p *Pipe) Write(ctx context.Context, f adapter.Frame) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

// Capabilities reports a Pipe as structured-clone-capable and fully
// bidirectional: it's the richest transport this module has, which is why
// the core channel tests run against it.
func (p *Pipe) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{StructuredClone: true, Bidirectional: true, Transfer: true}
}

// Name identifies this adapter as "pipe".
func (p *Pipe) Name() string { return "pipe" }

// Destroy closes this end of the pipe. Idempotent.
func (p *Pipe) Destroy() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
