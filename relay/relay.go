// Package relay wires two adapters together transparently, forwarding
// every frame from one side to the other without understanding the
// messages it carries. This is how a process that only bridges transports
// — e.g. stdio on one side, a message broker on the other — can sit
// between two Channels without being a Channel itself.
package relay

import (
	"context"

	"github.com/kkrpc-go/kkrpc/adapter"
)

// Relay forwards frames bidirectionally between two adapters until Close
// is called.
type Relay struct {
	cancel context.CancelFunc
}

// New starts relaying between a and b and returns immediately; forwarding
// happens in the background (via each adapter's OnMessage hook where
// available, or a dedicated read loop otherwise).
func New(a, b adapter.Adapter) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{cancel: cancel}
	forwardFrames(ctx, a, b)
	forwardFrames(ctx, b, a)
	return r
}

// Close stops forwarding in both directions.
func (r *Relay) Close() {
	r.cancel()
}

func forwardFrames(ctx context.Context, src, dst adapter.Adapter) {
	forward := func(f adapter.Frame) {
		if ctx.Err() != nil {
			return
		}
		_ = dst.Write(ctx, f)
	}

	if sink, ok := src.(adapter.MessageSink); ok {
		sink.OnMessage(forward)
		return
	}

	go func() {
		for {
			f, err := src.Read(ctx)
			if err != nil {
				return
			}
			forward(f)
		}
	}()
}
