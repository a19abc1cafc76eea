// Package stdio adapts a pair of newline-framed byte streams — typically
// os.Stdin/os.Stdout of a child process — to the adapter.Adapter contract.
// It is the canonical byte-oriented adapter that needs the legacy text
// codec, since raw bytes carry no structured-clone guarantee.
package stdio

import (
	"context"
	"io"
	"os"

	"github.com/kkrpc-go/kkrpc/adapter"
)

// Stdio is a newline-framed duplex adapter over an arbitrary reader/writer
// pair.
type Stdio struct {
	framing *adapter.Framing
}

// New wraps r/w with newline framing.
func New(r io.Reader, w io.Writer) *Stdio {
	return &Stdio{framing: adapter.NewFraming(r, w)}
}

// NewStd wraps the process's own stdin/stdout, for a process spawned as an
// RPC peer by its parent.
func NewStd() *Stdio {
	return New(os.Stdin, os.Stdout)
}

// Read blocks until one full frame arrives or ctx is done. The underlying
// bufio read can't be interrupted mid-call, so a cancelled ctx leaves a
// goroutine blocked on the stream until the next byte (or EOF) arrives;
// acceptable since process teardown closes the stream anyway.
func (s *Stdio) Read(ctx context.Context) (adapter.Frame, error) {
	type result struct {
		frame adapter.Frame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.framing.ReadFrame()
		ch <- result{adapter.Frame{Data: line}, err}
	}()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-ctx.Done():
		return adapter.Frame{}, ctx.Err()
	}
}

// Write sends one newline-framed message.
func (s *Stdio) Write(_ context.Context, f adapter.Frame) error {
	return s.framing.WriteFrame(f.Data)
}

// Capabilities reports Stdio as a plain bidirectional byte stream: no
// structured cloning, so channel.Channel must use the legacy text codec.
func (s *Stdio) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{StructuredClone: false, Bidirectional: true}
}

// Name identifies this adapter as "stdio".
func (s *Stdio) Name() string { return "stdio" }
