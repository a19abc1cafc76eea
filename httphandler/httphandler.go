// Package httphandler implements an HTTP pseudo-adapter: a client adapter
// that posts a request and waits for its matching HTTP response, paired
// with a server adapter that queues incoming HTTP
// requests and resolves each one when the channel writes the matching
// response envelope. Neither side is a Channel itself — they are plain
// adapter.Adapter implementations that adapters/httpadapter wires into a
// chi route.
package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kkrpc-go/kkrpc/adapter"
)

// envelopeID peeks at the "id" field of a wire message without fully
// decoding it, since the client/server adapters only need to correlate
// requests and responses, not interpret them.
func envelopeID(data string) (string, error) {
	var peek struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(data), &peek); err != nil {
		return "", fmt.Errorf("httphandler: malformed message: %w", err)
	}
	return peek.ID, nil
}

// ClientAdapter is the requester side: Write performs one HTTP round trip,
// and the matching response is what a subsequent Read returns. Calls must
// alternate Write/Read in lockstep — this adapter models a single
// outstanding request. channel.Channel holds its write lock for the whole
// of Write, so its HTTP round trips run one at a time even when several
// calls are issued concurrently.
type ClientAdapter struct {
	endpoint string
	client   *http.Client

	responses chan adapter.Frame
}

// NewClient builds a ClientAdapter posting to endpoint via client (or
// http.DefaultClient if nil).
func NewClient(endpoint string, client *http.Client) *ClientAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &ClientAdapter{endpoint: endpoint, client: client, responses: make(chan adapter.Frame, 1)}
}

func (c *ClientAdapter) Write(ctx context.Context, f adapter.Frame) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(f.Data))
	if err != nil {
		return fmt.Errorf("httphandler: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("httphandler: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httphandler: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("httphandler: peer returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	select {
	case c.responses <- adapter.Frame{Data: string(body)}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ClientAdapter) Read(ctx context.Context) (adapter.Frame, error) {
	select {
	case f := <-c.responses:
		return f, nil
	case <-ctx.Done():
		return adapter.Frame{}, ctx.Err()
	}
}

// Capabilities reports the HTTP pseudo-adapter as one-directional: the
// server side can never initiate a call, so callback arguments (which
// would require exactly that) are rejected by channel.Channel.
func (c *ClientAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{StructuredClone: false, Bidirectional: false}
}

// Name identifies this adapter as "http-client".
func (c *ClientAdapter) Name() string { return "http-client" }

// ServerAdapter is the responder side: its ServeHTTP queues each incoming
// request for the channel to Read, blocks the HTTP request open, and
// completes it once the channel Writes the matching response.
type ServerAdapter struct {
	incoming chan adapter.Frame

	mu      sync.Mutex
	waiters map[string]chan adapter.Frame
}

// NewServer returns a ServerAdapter ready to be mounted as an
// http.Handler and passed to channel.New.
func NewServer() *ServerAdapter {
	return &ServerAdapter{
		incoming: make(chan adapter.Frame),
		waiters:  make(map[string]chan adapter.Frame),
	}
}

// ServeHTTP implements http.Handler.
func (s *ServerAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	id, err := envelopeID(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	waiter := make(chan adapter.Frame, 1)
	s.mu.Lock()
	s.waiters[id] = waiter
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.waiters, id)
		s.mu.Unlock()
	}()

	select {
	case s.incoming <- adapter.Frame{Data: string(body)}:
	case <-r.Context().Done():
		return
	}

	select {
	case resp := <-waiter:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp.Data))
	case <-r.Context().Done():
	}
}

func (s *ServerAdapter) Read(ctx context.Context) (adapter.Frame, error) {
	select {
	case f := <-s.incoming:
		return f, nil
	case <-ctx.Done():
		return adapter.Frame{}, ctx.Err()
	}
}

func (s *ServerAdapter) Write(ctx context.Context, f adapter.Frame) error {
	id, err := envelopeID(f.Data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	waiter, ok := s.waiters[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("httphandler: no HTTP request is waiting for response %q", id)
	}
	select {
	case waiter <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capabilities mirrors ClientAdapter's: one-directional, no callbacks.
func (s *ServerAdapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{StructuredClone: false, Bidirectional: false}
}

// Name identifies this adapter as "http-server".
func (s *ServerAdapter) Name() string { return "http-server" }
