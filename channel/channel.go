// Package channel implements the RPC channel core: one
// Channel owns a single duplex adapter, dispatches incoming requests
// against a locally exposed API, and turns outgoing proxy.Node calls into
// wire messages and back. Two Channels wired to opposite ends of an
// adapter pair (or to a relay) form one bidirectional RPC connection.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kkrpc-go/kkrpc/adapter"
	"github.com/kkrpc-go/kkrpc/internal/callback"
	"github.com/kkrpc-go/kkrpc/internal/dispatch"
	"github.com/kkrpc-go/kkrpc/internal/metrics"
	"github.com/kkrpc-go/kkrpc/internal/pending"
	"github.com/kkrpc-go/kkrpc/proxy"
	"github.com/kkrpc-go/kkrpc/wire"
	"github.com/kkrpc-go/kkrpc/wireerr"
)

// Namespace, HandlerFunc and CallbackFunc are re-exported from dispatch so
// callers never need to import it directly to build an exposed API tree.
type (
	Namespace    = dispatch.Namespace
	HandlerFunc  = dispatch.HandlerFunc
	CallbackFunc = dispatch.CallbackFunc
)

// Channel is one end of a bidirectional RPC connection over a single
// adapter.
type Channel struct {
	adapter adapter.Adapter

	dispatcher *dispatch.Dispatcher
	callbacks  *callback.Registry
	synthCache *callback.SynthesisCache
	pending    *pending.Table

	useText          bool
	serializationSet bool

	logger  *log.Logger
	metrics *metrics.Recorder

	writeMu sync.Mutex

	mu        sync.Mutex
	destroyed bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New constructs a Channel over adapter, starts its read loop, and applies
// opts. The serialization mode defaults to the legacy text codec unless
// the adapter reports Capabilities.StructuredClone, in which case the
// lighter envelope codec is used instead.
func New(a adapter.Adapter, opts ...Option) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		adapter:    a,
		dispatcher: dispatch.New(),
		callbacks:  callback.New(),
		synthCache: callback.NewSynthesisCache(),
		pending:    pending.New(),
		logger:     log.New(os.Stderr, "kkrpc: ", log.LstdFlags),
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, opt := range opts {
		opt(c)
	}
	if !c.serializationSet {
		c.useText = !a.Capabilities().StructuredClone
	}

	if sink, ok := a.(adapter.MessageSink); ok {
		sink.OnMessage(func(f adapter.Frame) { go c.handleFrame(f) })
	} else {
		go c.readLoop()
	}
	if signaler, ok := a.(adapter.DestroySignaler); ok {
		signaler.SignalDestroy(func() { _ = c.Destroy() })
	}

	return c
}

// Expose sets the API surface the peer can call.
func (c *Channel) Expose(ns Namespace) {
	c.dispatcher.Expose(ns)
}

// GetAPI returns the root of a lazily-built path into the peer's exposed
// API; see package proxy.
func (c *Channel) GetAPI() *proxy.Node {
	return proxy.Root(c)
}

// Destroy tears the channel down: writes the destroy sentinel (best
// effort), stops the read loop, and rejects every outstanding request with
// ErrTerminated.
func (c *Channel) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.mu.Unlock()

	_ = c.adapter.Write(context.Background(), adapter.Frame{Data: adapter.DestroySentinel})
	c.cancel()

	ids := c.pending.RejectAll()
	c.callbacks.ReleaseAll(ids)

	if d, ok := c.adapter.(adapter.Destroyer); ok {
		return d.Destroy()
	}
	return nil
}

func (c *Channel) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// --- outgoing: proxy.Caller ---

func (c *Channel) CallMethod(ctx context.Context, path []string, args []any) (any, error) {
	return c.request(ctx, wire.KindApply, strings.Join(path, "."), args)
}

func (c *Channel) GetProperty(ctx context.Context, path []string) (any, error) {
	return c.request(ctx, wire.KindGet, strings.Join(path, "."), nil)
}

func (c *Channel) SetProperty(ctx context.Context, path []string, value any) error {
	_, err := c.request(ctx, wire.KindSet, strings.Join(path, "."), []any{value})
	return err
}

func (c *Channel) request(ctx context.Context, kind wire.RequestKind, method string, args []any) (any, error) {
	if c.isDestroyed() {
		return nil, ErrTerminated
	}
	if !c.adapter.Capabilities().Bidirectional && hasCallbackArg(args) {
		return nil, fmt.Errorf("channel: callback arguments are not supported over a non-bidirectional adapter")
	}

	env := &wire.Envelope{
		ID:     uuid.NewString(),
		Type:   wire.TypeRequest,
		Method: method,
		Kind:   kind,
		Args:   args,
	}

	start := time.Now()
	payload, ids, err := c.encode(env)
	if err != nil {
		return nil, err
	}

	resultCh := c.pending.Register(env.ID, ids)
	if c.metrics != nil {
		c.metrics.RequestSent(string(kind))
	}

	if err := c.write(ctx, payload); err != nil {
		c.callbacks.ReleaseAll(ids)
		return nil, err
	}

	select {
	case res := <-resultCh:
		if c.metrics != nil {
			c.metrics.ObserveRequestDuration(method, time.Since(start).Seconds())
		}
		if errors.Is(res.Err, pending.ErrTerminated) {
			return res.Value, ErrTerminated
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrTerminated
	}
}

// --- incoming: wire.CallbackSynthesizer ---

// Synthesize returns the local stand-in for a callback identifier the
// peer sent us: calling it sends a callback message carrying id and args
// back over the channel. Repeated calls for the same id return the same
// func value (internal/callback.SynthesisCache).
func (c *Channel) Synthesize(id string) func(args []any) {
	return c.synthCache.GetOrCreate(id, func() func(args []any) {
		return func(args []any) {
			env := &wire.Envelope{
				ID:         uuid.NewString(),
				Type:       wire.TypeCallback,
				CallbackID: id,
				Args:       args,
			}
			payload, _, err := c.encode(env)
			if err != nil {
				c.logger.Printf("encode callback %s: %v", id, err)
				return
			}
			if err := c.write(c.ctx, payload); err != nil {
				c.logger.Printf("write callback %s: %v", id, err)
			}
		}
	})
}

// --- read loop ---

func (c *Channel) readLoop() {
	for {
		frame, err := c.adapter.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Printf("adapter %s read: %v", c.adapter.Name(), err)
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Channel) handleFrame(frame adapter.Frame) {
	if frame.Data == adapter.DestroySentinel {
		_ = c.Destroy()
		return
	}

	env, err := c.decode(frame.Data)
	if err != nil {
		c.logger.Printf("decode message: %v", err)
		return
	}

	switch env.Type {
	case wire.TypeRequest:
		go c.handleRequest(env)
	case wire.TypeResponse:
		c.handleResponse(env)
	case wire.TypeCallback:
		go c.handleCallback(env)
	default:
		c.logger.Printf("unrecognized message type %q", env.Type)
	}
}

func (c *Channel) handleRequest(env *wire.Envelope) {
	if c.metrics != nil {
		c.metrics.RequestReceived(string(env.Kind))
	}

	var setValue any
	if env.Kind == wire.KindSet && len(env.Args) > 0 {
		setValue = env.Args[0]
	}

	result, err := c.dispatcher.Execute(env.Kind, env.Method, env.Args, setValue)

	resp := &wire.Envelope{
		ID:        env.ID,
		Type:      wire.TypeResponse,
		HasResult: err == nil,
		Result:    result,
	}
	if err != nil {
		resp.Error = wireerr.Encode(err)
		if c.metrics != nil {
			c.metrics.ResponseError()
		}
	} else if c.metrics != nil {
		c.metrics.ResponseOK()
	}

	payload, _, encErr := c.encode(resp)
	if encErr != nil {
		c.logger.Printf("encode response %s: %v", env.ID, encErr)
		return
	}
	if err := c.write(c.ctx, payload); err != nil {
		c.logger.Printf("write response %s: %v", env.ID, err)
	}
}

func (c *Channel) handleResponse(env *wire.Envelope) {
	var value any
	var err error
	if env.Error != nil {
		err = wireerr.Decode(env.Error)
	} else {
		value = env.Result
	}
	ids, ok := c.pending.Resolve(env.ID, value, err)
	if !ok {
		c.logger.Printf("response for unknown request %s", env.ID)
		return
	}
	c.callbacks.ReleaseAll(ids)
}

func (c *Channel) handleCallback(env *wire.Envelope) {
	if c.metrics != nil {
		c.metrics.CallbackInvoked()
	}
	if err := c.callbacks.Invoke(env.CallbackID, env.Args); err != nil {
		c.logger.Printf("invoke callback %s: %v", env.CallbackID, err)
	}
}

// --- serialization plumbing ---

// trackingRegistrar wraps the channel's outgoing-callback registry to
// collect the identifiers newly registered while encoding one message, so
// they can be released together once that message's response arrives.
type trackingRegistrar struct {
	inner *callback.Registry
	ids   []string
}

func (t *trackingRegistrar) Register(fn func(args []any)) string {
	id := t.inner.Register(fn)
	t.ids = append(t.ids, id)
	return id
}

func (c *Channel) encode(env *wire.Envelope) (string, []string, error) {
	reg := &trackingRegistrar{inner: c.callbacks}
	var payload string
	var err error
	if c.useText {
		payload, err = wire.EncodeText(env, reg)
	} else {
		payload, err = wire.EncodeEnvelope(env, reg)
	}
	if err != nil {
		return "", nil, err
	}
	return payload, reg.ids, nil
}

func (c *Channel) decode(data string) (*wire.Envelope, error) {
	if c.useText {
		return wire.DecodeText(data, c)
	}
	return wire.DecodeEnvelope(data, c)
}

func hasCallbackArg(args []any) bool {
	for _, a := range args {
		rv := reflect.ValueOf(a)
		if rv.IsValid() && rv.Kind() == reflect.Func {
			return true
		}
	}
	return false
}

func (c *Channel) write(ctx context.Context, payload string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.adapter.Write(ctx, adapter.Frame{Data: payload}); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}
