// Package callback implements the callback lifecycle: registering local
// functions passed as call arguments so a peer can invoke them by
// identifier, and caching the local stand-ins built for identifiers the
// peer sent us, so the same remote callback never gets two distinct
// local wrappers.
package callback

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDPrefix is the reserved prefix callback identifiers carry, kept even
// on envelope transport so a legacy-text peer and a structured-clone
// peer recognize the same wire shape.
const IDPrefix = "__callback__"

// Registry tracks outgoing callbacks: local functions that were passed as
// call arguments and must be invocable by the peer using the identifier we
// handed back. One Registry belongs to one channel.
type Registry struct {
	mu  sync.Mutex
	fns map[string]func(args []any)
}

// New returns an empty outgoing-callback registry.
func New() *Registry {
	return &Registry{fns: make(map[string]func(args []any))}
}

// Register assigns a fresh identifier to fn and stores it, returning the
// identifier to place on the wire. Implements wire.CallbackRegistrar.
func (r *Registry) Register(fn func(args []any)) string {
	id := IDPrefix + uuid.NewString()
	r.mu.Lock()
	r.fns[id] = fn
	r.mu.Unlock()
	return id
}

// Invoke calls the local function registered under id with args. Returns
// ErrUnknown if id was never registered or has already been released.
func (r *Registry) Invoke(id string, args []any) error {
	r.mu.Lock()
	fn, ok := r.fns[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	fn(args)
	return nil
}

// Release drops the callback registered under id, so later Invoke calls
// for it return ErrUnknown. Meant for use once the request whose
// arguments carried id has been resolved — callers only release ids they
// collected themselves while encoding that particular request.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	delete(r.fns, id)
	r.mu.Unlock()
}

// ReleaseAll drops every callback registered under the given ids, ignoring
// ids that are not present.
func (r *Registry) ReleaseAll(ids []string) {
	if len(ids) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range ids {
		delete(r.fns, id)
	}
	r.mu.Unlock()
}

// ErrUnknown is returned by Invoke for an identifier that was never
// registered, or was already released.
var ErrUnknown = fmt.Errorf("callback: unknown or released identifier")

// SynthesisCache caches the local stand-in built for each remote callback
// identifier we've seen, so repeated sightings of the same identifier in
// separate messages produce the same Go func value rather than a fresh
// closure every time.
type SynthesisCache struct {
	mu    sync.Mutex
	funcs map[string]func(args []any)
}

// NewSynthesisCache returns an empty cache.
func NewSynthesisCache() *SynthesisCache {
	return &SynthesisCache{funcs: make(map[string]func(args []any))}
}

// GetOrCreate returns the cached stand-in for id, building one with create
// and caching it on first sight.
func (c *SynthesisCache) GetOrCreate(id string, create func() func(args []any)) func(args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.funcs[id]; ok {
		return fn
	}
	fn := create()
	c.funcs[id] = fn
	return fn
}
