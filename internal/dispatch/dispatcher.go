package dispatch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kkrpc-go/kkrpc/wire"
)

// Dispatcher owns the exposed Namespace for one channel and executes
// incoming requests against it. Callers (channel.Channel) spawn Execute on
// its own goroutine per request, so a slow handler never blocks other
// traffic on the same channel.
type Dispatcher struct {
	mu      sync.RWMutex
	exposed Namespace
}

// New returns a Dispatcher with nothing exposed yet.
func New() *Dispatcher {
	return &Dispatcher{exposed: Namespace{}}
}

// Expose replaces the exposed API tree wholesale. Safe to call after
// requests have already started arriving.
func (d *Dispatcher) Expose(ns Namespace) {
	d.mu.Lock()
	d.exposed = ns
	d.mu.Unlock()
}

// Exposed returns the current exposed API tree.
func (d *Dispatcher) Exposed() Namespace {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.exposed
}

// Execute resolves and runs one already-decoded incoming request. A panic
// inside a handler is recovered and reported as an error response rather
// than crashing the goroutine the request runs on.
func (d *Dispatcher) Execute(kind wire.RequestKind, method string, args []any, setValue any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: handler for %q panicked: %v", method, r)
		}
	}()

	path := strings.Split(method, ".")
	exposed := d.Exposed()

	switch kind {
	case wire.KindApply:
		return Apply(exposed, path, args)
	case wire.KindGet:
		return Get(exposed, path)
	case wire.KindSet:
		return nil, Set(exposed, path, setValue)
	default:
		return nil, fmt.Errorf("%w: unrecognized request kind %q", ErrProtocol, kind)
	}
}
