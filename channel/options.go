package channel

import (
	"log"

	"github.com/kkrpc-go/kkrpc/internal/dispatch"
	"github.com/kkrpc-go/kkrpc/internal/metrics"
)

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithExposed sets the API surface the peer can call, equivalent to
// calling Expose immediately after New.
func WithExposed(ns Namespace) Option {
	return func(c *Channel) { c.dispatcher.Expose(dispatch.Namespace(ns)) }
}

// WithSerialization overrides the serialization mode New would otherwise
// infer from the adapter's Capabilities.StructuredClone: useText forces
// the legacy text codec even over a structured-clone-capable adapter, and
// is mainly useful for tests exercising the text path against the pipe
// adapter.
func WithSerialization(useText bool) Option {
	return func(c *Channel) { c.useText = useText; c.serializationSet = true }
}

// WithMetrics attaches a Prometheus recorder; nil disables metrics (the
// default).
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Channel) { c.metrics = rec }
}

// WithLogger overrides the default logger, which writes to os.Stderr with
// the "kkrpc: " prefix and log.LstdFlags.
func WithLogger(logger *log.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}
