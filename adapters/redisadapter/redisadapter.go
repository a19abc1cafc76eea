// Package redisadapter implements a duplex adapter over two Redis pub/sub
// channels: one published to, one subscribed from. Two Adapters pointed at
// each other's channel names (A publishes X and subscribes Y; B publishes
// Y and subscribes X) form a bidirectional pair without either side ever
// holding a direct connection to the other.
package redisadapter

import (
	"context"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/kkrpc-go/kkrpc/adapter"
)

// Adapter publishes outgoing frames to publishChannel and delivers
// messages received on subscribeChannel.
type Adapter struct {
	client  *redis.Client
	publish string
	sub     *redis.PubSub
}

// New subscribes to subscribeChannel immediately and returns an Adapter
// that publishes to publishChannel.
func New(client *redis.Client, publishChannel, subscribeChannel string) *Adapter {
	return &Adapter{
		client:  client,
		publish: publishChannel,
		sub:     client.Subscribe(context.Background(), subscribeChannel),
	}
}

// Read blocks until a message arrives on the subscribed channel.
func (a *Adapter) Read(ctx context.Context) (adapter.Frame, error) {
	ch := a.sub.Channel()
	select {
	case msg, ok := <-ch:
		if !ok {
			return adapter.Frame{}, io.EOF
		}
		return adapter.Frame{Data: msg.Payload}, nil
	case <-ctx.Done():
		return adapter.Frame{}, ctx.Err()
	}
}

// Write publishes f to the configured publish channel.
func (a *Adapter) Write(ctx context.Context, f adapter.Frame) error {
	return a.client.Publish(ctx, a.publish, f.Data).Err()
}

// Capabilities reports a plain bidirectional byte-oriented transport.
func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{StructuredClone: false, Bidirectional: true}
}

// Name identifies this adapter as "redis".
func (a *Adapter) Name() string { return "redis" }

// Destroy closes the subscription.
func (a *Adapter) Destroy() error {
	return a.sub.Close()
}
