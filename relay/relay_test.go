package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkrpc-go/kkrpc/adapter"
	"github.com/kkrpc-go/kkrpc/adapters/pipe"
)

func TestRelayForwardsBothDirections(t *testing.T) {
	left, leftPeer := pipe.NewPair()
	right, rightPeer := pipe.NewPair()

	r := New(left, right)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, leftPeer.Write(ctx, adapter.Frame{Data: "left-to-right"}))
	frame, err := rightPeer.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "left-to-right", frame.Data)

	require.NoError(t, rightPeer.Write(ctx, adapter.Frame{Data: "right-to-left"}))
	frame, err = leftPeer.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "right-to-left", frame.Data)
}

func TestCloseStopsForwarding(t *testing.T) {
	left, leftPeer := pipe.NewPair()
	right, rightPeer := pipe.NewPair()

	r := New(left, right)
	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, leftPeer.Write(ctx, adapter.Frame{Data: "dropped"}))

	_, err := rightPeer.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
