package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkrpc-go/kkrpc/adapters/pipe"
	"github.com/kkrpc-go/kkrpc/wireerr"
)

func newChannelPair(t *testing.T, serverNS Namespace, opts ...Option) (server, client *Channel) {
	t.Helper()
	a, b := pipe.NewPair()
	server = New(a, opts...)
	client = New(b, opts...)
	server.Expose(serverNS)
	t.Cleanup(func() {
		_ = server.Destroy()
		_ = client.Destroy()
	})
	return server, client
}

func TestCallSimpleMethod(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"add": HandlerFunc(func(args []any) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := client.GetAPI().Prop("add").Call(ctx, 2.0, 3.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestCallNestedMethod(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"math": Namespace{
			"ops": Namespace{
				"mul": HandlerFunc(func(args []any) (any, error) {
					return args[0].(float64) * args[1].(float64), nil
				}),
			},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := client.GetAPI().Prop("math").Prop("ops").Prop("mul").Call(ctx, 4.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, result)
}

func TestCallWithCallbackArgument(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"forEach": HandlerFunc(func(args []any) (any, error) {
			cb, ok := args[1].(func(args []any))
			if !ok {
				return nil, errors.New("second arg is not a callback")
			}
			items := args[0].([]any)
			for i, item := range items {
				cb([]any{item, float64(i)})
			}
			return nil, nil
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Each callback invocation arrives as its own message handled on its own
	// goroutine, independent of the goroutine that will later resolve the
	// call's response, so neither order nor delivery-before-return is
	// guaranteed: wait for all three rather than asserting on Call's return.
	var mu sync.Mutex
	var seen []any
	done := make(chan struct{})
	cb := func(args []any) {
		mu.Lock()
		seen = append(seen, args[0])
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	}

	_, err := client.GetAPI().Prop("forEach").Call(ctx, []any{"a", "b", "c"}, cb)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all callback invocations to arrive")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []any{"a", "b", "c"}, seen)
}

func TestCallReturningErrorWithExtraFields(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"validate": HandlerFunc(func(args []any) (any, error) {
			return nil, &wireerr.CodedError{
				ErrName: "ValidationError",
				Msg:     "email is required",
				Fields:  map[string]any{"field": "email"},
			}
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.GetAPI().Prop("validate").Call(ctx)
	require.Error(t, err)

	var remote *wireerr.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "ValidationError", remote.Name())
	field, ok := remote.Field("field")
	require.True(t, ok)
	assert.Equal(t, "email", field)
}

func TestCallRoundTripsTypedArray(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"doubled": HandlerFunc(func(args []any) (any, error) {
			in := args[0].([]uint16)
			out := make([]uint16, len(in))
			for i, v := range in {
				out[i] = v * 2
			}
			return out, nil
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := client.GetAPI().Prop("doubled").Call(ctx, []uint16{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint16{2, 4, 6}, result)
}

func TestGetAndSetProperty(t *testing.T) {
	_, client := newChannelPair(t, Namespace{
		"version": "1.0.0",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := client.GetAPI().Prop("version").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)

	require.NoError(t, client.GetAPI().Prop("version").Set(ctx, "2.0.0"))

	v, err = client.GetAPI().Prop("version").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)
}

func TestBidirectionalCalls(t *testing.T) {
	server, client := newChannelPair(t, Namespace{
		"ping": HandlerFunc(func(args []any) (any, error) { return "pong", nil }),
	})
	client.Expose(Namespace{
		"ping": HandlerFunc(func(args []any) (any, error) { return "pong-from-client", nil }),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fromClient, err := client.GetAPI().Prop("ping").Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", fromClient)

	fromServer, err := server.GetAPI().Prop("ping").Call(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong-from-client", fromServer)
}

func TestDestroyRejectsOutstandingRequests(t *testing.T) {
	a, b := pipe.NewPair()
	server := New(a)
	client := New(b)
	server.Expose(Namespace{
		"hang": HandlerFunc(func(args []any) (any, error) {
			select {} // never returns; request stays outstanding until destroy
		}),
	})
	defer func() {
		_ = server.Destroy()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		_, err := client.GetAPI().Prop("hang").Call(ctx)
		resultCh <- err
	}()

	// Give the request time to land before destroying the client side.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Destroy())

	select {
	case err := <-resultCh:
		assert.True(t, errors.Is(err, ErrTerminated))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for destroyed channel to reject the outstanding call")
	}
}

func TestCallAfterDestroyReturnsErrTerminated(t *testing.T) {
	a, _ := pipe.NewPair()
	client := New(a)
	require.NoError(t, client.Destroy())

	_, err := client.GetAPI().Prop("anything").Call(context.Background())
	assert.True(t, errors.Is(err, ErrTerminated))
}
