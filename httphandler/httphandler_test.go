package httphandler

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kkrpc-go/kkrpc/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientServerRoundTrip(t *testing.T) {
	server := NewServer()
	httpSrv := httptest.NewServer(server)
	defer httpSrv.Close()

	client := NewClient(httpSrv.URL, httpSrv.Client())

	// Act as the channel on the server side: read the incoming request and
	// write back a response carrying the same id.
	go func() {
		frame, err := server.Read(context.Background())
		if err != nil {
			return
		}
		id, err := envelopeID(frame.Data)
		if err != nil {
			return
		}
		_ = server.Write(context.Background(), adapter.Frame{Data: `{"id":"` + id + `","result":42}`})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, client.Write(ctx, adapter.Frame{Data: `{"id":"req-1","method":"add"}`}))

	resp, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, resp.Data, `"result":42`)
}

func TestServerWriteWithNoWaiterErrors(t *testing.T) {
	server := NewServer()
	err := server.Write(context.Background(), adapter.Frame{Data: `{"id":"unknown"}`})
	assert.Error(t, err)
}

func TestClientWriteFailsWhenNothingDrainsTheServer(t *testing.T) {
	server := NewServer()
	httpSrv := httptest.NewServer(server)
	defer httpSrv.Close()

	// Nothing ever calls server.Read, so ServeHTTP blocks on handing the
	// frame off until the client's own timeout cancels the request.
	client := NewClient(httpSrv.URL, httpSrv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.Write(ctx, adapter.Frame{Data: `{"id":"will-never-be-read"}`})
	assert.Error(t, err)
}

func TestCapabilitiesAreNotBidirectional(t *testing.T) {
	client := NewClient("http://example.invalid", nil)
	server := NewServer()
	assert.False(t, client.Capabilities().Bidirectional)
	assert.False(t, server.Capabilities().Bidirectional)
	assert.False(t, client.Capabilities().StructuredClone)
	assert.False(t, server.Capabilities().StructuredClone)
}
