package pending

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolve(t *testing.T) {
	tbl := New()
	ch := tbl.Register("req-1", []string{"__callback__1"})
	assert.Equal(t, 1, tbl.Len())

	ids, ok := tbl.Resolve("req-1", "result", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"__callback__1"}, ids)

	select {
	case res := <-ch:
		assert.Equal(t, "result", res.Value)
		assert.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
	assert.Equal(t, 0, tbl.Len())
}

func TestResolveUnknownIDReturnsFalse(t *testing.T) {
	tbl := New()
	ids, ok := tbl.Resolve("missing", nil, nil)
	assert.False(t, ok)
	assert.Nil(t, ids)
}

func TestResolveWithError(t *testing.T) {
	tbl := New()
	ch := tbl.Register("req-1", nil)
	wantErr := errors.New("remote failed")

	_, ok := tbl.Resolve("req-1", nil, wantErr)
	require.True(t, ok)

	res := <-ch
	assert.Equal(t, wantErr, res.Err)
}

func TestRejectAllTerminatesPendingEntries(t *testing.T) {
	tbl := New()
	chA := tbl.Register("a", []string{"__callback__1"})
	chB := tbl.Register("b", []string{"__callback__2", "__callback__3"})

	ids := tbl.RejectAll()
	assert.ElementsMatch(t, []string{"__callback__1", "__callback__2", "__callback__3"}, ids)

	resA := <-chA
	assert.True(t, errors.Is(resA.Err, ErrTerminated))
	resB := <-chB
	assert.True(t, errors.Is(resB.Err, ErrTerminated))

	assert.Equal(t, 0, tbl.Len())
}

func TestRejectAllOnEmptyTableReturnsNoIDs(t *testing.T) {
	tbl := New()
	assert.Empty(t, tbl.RejectAll())
}
