package wire

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry is a minimal CallbackRegistrar/CallbackSynthesizer used to
// exercise the codecs without pulling in internal/callback.
type fakeRegistry struct {
	mu   sync.Mutex
	next int
	fns  map[string]func(args []any)
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{fns: make(map[string]func(args []any))}
}

func (f *fakeRegistry) Register(fn func(args []any)) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("__callback__%d", f.next)
	f.fns[id] = fn
	return id
}

func (f *fakeRegistry) Synthesize(id string) func(args []any) {
	return func(args []any) {
		f.mu.Lock()
		fn := f.fns[id]
		f.mu.Unlock()
		if fn != nil {
			fn(args)
		}
	}
}

func TestEncodeEnvelopeArgsSubstitutesTopLevelCallback(t *testing.T) {
	reg := newFakeRegistry()
	var invoked []any
	cb := func(args []any) { invoked = args }

	args, refs := EncodeEnvelopeArgs([]any{"hello", cb, 42}, reg)

	require.Len(t, refs, 1)
	assert.Equal(t, []string{"1"}, refs[0].Path)
	assert.Equal(t, refs[0].ID, args[1])
	assert.Equal(t, "hello", args[0])
	assert.Equal(t, 42, args[2])

	decoded := DecodeEnvelopeArgs(args, refs, reg)
	fn, ok := decoded[1].(func(args []any))
	require.True(t, ok)
	fn([]any{"ping"})
	assert.Equal(t, []any{"ping"}, invoked)
}

func TestEncodeEnvelopeResultCallback(t *testing.T) {
	reg := newFakeRegistry()
	var invoked bool
	cb := func(args []any) { invoked = true }

	wireResult, refs := EncodeEnvelopeResult(cb, reg)
	require.Len(t, refs, 1)
	assert.Equal(t, wireResult, refs[0].ID)

	decoded := DecodeEnvelopeResult(wireResult, refs, reg)
	fn, ok := decoded.(func(args []any))
	require.True(t, ok)
	fn(nil)
	assert.True(t, invoked)
}

func TestEncodeEnvelopeArgsPlainValuesPassThrough(t *testing.T) {
	reg := newFakeRegistry()
	args, refs := EncodeEnvelopeArgs([]any{1, "two", true, nil}, reg)
	assert.Empty(t, refs)
	assert.Equal(t, []any{1, "two", true, nil}, args)
}

func TestEnvelopeRoundTripPreservesMethodAndKind(t *testing.T) {
	reg := newFakeRegistry()
	env := &Envelope{
		ID:     "req-1",
		Type:   TypeRequest,
		Method: "math.add",
		Kind:   KindApply,
		Args:   []any{1.0, 2.0},
	}

	payload, err := EncodeEnvelope(env, reg)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(payload, reg)
	require.NoError(t, err)

	assert.Equal(t, "req-1", decoded.ID)
	assert.Equal(t, TypeRequest, decoded.Type)
	assert.Equal(t, "math.add", decoded.Method)
	assert.Equal(t, KindApply, decoded.Kind)
	assert.Equal(t, []any{1.0, 2.0}, decoded.Args)
}

func TestEnvelopeRoundTripDistinguishesAbsentFromNullResult(t *testing.T) {
	reg := newFakeRegistry()

	withNull := &Envelope{ID: "a", Type: TypeResponse, HasResult: true, Result: nil}
	payload, err := EncodeEnvelope(withNull, reg)
	require.NoError(t, err)
	decoded, err := DecodeEnvelope(payload, reg)
	require.NoError(t, err)
	assert.True(t, decoded.HasResult)
	assert.Nil(t, decoded.Result)

	withoutResult := &Envelope{ID: "b", Type: TypeResponse}
	payload, err = EncodeEnvelope(withoutResult, reg)
	require.NoError(t, err)
	decoded, err = DecodeEnvelope(payload, reg)
	require.NoError(t, err)
	assert.False(t, decoded.HasResult)
}
