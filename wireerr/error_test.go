package wireerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePlainError(t *testing.T) {
	rec := Encode(errors.New("boom"))
	require.NotNil(t, rec)
	assert.Equal(t, "Error", rec.Name)
	assert.Equal(t, "boom", rec.Message)
	assert.Nil(t, rec.Cause)
}

func TestEncodeCodedErrorWithCause(t *testing.T) {
	cause := &CodedError{ErrName: "ConnectionError", Msg: "socket closed"}
	top := &CodedError{
		ErrName: "RequestFailed",
		Msg:     "could not complete request",
		Cause:   cause,
		Fields:  map[string]any{"code": "E_CONN", "retryable": true},
	}

	rec := Encode(top)
	require.NotNil(t, rec)
	assert.Equal(t, "RequestFailed", rec.Name)
	assert.Equal(t, "could not complete request", rec.Message)
	assert.Equal(t, "E_CONN", rec.Extra["code"])
	require.NotNil(t, rec.Cause)
	assert.Equal(t, "ConnectionError", rec.Cause.Name)
}

func TestDecodeRoundTrip(t *testing.T) {
	rec := &Record{
		Name:    "ValidationError",
		Message: "field is required",
		Extra:   map[string]any{"field": "email"},
	}

	remote := Decode(rec)
	require.NotNil(t, remote)
	assert.Equal(t, "ValidationError: field is required", remote.Error())
	assert.Equal(t, "ValidationError", remote.Name())

	field, ok := remote.Field("field")
	assert.True(t, ok)
	assert.Equal(t, "email", field)
}

func TestDecodeNilRecord(t *testing.T) {
	assert.Nil(t, Decode(nil))
}

func TestDecodeDefaultsNameToError(t *testing.T) {
	remote := Decode(&Record{Message: "plain failure"})
	assert.Equal(t, "plain failure", remote.Error())
	assert.Equal(t, "Error", remote.Name())
}

func TestRemoteErrorUnwrap(t *testing.T) {
	rec := &Record{
		Name:    "Outer",
		Message: "wrapping",
		Cause:   &Record{Name: "Inner", Message: "root cause"},
	}
	remote := Decode(rec)

	var inner *RemoteError
	require.True(t, errors.As(errors.Unwrap(remote), &inner))
	assert.Equal(t, "Inner", inner.Name())
}
