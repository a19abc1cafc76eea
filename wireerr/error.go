// Package wireerr implements the error codec: serializing thrown Go errors
// to a tagged record that survives the wire, and reconstructing an
// error-like value from that record on the receiving peer.
package wireerr

import (
	"errors"
	"fmt"
)

// Record is the wire shape of a serialized error: name, message, stack,
// cause (recursively encoded) and a bag of extra fields that mirrors the
// "own enumerable own-properties" an application attached to the error
// (e.g. `err.code = "E_BAD"` in the JS original).
type Record struct {
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Stack   string         `json:"stack,omitempty"`
	Cause   *Record        `json:"cause,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// ExtraFielder is implemented by application error types that want their
// own exported data to travel as Extra, the way a JS Error subclass's own
// properties travel automatically. Go has no reflection-free equivalent of
// "enumerate my own properties", so this is the explicit opt-in.
type ExtraFielder interface {
	ExtraFields() map[string]any
}

// Stacker lets an error type supply its own stack trace text.
type Stacker interface {
	Stack() string
}

// Named lets an error type override the reported "name", the way setting
// `err.name = "X"` does in JS. Without it, Name defaults to "Error".
type Named interface {
	ErrorName() string
}

// Encode walks err and its cause chain, producing a wire record. A plain
// error becomes {name: "Error", message: err.Error()}; richer error
// types opt in to Name/Stack/Extra via the interfaces above.
func Encode(err error) *Record {
	if err == nil {
		return nil
	}

	rec := &Record{
		Name:    "Error",
		Message: err.Error(),
	}

	if n, ok := err.(Named); ok {
		rec.Name = n.ErrorName()
	}
	// CodedError's Error() prefixes its name; the record carries them apart.
	if c, ok := err.(*CodedError); ok {
		rec.Message = c.Msg
	}
	if s, ok := err.(Stacker); ok {
		rec.Stack = s.Stack()
	}
	if x, ok := err.(ExtraFielder); ok {
		rec.Extra = x.ExtraFields()
	}

	if cause := errors.Unwrap(err); cause != nil {
		rec.Cause = Encode(cause)
	}

	return rec
}

// RemoteError is what a caller observes when the peer's handler threw or
// rejected: name/message/stack/cause/extra reconstructed from the Record,
// exactly as the peer sent them.
type RemoteError struct {
	name    string
	message string
	stack   string
	cause   error
	extra   map[string]any
}

// Decode reconstructs a *RemoteError from a wire Record. Returns nil for a
// nil record (no error occurred).
func Decode(rec *Record) *RemoteError {
	if rec == nil {
		return nil
	}
	re := &RemoteError{
		name:    rec.Name,
		message: rec.Message,
		stack:   rec.Stack,
		extra:   rec.Extra,
	}
	if rec.Cause != nil {
		re.cause = Decode(rec.Cause)
	}
	if re.name == "" {
		re.name = "Error"
	}
	return re
}

// Error implements the error interface. Its text mirrors how the peer's
// error would print, "name: message", the conventional Go error string
// shape produced by chained fmt.Errorf wrapping; when the name is "Error"
// or empty, only the message is returned.
func (e *RemoteError) Error() string {
	if e.name == "" || e.name == "Error" {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.name, e.message)
}

// Unwrap exposes the reconstructed cause chain to errors.Is/errors.As.
func (e *RemoteError) Unwrap() error { return e.cause }

// Name returns the peer's reported error name (defaults to "Error").
func (e *RemoteError) Name() string { return e.name }

// Stack returns the peer's reported stack trace, if any was sent.
func (e *RemoteError) Stack() string { return e.stack }

// Extra returns the peer's own enumerable properties (e.g. `code`).
func (e *RemoteError) Extra() map[string]any {
	if e.extra == nil {
		return nil
	}
	cp := make(map[string]any, len(e.extra))
	for k, v := range e.extra {
		cp[k] = v
	}
	return cp
}

// Field is a convenience accessor over Extra, covering the common
// scenario.4 case of a single ad hoc property such as `code`.
func (e *RemoteError) Field(name string) (any, bool) {
	if e.extra == nil {
		return nil, false
	}
	v, ok := e.extra[name]
	return v, ok
}

// CodedError is a ready-made ExtraFielder/Named error type for application
// code that wants to throw an error carrying extra fields without writing
// its own type, mirroring `const e = new Error(...); e.code = "E_BAD"`.
type CodedError struct {
	ErrName string
	Msg     string
	Cause   error
	Fields  map[string]any
}

func (e *CodedError) Error() string {
	if e.ErrName == "" || e.ErrName == "Error" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.ErrName, e.Msg)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func (e *CodedError) ErrorName() string {
	if e.ErrName == "" {
		return "Error"
	}
	return e.ErrName
}

func (e *CodedError) ExtraFields() map[string]any { return e.Fields }
