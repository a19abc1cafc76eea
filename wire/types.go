// Package wire implements the RPC channel's serialization codec: the
// structured version-2 envelope, the legacy newline-terminated text form,
// and the value graph each one carries (Date, Map, Set, BigInt, undefined,
// typed arrays, and callback placeholders).
package wire

import "github.com/kkrpc-go/kkrpc/wireerr"

// MessageType is the top-level discriminator for a parsed message.
type MessageType string

const (
	TypeRequest  MessageType = "request"
	TypeResponse MessageType = "response"
	TypeCallback MessageType = "callback"
)

// RequestKind distinguishes the three request shapes: invoking a method,
// reading a property, and writing one.
type RequestKind string

const (
	KindApply RequestKind = "apply"
	KindGet   RequestKind = "get"
	KindSet   RequestKind = "set"
)

// CallbackRef is one entry of the envelope's `callbacks` sidecar: the path
// (from the envelope root, through "args" or "result") at which a callback
// identifier sits, and the identifier itself.
type CallbackRef struct {
	Path []string `json:"path"`
	ID   string   `json:"id"`
}

// Envelope is the canonical, in-memory, wire-format-agnostic
// representation of one message. Both the version-2 envelope and the
// legacy text frame decode into this same shape, and both are produced
// from it — the framed text form and the wire envelope are just two
// serializations of one Envelope value.
type Envelope struct {
	Version int         `json:"version"`
	ID      string      `json:"id"`
	Type    MessageType `json:"type"`

	// Request fields.
	Method string      `json:"method,omitempty"`
	Kind   RequestKind `json:"kind,omitempty"`
	Args   []any       `json:"args,omitempty"`

	// Response fields. HasResult distinguishes "result is the zero value"
	// from "no result field was sent" (undefined vs. absent), since a Go
	// `any` zero value and "field not present" are otherwise
	// indistinguishable. Presence on the wire is driven by HasResult, not
	// by whether Result happens to be Go's zero value, so callers that
	// return 0, "", false, nil, or an empty slice as a legitimate result
	// still round-trip correctly — hence no `omitempty` here.
	Result    any             `json:"result"`
	HasResult bool            `json:"-"`
	Error     *wireerr.Record `json:"error,omitempty"`

	// Callback-message field.
	CallbackID string `json:"callbackId,omitempty"`

	// Envelope-only sidecars, present only on the version-2 wire envelope.
	Callbacks         []CallbackRef `json:"callbacks,omitempty"`
	TransferredValues []any         `json:"__transferredValues,omitempty"`
}

// Undefined is the wire representation of JavaScript's `undefined`,
// distinguishable from Go's `nil` (which round-trips as JSON `null`).
type Undefined struct{}

// UndefinedValue is the canonical Undefined instance; compare against it
// with plain `==` since Undefined carries no fields.
var UndefinedValue = Undefined{}

// MapEntry is one key/value pair of a Map, preserved in insertion order.
type MapEntry struct {
	Key   any
	Value any
}

// Map is the wire representation of a JavaScript Map: ordered key/value
// pairs whose keys may be any supported value, not just strings.
type Map struct {
	Entries []MapEntry
}

// NewMap builds a Map from the given entries, in order.
func NewMap(entries ...MapEntry) *Map {
	return &Map{Entries: append([]MapEntry(nil), entries...)}
}

// Get looks up a key, returning its value and whether it was found.
func (m *Map) Get(key any) (any, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Put appends or overwrites a key's value, preserving first-insertion order.
func (m *Map) Put(key, value any) {
	for i, e := range m.Entries {
		if e.Key == key {
			m.Entries[i].Value = value
			return
		}
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: value})
}

// Len reports the number of entries.
func (m *Map) Len() int { return len(m.Entries) }

// Set is the wire representation of a JavaScript Set: an ordered
// collection of unique elements.
type Set struct {
	Elements []any
}

// NewSet builds a Set from the given elements, deduplicating by equality.
func NewSet(elements ...any) *Set {
	s := &Set{}
	for _, e := range elements {
		s.Add(e)
	}
	return s
}

// Add inserts v if not already present.
func (s *Set) Add(v any) {
	if s.Has(v) {
		return
	}
	s.Elements = append(s.Elements, v)
}

// Has reports whether v is a member.
func (s *Set) Has(v any) bool {
	for _, e := range s.Elements {
		if e == v {
			return true
		}
	}
	return false
}

// Len reports the number of elements.
func (s *Set) Len() int { return len(s.Elements) }
