package wire

import "strconv"

// CallbackRegistrar registers a local function as an outgoing callback and
// returns the identifier to place on the wire. Implemented by
// internal/callback.Registry.
type CallbackRegistrar interface {
	Register(invoke func(args []any)) string
}

// CallbackSynthesizer manufactures a local stand-in for a callback
// identifier received from the peer: calling the returned function sends
// a callback message carrying id back over the channel. Implemented by
// channel.Channel.
type CallbackSynthesizer interface {
	Synthesize(id string) func(args []any)
}

// isCallbackID reports whether s has the reserved callback-identifier
// prefix.
func isCallbackID(s string) bool {
	const prefix = "__callback__"
	return len(s) > len(prefix) && s[:len(prefix)] == prefix
}

// EncodeEnvelopeArgs prepares an outgoing argument list for envelope
// (structured-clone) transport. Plain values need no further encoding —
// only callback arguments are special-cased. Only top-level argument
// slots are checked: nested callback arguments are not supported over
// the envelope codec.
func EncodeEnvelopeArgs(args []any, reg CallbackRegistrar) ([]any, []CallbackRef) {
	return encodeEnvelopeSlots(args, "args", reg)
}

// EncodeEnvelopeResult prepares an outgoing result/property value for
// envelope transport. A callback may appear as the direct result value,
// resolved here by checking exactly that one slot — no deeper scan,
// since the in-process envelope path should stay cheap (see DESIGN.md).
func EncodeEnvelopeResult(result any, reg CallbackRegistrar) (any, []CallbackRef) {
	encoded, refs := encodeEnvelopeSlots([]any{result}, "result", reg)
	return encoded[0], refs
}

func encodeEnvelopeSlots(values []any, root string, reg CallbackRegistrar) ([]any, []CallbackRef) {
	out := make([]any, len(values))
	var refs []CallbackRef
	for i, v := range values {
		if fn, ok := v.(func(args []any)); ok {
			id := reg.Register(fn)
			out[i] = id
			path := []string{}
			if root == "args" {
				path = []string{strconv.Itoa(i)}
			}
			refs = append(refs, CallbackRef{Path: path, ID: id})
			continue
		}
		out[i] = v
	}
	return out, refs
}

// DecodeEnvelopeArgs resolves callback placeholders in an incoming
// argument list back into live callables, using the sidecar refs to know
// definitively which slots are callbacks rather than inspecting string
// values directly.
func DecodeEnvelopeArgs(args []any, refs []CallbackRef, synth CallbackSynthesizer) []any {
	return decodeEnvelopeSlots(args, refs, "args", synth)
}

// DecodeEnvelopeResult is the result-side counterpart of DecodeEnvelopeArgs.
func DecodeEnvelopeResult(result any, refs []CallbackRef, synth CallbackSynthesizer) any {
	decoded := decodeEnvelopeSlots([]any{result}, refs, "result", synth)
	return decoded[0]
}

func decodeEnvelopeSlots(values []any, refs []CallbackRef, root string, synth CallbackSynthesizer) []any {
	out := append([]any(nil), values...)
	for _, ref := range refs {
		if root == "args" {
			if len(ref.Path) != 1 {
				continue
			}
			idx, err := strconv.Atoi(ref.Path[0])
			if err != nil || idx < 0 || idx >= len(out) {
				continue
			}
			out[idx] = synth.Synthesize(ref.ID)
		} else {
			if len(ref.Path) != 0 {
				continue
			}
			out[0] = synth.Synthesize(ref.ID)
		}
	}
	// Legacy-compatible fallback: even without a sidecar entry (e.g. a
	// caller on text-only serialization talking to an envelope-capable
	// peer that chose text anyway), recognize the literal prefix.
	for i, v := range out {
		if s, ok := v.(string); ok && isCallbackID(s) && !wasResolved(refs, root, i) {
			out[i] = synth.Synthesize(s)
		}
	}
	return out
}

func wasResolved(refs []CallbackRef, root string, targetIdx int) bool {
	for _, ref := range refs {
		if root == "args" && len(ref.Path) == 1 {
			if idx, err := strconv.Atoi(ref.Path[0]); err == nil && idx == targetIdx {
				return true
			}
		}
		if root == "result" && len(ref.Path) == 0 && targetIdx == 0 {
			return true
		}
	}
	return false
}
