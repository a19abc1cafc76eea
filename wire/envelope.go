package wire

import (
	"encoding/json"
	"fmt"
)

// EncodeEnvelope serializes env using the version-2 structured form:
// callback arguments and a callback result are replaced by their
// identifiers and recorded in the Callbacks sidecar, and the value tree
// is handed through the same tagging pass EncodeText uses so that Date,
// Map, Set, BigInt, Undefined, and typed-array slices — none of which
// encoding/json knows how to marshal on its own — survive the round
// trip. Plain JSON-native values pass through the tagging pass
// unchanged. Presence of the "result" field is driven by env.HasResult,
// not by the value being the zero value, so a legitimate 0/""/false/nil
// result is never silently dropped.
func EncodeEnvelope(env *Envelope, reg CallbackRegistrar) (string, error) {
	wireArgs, argRefs := EncodeEnvelopeArgs(env.Args, reg)
	for i, v := range wireArgs {
		wireArgs[i] = tagEnvelopeValue(v)
	}
	callbacks := argRefs

	out := map[string]any{
		"version": 2,
		"id":      env.ID,
		"type":    string(env.Type),
	}
	if env.Method != "" {
		out["method"] = env.Method
	}
	if env.Kind != "" {
		out["kind"] = string(env.Kind)
	}
	if len(env.Args) > 0 {
		out["args"] = wireArgs
	}
	if env.HasResult {
		wireResult, resultRefs := EncodeEnvelopeResult(env.Result, reg)
		out["result"] = tagEnvelopeValue(wireResult)
		callbacks = append(callbacks, resultRefs...)
	}
	if env.Error != nil {
		out["error"] = encodeErrorRecord(env.Error, reg)
	}
	if env.CallbackID != "" {
		out["callbackId"] = env.CallbackID
	}
	if len(callbacks) > 0 {
		out["callbacks"] = callbacks
	}
	if len(env.TransferredValues) > 0 {
		out["__transferredValues"] = env.TransferredValues
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("wire: encode envelope message: %w", err)
	}
	return string(b), nil
}

// DecodeEnvelope parses a version-2 envelope frame, resolving callback
// identifiers named in its Callbacks sidecar back into live callables and
// reversing the tagging pass EncodeEnvelope applied to the value tree.
func DecodeEnvelope(s string, synth CallbackSynthesizer) (*Envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("wire: decode envelope message: %w", err)
	}

	env := &Envelope{
		Version:    2,
		ID:         asString(raw["id"]),
		Type:       MessageType(asString(raw["type"])),
		Method:     asString(raw["method"]),
		Kind:       RequestKind(asString(raw["kind"])),
		CallbackID: asString(raw["callbackId"]),
	}

	if rawCallbacks, ok := raw["callbacks"]; ok {
		if b, err := json.Marshal(rawCallbacks); err == nil {
			json.Unmarshal(b, &env.Callbacks)
		}
	}

	if rawArgs, ok := raw["args"].([]any); ok {
		env.Args = DecodeEnvelopeArgs(rawArgs, env.Callbacks, synth)
		for i, a := range env.Args {
			env.Args[i] = untagEnvelopeValue(a)
		}
	}

	if rawResult, ok := raw["result"]; ok {
		env.HasResult = true
		decoded := DecodeEnvelopeResult(rawResult, env.Callbacks, synth)
		env.Result = untagEnvelopeValue(decoded)
	}

	if rawErr, ok := raw["error"].(map[string]any); ok {
		env.Error = decodeErrorRecord(rawErr, synth)
	}

	return env, nil
}

// tagEnvelopeValue walks v through the same tagged representation
// normalize produces for the text codec, recovering just enough
// structure for Date, Map, Set, BigInt, Undefined, and typed-array
// values to survive encoding/json's default marshaling; plain
// JSON-native values fall through unchanged. By the time this runs,
// EncodeEnvelopeArgs/EncodeEnvelopeResult have already replaced the one
// callback slot each of them supports, so no callback gets registered
// here — a noopCallbackRegistrar stands in since normalize requires one.
func tagEnvelopeValue(v any) any {
	return tagShared(normalize(v, noopCallbackRegistrar{}))
}

// untagEnvelopeValue reverses tagEnvelopeValue.
func untagEnvelopeValue(v any) any {
	return decodeDeep(untagShared(v), noopCallbackSynthesizer{})
}

type noopCallbackRegistrar struct{}

func (noopCallbackRegistrar) Register(func(args []any)) string { return "" }

type noopCallbackSynthesizer struct{}

func (noopCallbackSynthesizer) Synthesize(string) func(args []any) { return nil }
