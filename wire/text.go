package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/kkrpc-go/kkrpc/wireerr"
)

// This file implements the legacy text variant: a single JSON superset
// string per message that preserves Date, Map, Set, BigInt, typed
// arrays, undefined, and referential sharing — used whenever the
// adapter lacks structured-clone support. Unlike the envelope path
// (codec.go), the whole args/result tree is walked, so callback
// identifiers are recognized at any depth, not just the top level
// (see DESIGN.md). On decode, a shared plain object or array comes back
// as one Go map or slice; a shared Map, Set, or typed array comes back
// as an equal but separate value at each place it occurred.

// EncodeText serializes env to the legacy newline-free text form (framing
// adds the trailing "\n"; see adapter.Framing). Functions reachable from
// Args, Result, or Error.Extra are registered as outgoing callbacks.
func EncodeText(env *Envelope, reg CallbackRegistrar) (string, error) {
	wireArgs := make([]any, len(env.Args))
	for i, a := range env.Args {
		wireArgs[i] = encodeDeep(a, reg)
	}

	out := map[string]any{
		"version": 1,
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
		out["args"] = tagShared(wireArgs)
	}
	if env.HasResult {
		out["result"] = tagShared(encodeDeep(env.Result, reg))
	}
	if env.Error != nil {
		out["error"] = encodeErrorRecord(env.Error, reg)
	}
	if env.CallbackID != "" {
		out["callbackId"] = env.CallbackID
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("wire: encode text message: %w", err)
	}
	return string(b), nil
}

// DecodeText parses a legacy text frame back into an Envelope, synthesizing
// proxy functions for any embedded callback identifiers.
func DecodeText(s string, synth CallbackSynthesizer) (*Envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("wire: decode text message: %w", err)
	}

	env := &Envelope{
		Version: 1,
		ID:      asString(raw["id"]),
		Type:    MessageType(asString(raw["type"])),
		Method:  asString(raw["method"]),
		Kind:    RequestKind(asString(raw["kind"])),
	}

	if rawArgs, ok := raw["args"].([]any); ok {
		args := untagShared(rawArgs).([]any)
		env.Args = make([]any, len(args))
		for i, a := range args {
			env.Args[i] = decodeDeep(a, synth)
		}
	}
	if rawResult, ok := raw["result"]; ok {
		env.Result = decodeDeep(untagShared(rawResult), synth)
		env.HasResult = true
	}
	if rawErr, ok := raw["error"].(map[string]any); ok {
		env.Error = decodeErrorRecord(rawErr, synth)
	}
	env.CallbackID = asString(raw["callbackId"])

	return env, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// --- normalize: Go value -> tagged JSON tree, callbacks registered ---

func encodeDeep(v any, reg CallbackRegistrar) any {
	return normalize(v, reg)
}

// callbackFuncType is the shape any named callback type (e.g.
// channel.CallbackFunc) must share to be recognized here; a plain type
// switch on "func(args []any)" would miss named types with that
// underlying signature, so this checks via reflection instead.
var callbackFuncType = reflect.TypeOf((func(args []any))(nil))

func asCallback(v any) (func(args []any), bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Func || !rv.Type().ConvertibleTo(callbackFuncType) {
		return nil, false
	}
	if rv.IsNil() {
		return nil, false
	}
	return rv.Convert(callbackFuncType).Interface().(func(args []any)), true
}

func normalize(v any, reg CallbackRegistrar) any {
	if fn, ok := asCallback(v); ok {
		id := reg.Register(fn)
		return map[string]any{"__t": "callback", "id": id}
	}
	switch x := v.(type) {
	case nil:
		return nil
	case Undefined:
		return map[string]any{"__t": "undefined"}
	case time.Time:
		return map[string]any{"__t": "date", "v": x.UTC().Format(time.RFC3339Nano)}
	case *big.Int:
		return map[string]any{"__t": "bigint", "v": x.String()}
	case *Map:
		entries := make([]any, len(x.Entries))
		for i, e := range x.Entries {
			entries[i] = []any{normalize(e.Key, reg), normalize(e.Value, reg)}
		}
		return &taggedNode{tag: "map", identity: reflect.ValueOf(x).Pointer(), value: entries}
	case *Set:
		elems := make([]any, len(x.Elements))
		for i, e := range x.Elements {
			elems[i] = normalize(e, reg)
		}
		return &taggedNode{tag: "set", identity: reflect.ValueOf(x).Pointer(), value: elems}
	case []byte:
		return typedArrayNode("u8", x, reg)
	case []int8:
		return typedArrayNode("i8", x, reg)
	case []uint16:
		return typedArrayNode("u16", x, reg)
	case []int16:
		return typedArrayNode("i16", x, reg)
	case []uint32:
		return typedArrayNode("u32", x, reg)
	case []int32:
		return typedArrayNode("i32", x, reg)
	case []float32:
		return typedArrayNode("f32", x, reg)
	case []float64:
		return typedArrayNode("f64", x, reg)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalize(vv, reg)
		}
		return &taggedNode{tag: "object", identity: reflectMapPointer(x), value: out}
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalize(vv, reg)
		}
		return &taggedNode{tag: "array", identity: reflectSlicePointer(x), value: out}
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Ptr:
			if rv.IsNil() {
				return nil
			}
			elem := rv.Elem()
			if elem.Kind() == reflect.Struct {
				out := structToMap(elem, reg)
				return &taggedNode{tag: "object", identity: rv.Pointer(), value: out}
			}
			return normalize(elem.Interface(), reg)
		case reflect.Struct:
			out := structToMap(rv, reg)
			return &taggedNode{tag: "object", value: out}
		case reflect.Map:
			out := make(map[string]any, rv.Len())
			for _, k := range rv.MapKeys() {
				out[fmt.Sprintf("%v", k.Interface())] = normalize(rv.MapIndex(k).Interface(), reg)
			}
			return &taggedNode{tag: "object", identity: rv.Pointer(), value: out}
		case reflect.Slice, reflect.Array:
			out := make([]any, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out[i] = normalize(rv.Index(i).Interface(), reg)
			}
			nd := &taggedNode{tag: "array", value: out}
			if rv.Kind() == reflect.Slice {
				nd.identity = rv.Pointer()
			}
			return nd
		default:
			return v
		}
	}
}

func typedArrayNode(kind string, v any, _ CallbackRegistrar) *taggedNode {
	rv := reflect.ValueOf(v)
	buf := make([]byte, 0, rv.Len()*8)
	switch kind {
	case "u8":
		buf = append(buf, v.([]byte)...)
	case "i8":
		for _, e := range v.([]int8) {
			buf = append(buf, byte(e))
		}
	case "u16":
		for _, e := range v.([]uint16) {
			buf = append(buf, byte(e), byte(e>>8))
		}
	case "i16":
		for _, e := range v.([]int16) {
			buf = append(buf, byte(e), byte(e>>8))
		}
	case "u32":
		for _, e := range v.([]uint32) {
			buf = append(buf, byte(e), byte(e>>8), byte(e>>16), byte(e>>24))
		}
	case "i32":
		for _, e := range v.([]int32) {
			buf = append(buf, byte(e), byte(e>>8), byte(e>>16), byte(e>>24))
		}
	case "f32":
		for _, e := range v.([]float32) {
			bits := math.Float32bits(e)
			buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
		}
	case "f64":
		for _, e := range v.([]float64) {
			bits := math.Float64bits(e)
			buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24),
				byte(bits>>32), byte(bits>>40), byte(bits>>48), byte(bits>>56))
		}
	}
	return &taggedNode{
		tag:      "typedarray",
		identity: rv.Pointer(),
		value:    map[string]any{"kind": kind, "data": base64.StdEncoding.EncodeToString(buf)},
	}
}

func structToMap(rv reflect.Value, reg CallbackRegistrar) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
		}
		out[name] = normalize(rv.Field(i).Interface(), reg)
	}
	return out
}

func reflectMapPointer(m map[string]any) uintptr {
	if m == nil {
		return 0
	}
	return reflect.ValueOf(m).Pointer()
}

func reflectSlicePointer(s []any) uintptr {
	if s == nil {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}

// taggedNode is an intermediate carrier for a composite value that may
// need referential-sharing tags; identity is its address (0 = untracked).
type taggedNode struct {
	tag      string
	identity uintptr
	value    any
}

// --- tagShared: assign ref ids to nodes visited more than once ---

func tagShared(v any) any {
	counts := map[uintptr]int{}
	countVisits(v, counts)
	assigned := map[uintptr]int{}
	next := 0
	return emitTagged(v, counts, assigned, &next)
}

func countVisits(v any, counts map[uintptr]int) {
	switch x := v.(type) {
	case *taggedNode:
		if x.identity != 0 {
			counts[x.identity]++
			if counts[x.identity] > 1 {
				return // already counted this subtree once
			}
		}
		switch val := x.value.(type) {
		case map[string]any:
			for _, vv := range val {
				countVisits(vv, counts)
			}
		case []any:
			for _, vv := range val {
				countVisits(vv, counts)
			}
		}
	case []any:
		for _, vv := range x {
			countVisits(vv, counts)
		}
	}
}

func emitTagged(v any, counts map[uintptr]int, assigned map[uintptr]int, next *int) any {
	switch x := v.(type) {
	case *taggedNode:
		if x.identity != 0 && counts[x.identity] > 1 {
			if id, ok := assigned[x.identity]; ok {
				return map[string]any{"__t": "ref", "i": id}
			}
			id := *next
			*next++
			assigned[x.identity] = id
			inner := emitTaggedValue(x, counts, assigned, next)
			return map[string]any{"__t": "refdef", "i": id, "v": inner}
		}
		return emitTaggedValue(x, counts, assigned, next)
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = emitTagged(vv, counts, assigned, next)
		}
		return out
	default:
		return v
	}
}

func emitTaggedValue(x *taggedNode, counts map[uintptr]int, assigned map[uintptr]int, next *int) any {
	switch val := x.value.(type) {
	case map[string]any:
		out := make(map[string]any, len(val)+1)
		for k, vv := range val {
			out[k] = emitTagged(vv, counts, assigned, next)
		}
		if x.tag != "object" {
			return map[string]any{"__t": x.tag, "fields": out}
		}
		out["__t"] = "object"
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = emitTagged(vv, counts, assigned, next)
		}
		return map[string]any{"__t": x.tag, "items": out}
	default:
		return map[string]any{"__t": x.tag, "v": val}
	}
}

// --- untagShared / decodeDeep: tagged JSON tree -> Go value ---

func untagShared(v any) any {
	refs := map[int]any{}
	return resolveTagged(v, refs)
}

func resolveTagged(v any, refs map[int]any) any {
	switch x := v.(type) {
	case map[string]any:
		t, _ := x["__t"].(string)
		switch t {
		case "refdef":
			id := int(x["i"].(float64))
			resolved := resolveTagged(x["v"], refs)
			refs[id] = resolved
			return resolved
		case "ref":
			id := int(x["i"].(float64))
			return refs[id]
		case "object":
			out := map[string]any{}
			for k, vv := range x {
				if k == "__t" {
					continue
				}
				out[k] = resolveTagged(vv, refs)
			}
			return out
		case "array":
			items, _ := x["items"].([]any)
			out := make([]any, len(items))
			for i, vv := range items {
				out[i] = resolveTagged(vv, refs)
			}
			return out
		case "map", "set":
			items, _ := x["items"].([]any)
			resolved := make([]any, len(items))
			for i, it := range items {
				resolved[i] = resolveTagged(it, refs)
			}
			return map[string]any{"__t": t, "items": resolved}
		case "typedarray", "date", "bigint", "undefined", "callback":
			return x // leaf tags carry no nested ref-bearing values
		default:
			out := map[string]any{}
			for k, vv := range x {
				out[k] = resolveTagged(vv, refs)
			}
			return out
		}
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = resolveTagged(vv, refs)
		}
		return out
	default:
		return v
	}
}

func decodeDeep(v any, synth CallbackSynthesizer) any {
	m, ok := v.(map[string]any)
	if !ok {
		if arr, ok := v.([]any); ok {
			// Decoded in place: untagShared returns one slice for every
			// occurrence of a shared array, so sharing survives.
			for i, e := range arr {
				arr[i] = decodeDeep(e, synth)
			}
			return arr
		}
		return v
	}
	switch m["__t"] {
	case "undefined":
		return UndefinedValue
	case "date":
		ts, _ := time.Parse(time.RFC3339Nano, m["v"].(string))
		return ts
	case "bigint":
		n := new(big.Int)
		n.SetString(m["v"].(string), 10)
		return n
	case "callback":
		id, _ := m["id"].(string)
		return synth.Synthesize(id)
	case "map":
		items, _ := m["items"].([]any)
		entries := make([]MapEntry, len(items))
		for i, it := range items {
			pair := it.([]any)
			entries[i] = MapEntry{Key: decodeDeep(pair[0], synth), Value: decodeDeep(pair[1], synth)}
		}
		return &Map{Entries: entries}
	case "set":
		items, _ := m["items"].([]any)
		elems := make([]any, len(items))
		for i, it := range items {
			elems[i] = decodeDeep(it, synth)
		}
		return &Set{Elements: elems}
	case "typedarray":
		fields, _ := m["fields"].(map[string]any)
		kind, _ := fields["kind"].(string)
		data, _ := fields["data"].(string)
		buf, _ := base64.StdEncoding.DecodeString(data)
		return decodeTypedArray(kind, buf)
	default:
		// Decoded in place, like arrays above, so a shared object decodes
		// to one map.
		for k, vv := range m {
			m[k] = decodeDeep(vv, synth)
		}
		return m
	}
}

func decodeTypedArray(kind string, buf []byte) any {
	switch kind {
	case "u8":
		return append([]byte(nil), buf...)
	case "i8":
		out := make([]int8, len(buf))
		for i, b := range buf {
			out[i] = int8(b)
		}
		return out
	case "u16":
		out := make([]uint16, len(buf)/2)
		for i := range out {
			out[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		}
		return out
	case "i16":
		out := make([]int16, len(buf)/2)
		for i := range out {
			out[i] = int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
		}
		return out
	case "u32":
		out := make([]uint32, len(buf)/4)
		for i := range out {
			o := 4 * i
			out[i] = uint32(buf[o]) | uint32(buf[o+1])<<8 | uint32(buf[o+2])<<16 | uint32(buf[o+3])<<24
		}
		return out
	case "i32":
		out := make([]int32, len(buf)/4)
		for i := range out {
			o := 4 * i
			out[i] = int32(uint32(buf[o]) | uint32(buf[o+1])<<8 | uint32(buf[o+2])<<16 | uint32(buf[o+3])<<24)
		}
		return out
	case "f32":
		out := make([]float32, len(buf)/4)
		for i := range out {
			o := 4 * i
			bits := uint32(buf[o]) | uint32(buf[o+1])<<8 | uint32(buf[o+2])<<16 | uint32(buf[o+3])<<24
			out[i] = math.Float32frombits(bits)
		}
		return out
	case "f64":
		out := make([]float64, len(buf)/8)
		for i := range out {
			o := 8 * i
			var bits uint64
			for b := 0; b < 8; b++ {
				bits |= uint64(buf[o+b]) << (8 * b)
			}
			out[i] = math.Float64frombits(bits)
		}
		return out
	}
	return nil
}

// encodeErrorRecord converts a wireerr.Record (and its cause chain, and its
// Extra bag, which may itself hold shared/tagged values) into the same
// tagged-tree shape the rest of the message uses.
func encodeErrorRecord(rec *wireerr.Record, reg CallbackRegistrar) any {
	if rec == nil {
		return nil
	}
	out := map[string]any{
		"name":    rec.Name,
		"message": rec.Message,
	}
	if rec.Stack != "" {
		out["stack"] = rec.Stack
	}
	if rec.Cause != nil {
		out["cause"] = encodeErrorRecord(rec.Cause, reg)
	}
	if rec.Extra != nil {
		extra := make(map[string]any, len(rec.Extra))
		for k, v := range rec.Extra {
			extra[k] = tagShared(encodeDeep(v, reg))
		}
		out["extra"] = extra
	}
	return out
}

func decodeErrorRecord(raw map[string]any, synth CallbackSynthesizer) *wireerr.Record {
	if raw == nil {
		return nil
	}
	rec := &wireerr.Record{
		Name:    asString(raw["name"]),
		Message: asString(raw["message"]),
		Stack:   asString(raw["stack"]),
	}
	if cause, ok := raw["cause"].(map[string]any); ok {
		rec.Cause = decodeErrorRecord(cause, synth)
	}
	if extra, ok := raw["extra"].(map[string]any); ok {
		rec.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			rec.Extra[k] = decodeDeep(untagShared(v), synth)
		}
	}
	return rec
}
