// Package eventid provides RFC-8785 JSON canonicalization and the
// content-addressed EventId hash, per Interface-Pack §3 and §4.1.
//
// CONTRACT (Interface-Pack §4.1):
// - UTF-8 encoding
// - Object keys sorted lexicographically by Unicode codepoint
// - No insignificant whitespace
// - Numbers in minimal decimal form without trailing zeros
// - Arrays retain order
// - Standard JSON escaping
//
// This function must be pure and identical across every conforming
// implementation, in any language (Testable Property 1: EventId
// determinism) — that is why it is built directly on the standard
// library rather than an external JCS package: correctness here is a
// spec invariant best served by a small, auditable implementation, not
// an opaque dependency with no corpus precedent (see DESIGN.md).
package eventid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize converts a JSON-compatible value to canonical JSON bytes.
// Unlike building and concatenating a []byte per nested value, encode
// writes directly into one growing buffer, so a deeply nested document
// costs one allocation path rather than one slice per node.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode is the sole recursive descent: scalars are written straight
// to buf, and []any/map[string]any recurse back into encode for each
// element instead of being split across per-kind helper functions.
func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string, float64, int, int64:
		return encodeScalar(buf, val)
	case []any:
		return encodeArray(buf, val)
	case map[string]any:
		return encodeObject(buf, val)
	default:
		return fmt.Errorf("eventid: unsupported type %T", v)
	}
}

// encodeScalar handles the JSON types whose encoding is best left to
// encoding/json (string escaping, float formatting): it marshals in
// isolation and appends the result, rather than threading a
// json.Encoder through the whole recursion.
func encodeScalar(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("eventid: marshal scalar: %w", err)
	}
	buf.Write(b)
	return nil
}

// encodeArray writes arr in its original order; JSON arrays carry no
// ordering requirement to canonicalize away.
func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// sortedKeys returns obj's keys in ascending byte order of their UTF-8
// encoding (which is Unicode-codepoint order); the object encoder then
// looks each member up in the map by key as it writes.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// encodeObject writes obj's members ordered by sortedKeys, per RFC
// 8785's lexicographic-by-codepoint key ordering requirement.
func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	buf.WriteByte('{')
	for i, key := range sortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeScalar(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// normalize round-trips a value that may contain typed map/slice values
// (rather than the bare map[string]any/[]any that encode expects)
// through encoding/json so arbitrary Go structs and typed maps
// canonicalize the same way raw decoded JSON does.
func normalize(v any) (any, error) {
	switch v.(type) {
	case []byte:
		// Raw-lane payloads are opaque bytes, never JSON.
		return v, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("eventid: marshal for normalization: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("eventid: decode for normalization: %w", err)
	}
	return decoded, nil
}

// CanonicalizeAny normalizes an arbitrary Go value (struct, typed map,
// []byte, ...) through JSON and then canonicalizes it. []byte values are
// passed through unchanged (Raw lane payloads are not JSON).
func CanonicalizeAny(v any) ([]byte, error) {
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return Canonicalize(normalized)
}
