package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONKind is the top-level shape of a JSONValue.
type JSONKind int

const (
	JSONNone JSONKind = iota
	JSONObject
	JSONArray
)

// JSONValue is a tool argument that may arrive either as JSON text or as an
// already decoded structure. Both forms normalize to compact JSON bytes.
type JSONValue struct {
	raw  json.RawMessage
	kind JSONKind
}

// ParseJSONValue accepts a JSON string, a json.RawMessage or []byte holding
// JSON, or any value that marshals to a JSON object or array. nil gives the
// zero value.
func ParseJSONValue(v any) (JSONValue, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return JSONValue{}, nil
	case JSONValue:
		return t, nil
	case string:
		if t == "" {
			return JSONValue{}, nil
		}
		raw = []byte(t)
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return JSONValue{}, fmt.Errorf("value is not JSON-encodable: %w", err)
		}
		raw = b
	}

	if !json.Valid(raw) {
		return JSONValue{}, fmt.Errorf("value is not valid JSON")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return JSONValue{}, fmt.Errorf("value is not valid JSON: %w", err)
	}

	out := compact.Bytes()
	switch {
	case len(out) > 0 && out[0] == '{':
		return JSONValue{raw: out, kind: JSONObject}, nil
	case len(out) > 0 && out[0] == '[':
		return JSONValue{raw: out, kind: JSONArray}, nil
	}
	return JSONValue{}, fmt.Errorf("value must be a JSON object or array")
}

// MustObject returns an error unless v is a JSON object.
func (v JSONValue) MustObject(name string) error {
	if v.kind != JSONObject {
		return fmt.Errorf("%s must be a JSON object", name)
	}
	return nil
}

// MustArray returns an error unless v is a JSON array.
func (v JSONValue) MustArray(name string) error {
	if v.kind != JSONArray {
		return fmt.Errorf("%s must be a JSON array", name)
	}
	return nil
}

// IsZero reports whether no value was supplied.
func (v JSONValue) IsZero() bool {
	return v.kind == JSONNone
}

// Kind returns the top-level shape.
func (v JSONValue) Kind() JSONKind {
	return v.kind
}

// MarshalJSON emits the normalized bytes, or null for the zero value.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	if v.kind == JSONNone {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// String returns the compact JSON text.
func (v JSONValue) String() string {
	if v.kind == JSONNone {
		return ""
	}
	return string(v.raw)
}
