package wire

import (
	"bytes"
	"encoding/json"
)

// Object is a minimal, ordered-insertion JSON object builder. The
// auth server's wire JSON is order-insensitive, but spec.md's seed
// tests pin a canonical member order for the three M-Pin request
// bodies, so request construction goes through this type rather than
// a plain map[string]interface{} (whose iteration order Go
// deliberately randomizes).
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Set assigns key=value, appending key to the member order on first
// use and overwriting the value (without moving the key) on repeat
// use.
func (o *Object) Set(key string, value interface{}) *Object {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// MarshalJSON implements json.Marshaler, preserving insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value is a parsed JSON document accessed by field name. It wraps
// encoding/json's generic decode (map[string]interface{}) with the
// typed accessors the M-Pin client needs,
// returning a wire.JSONError on a missing or mis-typed field instead
// of a type-assertion panic.
type Value struct {
	raw map[string]interface{}
}

// ParseObject parses a JSON document expected to be a top-level
// object.
func ParseObject(data []byte) (*Value, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newJSONError("%v", err)
	}
	return &Value{raw: raw}, nil
}

// String returns the string field named key.
func (v *Value) String(key string) (string, error) {
	val, ok := v.raw[key]
	if !ok {
		return "", newJSONError("missing field %q", key)
	}
	s, ok := val.(string)
	if !ok {
		return "", newJSONError("field %q is not a string", key)
	}
	return s, nil
}

// OptionalObject returns the object field named key, or nil if the
// field is absent — used for renewSecret, which is only present on
// identity renewal.
func (v *Value) OptionalObject(key string) (*Value, bool) {
	val, ok := v.raw[key]
	if !ok || val == nil {
		return nil, false
	}
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return &Value{raw: m}, true
}

// StringArray returns the string array field named key.
func (v *Value) StringArray(key string) ([]string, error) {
	val, ok := v.raw[key]
	if !ok {
		return nil, newJSONError("missing field %q", key)
	}
	arr, ok := val.([]interface{})
	if !ok {
		return nil, newJSONError("field %q is not an array", key)
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, newJSONError("field %q contains a non-string element", key)
		}
		out = append(out, s)
	}
	return out, nil
}
