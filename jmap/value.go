package jmap

import "encoding/json"

// Value wraps decoded JSON for safe navigation. Every accessor
// tolerates missing keys, out-of-range indexes and wrong types by
// returning zero values, so response parsing never panics on a
// malformed server reply.
type Value struct {
	v interface{}
}

// NewValue wraps an already decoded JSON value
func NewValue(v interface{}) Value {
	return Value{v: v}
}

// DecodeValue parses raw JSON into a Value
func DecodeValue(data []byte) (Value, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return Value{v: v}, nil
}

// Exists reports whether the value is present at all
func (v Value) Exists() bool {
	return v.v != nil
}

// Get descends into an object field
func (v Value) Get(key string) Value {
	if m, ok := v.v.(map[string]interface{}); ok {
		return Value{v: m[key]}
	}
	return Value{}
}

// Has reports whether an object value carries the key, including
// keys mapped to null.
func (v Value) Has(key string) bool {
	m, ok := v.v.(map[string]interface{})
	if !ok {
		return false
	}
	_, ok = m[key]
	return ok
}

// Index descends into an array element
func (v Value) Index(i int) Value {
	if a, ok := v.v.([]interface{}); ok && i >= 0 && i < len(a) {
		return Value{v: a[i]}
	}
	return Value{}
}

// Str returns the string value, or ""
func (v Value) Str() string {
	if s, ok := v.v.(string); ok {
		return s
	}
	return ""
}

// Int returns the numeric value truncated to int64, or 0
func (v Value) Int() int64 {
	if f, ok := v.v.(float64); ok {
		return int64(f)
	}
	return 0
}

// Bool returns the boolean value, or false
func (v Value) Bool() bool {
	if b, ok := v.v.(bool); ok {
		return b
	}
	return false
}

// Array returns the elements of an array value, or nil
func (v Value) Array() []Value {
	a, ok := v.v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Value, len(a))
	for i, e := range a {
		out[i] = Value{v: e}
	}
	return out
}

// Keys returns the field names of an object value, or nil
func (v Value) Keys() []string {
	m, ok := v.v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
