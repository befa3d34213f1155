package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

// ValueKind identifies which shape a Value carries.
type ValueKind int

// Value kinds, covering every payload shape the bridge can represent.
const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindBytes
	KindList
	KindMap
)

// String returns the string representation of ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged variant carried by every object value in the store.
// The zero value is the null Value.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	raw  []byte
	list []Value
	obj  map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes returns a raw-bytes Value. The slice is not copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// List returns an ordered list Value.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map returns a mapping Value. The map is not copied.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, obj: m}
}

// FromAny converts a dynamically typed value (as produced by
// encoding/json unmarshalling into any) into a Value. Unrecognized
// types become the null Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Map(m)
	case Value:
		return t
	default:
		return Null()
	}
}

// Kind reports which shape this Value carries.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether this is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; ok is false for other kinds.
func (v Value) AsBool() (b bool, ok bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric payload; ok is false for other kinds.
func (v Value) AsNumber() (n float64, ok bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string payload; ok is false for other kinds.
func (v Value) AsString() (s string, ok bool) {
	return v.s, v.kind == KindString
}

// AsBytes returns the raw-bytes payload; ok is false for other kinds.
func (v Value) AsBytes() (b []byte, ok bool) {
	return v.raw, v.kind == KindBytes
}

// AsList returns the list payload; ok is false for other kinds.
func (v Value) AsList() (items []Value, ok bool) {
	return v.list, v.kind == KindList
}

// AsMap returns the mapping payload; ok is false for other kinds.
func (v Value) AsMap() (m map[string]Value, ok bool) {
	return v.obj, v.kind == KindMap
}

// Get returns the value under key for a mapping Value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	item, ok := v.obj[key]
	return item, ok
}

// Index returns the i-th element of a list Value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// ToAny converts the Value back into a dynamically typed representation
// suitable for encoding/json. Bytes become base64 strings.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw)
	case KindList:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.ToAny()
		}
		return items
	case KindMap:
		m := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			m[k] = item.ToAny()
		}
		return m
	default:
		return nil
	}
}

// Equal reports deep equality of two Values. NaN numbers never compare
// equal, matching float semantics.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n && !math.IsNaN(v.n)
	case KindString:
		return v.s == other.s
	case KindBytes:
		if len(v.raw) != len(other.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != other.raw[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			o, ok := other.obj[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler. Bytes cannot round-trip:
// a base64 string unmarshals as a string Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("value unmarshal: %w", err)
	}
	*v = FromAny(raw)
	return nil
}
