package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindSequence
	KindMapping
	KindOpaque
)

// String returns the string representation of ValueKind
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value is the portable representation of one attribute value. Native
// representations from the automation API are normalized into exactly one
// of six variants; values that cannot be represented degrade to Opaque
// with a textual description instead of failing.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	seq     []Value
	mapping map[string]Value
}

// Constructors.

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a float64. Integers convert through this as well.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, boolean: b} }

// SequenceValue wraps an ordered list of values.
func SequenceValue(items ...Value) Value { return Value{kind: KindSequence, seq: items} }

// MappingValue wraps a string-keyed map of values.
func MappingValue(m map[string]Value) Value { return Value{kind: KindMapping, mapping: m} }

// OpaqueValue wraps a textual description of an unconvertible native value.
func OpaqueValue(desc string) Value { return Value{kind: KindOpaque, str: desc} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// Accessors. Each returns the variant payload and whether the value holds
// that variant.

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// AsSequence returns the sequence payload.
func (v Value) AsSequence() ([]Value, bool) {
	return v.seq, v.kind == KindSequence
}

// AsMapping returns the mapping payload.
func (v Value) AsMapping() (map[string]Value, bool) {
	return v.mapping, v.kind == KindMapping
}

// OpaqueDescription returns the description of an opaque value.
func (v Value) OpaqueDescription() (string, bool) {
	return v.str, v.kind == KindOpaque
}

// Float64 returns the numeric payload or 0 for non-numbers. Used where a
// loose read is acceptable (display, heuristics).
func (v Value) Float64() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// String renders the value for logs and event dumps.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.boolean)
	case KindSequence:
		parts := make([]string, len(v.seq))
		for i, item := range v.seq {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		keys := make([]string, 0, len(v.mapping))
		for k := range v.mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.mapping[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindOpaque:
		return "<" + v.str + ">"
	default:
		return "<invalid>"
	}
}

// Equal reports deep equality of two values. Numbers compare exactly;
// callers needing a tolerance compare the payloads themselves.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString, KindOpaque:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.boolean == other.boolean
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.mapping) != len(other.mapping) {
			return false
		}
		for k, item := range v.mapping {
			o, ok := other.mapping[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON renders the payload directly: scalars as JSON scalars,
// sequences as arrays, mappings as objects, opaques as quoted strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(fmt.Sprintf("%g", v.num))
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindSequence:
		return json.Marshal(v.seq)
	case KindMapping:
		return json.Marshal(v.mapping)
	case KindOpaque:
		return json.Marshal("<" + v.str + ">")
	default:
		return []byte("null"), nil
	}
}

// maxConvertDepth bounds recursion into nested native collections. The
// automation API has handed back self-referential containers before;
// anything deeper degrades to Opaque.
const maxConvertDepth = 8

// Convert normalizes a native attribute value into a Value. Conversion is
// total: it always terminates and never fails. Strings, booleans and all
// numeric widths map to their scalar variants; slices and arrays recurse
// element-wise; string-keyed maps recurse pairwise; everything else
// becomes Opaque with a textual description.
func Convert(native interface{}) Value {
	return convertDepth(native, 0)
}

func convertDepth(native interface{}, depth int) Value {
	if native == nil {
		return OpaqueValue("nil")
	}
	if depth > maxConvertDepth {
		return OpaqueValue(fmt.Sprintf("nesting too deep: %T", native))
	}

	switch v := native.(type) {
	case Value:
		return v
	case string:
		return StringValue(v)
	case bool:
		return BoolValue(v)
	case float64:
		return NumberValue(v)
	case float32:
		return NumberValue(float64(v))
	case int:
		return NumberValue(float64(v))
	case int8:
		return NumberValue(float64(v))
	case int16:
		return NumberValue(float64(v))
	case int32:
		return NumberValue(float64(v))
	case int64:
		return NumberValue(float64(v))
	case uint:
		return NumberValue(float64(v))
	case uint8:
		return NumberValue(float64(v))
	case uint16:
		return NumberValue(float64(v))
	case uint32:
		return NumberValue(float64(v))
	case uint64:
		return NumberValue(float64(v))
	case time.Time:
		return StringValue(v.Format(time.RFC3339Nano))
	case time.Duration:
		return NumberValue(v.Seconds())
	case Point:
		return MappingValue(map[string]Value{
			"x": NumberValue(v.X),
			"y": NumberValue(v.Y),
		})
	case Size:
		return MappingValue(map[string]Value{
			"width":  NumberValue(v.Width),
			"height": NumberValue(v.Height),
		})
	case []interface{}:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = convertDepth(item, depth+1)
		}
		return SequenceValue(items...)
	case map[string]interface{}:
		m := make(map[string]Value, len(v))
		for k, item := range v {
			m[k] = convertDepth(item, depth+1)
		}
		return MappingValue(m)
	}

	// Concrete slice/array/map types that did not match above.
	rv := reflect.ValueOf(native)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = convertDepth(rv.Index(i).Interface(), depth+1)
		}
		return SequenceValue(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]Value, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = convertDepth(iter.Value().Interface(), depth+1)
			}
			return MappingValue(m)
		}
	}

	return OpaqueValue(fmt.Sprintf("%T(%v)", native, native))
}

// AttributeSet maps attribute names to converted values. Built fresh on
// each query; never cached across calls.
type AttributeSet map[string]Value

// Get returns the value for name.
func (a AttributeSet) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// GetString returns the string payload of a string-valued attribute.
func (a AttributeSet) GetString(name string) (string, bool) {
	v, ok := a[name]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetNumber returns the numeric payload of a number-valued attribute.
func (a AttributeSet) GetNumber(name string) (float64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// Keys returns the attribute names in sorted order.
func (a AttributeSet) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
