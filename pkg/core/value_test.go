package core

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestConvert_Scalars(t *testing.T) {
	tests := []struct {
		name   string
		native interface{}
		kind   ValueKind
		check  func(t *testing.T, v Value)
	}{
		{"string", "hello", KindString, func(t *testing.T, v Value) {
			if s, _ := v.AsString(); s != "hello" {
				t.Errorf("AsString() = %q, want %q", s, "hello")
			}
		}},
		{"bool true", true, KindBool, func(t *testing.T, v Value) {
			if b, _ := v.AsBool(); !b {
				t.Error("AsBool() = false, want true")
			}
		}},
		{"bool false", false, KindBool, nil},
		{"float64", 3.25, KindNumber, func(t *testing.T, v Value) {
			if n, _ := v.AsNumber(); n != 3.25 {
				t.Errorf("AsNumber() = %v, want 3.25", n)
			}
		}},
		{"float32", float32(1.5), KindNumber, nil},
		{"int", 42, KindNumber, func(t *testing.T, v Value) {
			if n, _ := v.AsNumber(); n != 42 {
				t.Errorf("AsNumber() = %v, want 42", n)
			}
		}},
		{"int64", int64(-7), KindNumber, nil},
		{"int8", int8(3), KindNumber, nil},
		{"uint", uint(9), KindNumber, nil},
		{"uint64", uint64(128), KindNumber, nil},
		{"negative float", -0.5, KindNumber, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Convert(tt.native)
			if v.Kind() != tt.kind {
				t.Fatalf("Convert(%v).Kind() = %v, want %v", tt.native, v.Kind(), tt.kind)
			}
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestConvert_Collections(t *testing.T) {
	seq := Convert([]interface{}{"a", 1, true})
	items, ok := seq.AsSequence()
	if !ok {
		t.Fatalf("Convert(slice).Kind() = %v, want sequence", seq.Kind())
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].Kind() != KindString || items[1].Kind() != KindNumber || items[2].Kind() != KindBool {
		t.Errorf("element kinds = %v %v %v", items[0].Kind(), items[1].Kind(), items[2].Kind())
	}

	m := Convert(map[string]interface{}{"name": "Vocals", "muted": false})
	mapping, ok := m.AsMapping()
	if !ok {
		t.Fatalf("Convert(map).Kind() = %v, want mapping", m.Kind())
	}
	if name, _ := mapping["name"].AsString(); name != "Vocals" {
		t.Errorf("mapping[name] = %q, want Vocals", name)
	}
}

func TestConvert_ConcreteSlicesAndMaps(t *testing.T) {
	v := Convert([]string{"x", "y"})
	items, ok := v.AsSequence()
	if !ok || len(items) != 2 {
		t.Fatalf("Convert([]string) = %v, want 2-item sequence", v)
	}

	v = Convert([3]int{1, 2, 3})
	if items, _ := v.AsSequence(); len(items) != 3 {
		t.Fatalf("Convert(array) = %v, want 3-item sequence", v)
	}

	v = Convert(map[string]float64{"volume": 0.5})
	mapping, ok := v.AsMapping()
	if !ok {
		t.Fatalf("Convert(map[string]float64).Kind() = %v, want mapping", v.Kind())
	}
	if n, _ := mapping["volume"].AsNumber(); n != 0.5 {
		t.Errorf("mapping[volume] = %v, want 0.5", n)
	}
}

func TestConvert_Opaque(t *testing.T) {
	type weird struct{ a int }

	tests := []struct {
		name   string
		native interface{}
	}{
		{"nil", nil},
		{"struct", weird{a: 1}},
		{"channel", make(chan int)},
		{"func", func() {}},
		{"int-keyed map", map[int]string{1: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Convert(tt.native)
			if v.Kind() != KindOpaque {
				t.Errorf("Convert(%T).Kind() = %v, want opaque", tt.native, v.Kind())
			}
			if desc, _ := v.OpaqueDescription(); desc == "" {
				t.Error("OpaqueDescription() is empty, want descriptive text")
			}
		})
	}
}

func TestConvert_Terminates_OnDeepNesting(t *testing.T) {
	// Build nesting far beyond the recursion cap; conversion must still
	// return, degrading the tail to Opaque.
	var nested interface{} = "leaf"
	for i := 0; i < 50; i++ {
		nested = []interface{}{nested}
	}

	done := make(chan Value, 1)
	go func() { done <- Convert(nested) }()

	select {
	case v := <-done:
		if v.Kind() != KindSequence {
			t.Errorf("Convert(deep).Kind() = %v, want sequence", v.Kind())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Convert did not terminate on deeply nested input")
	}
}

func TestConvert_KnownTypes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v := Convert(ts)
	if s, ok := v.AsString(); !ok || s == "" {
		t.Errorf("Convert(time.Time) = %v, want RFC3339 string", v)
	}

	v = Convert(1500 * time.Millisecond)
	if n, ok := v.AsNumber(); !ok || n != 1.5 {
		t.Errorf("Convert(duration) = %v, want 1.5", v)
	}

	v = Convert(Point{X: 10, Y: 20})
	mapping, ok := v.AsMapping()
	if !ok {
		t.Fatalf("Convert(Point).Kind() = %v, want mapping", v.Kind())
	}
	if x, _ := mapping["x"].AsNumber(); x != 10 {
		t.Errorf("x = %v, want 10", x)
	}

	v = Convert(Size{Width: 100, Height: 40})
	if mapping, _ := v.AsMapping(); mapping["height"].Float64() != 40 {
		t.Errorf("Convert(Size) = %v", v)
	}

	// A Value passes through untouched.
	orig := NumberValue(7)
	if got := Convert(orig); !got.Equal(orig) {
		t.Errorf("Convert(Value) = %v, want %v", got, orig)
	}
}

func TestValue_AccessorsRejectWrongKind(t *testing.T) {
	v := StringValue("text")
	if _, ok := v.AsNumber(); ok {
		t.Error("AsNumber() on string value, ok = true")
	}
	if _, ok := v.AsBool(); ok {
		t.Error("AsBool() on string value, ok = true")
	}
	if _, ok := v.AsSequence(); ok {
		t.Error("AsSequence() on string value, ok = true")
	}
	if _, ok := v.AsMapping(); ok {
		t.Error("AsMapping() on string value, ok = true")
	}
	if _, ok := v.OpaqueDescription(); ok {
		t.Error("OpaqueDescription() on string value, ok = true")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"same strings", StringValue("x"), StringValue("x"), true},
		{"diff strings", StringValue("x"), StringValue("y"), false},
		{"same numbers", NumberValue(1.5), NumberValue(1.5), true},
		{"diff kinds", NumberValue(1), StringValue("1"), false},
		{"same bools", BoolValue(true), BoolValue(true), true},
		{"same sequences", SequenceValue(NumberValue(1), StringValue("a")), SequenceValue(NumberValue(1), StringValue("a")), true},
		{"diff length sequences", SequenceValue(NumberValue(1)), SequenceValue(NumberValue(1), NumberValue(2)), false},
		{"same mappings", MappingValue(map[string]Value{"k": BoolValue(true)}), MappingValue(map[string]Value{"k": BoolValue(true)}), true},
		{"diff mappings", MappingValue(map[string]Value{"k": BoolValue(true)}), MappingValue(map[string]Value{"k": BoolValue(false)}), false},
		{"same opaque", OpaqueValue("desc"), OpaqueValue("desc"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal() = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		value    Value
		expected string
	}{
		{StringValue("hello"), "hello"},
		{NumberValue(3), "3"},
		{NumberValue(3.5), "3.5"},
		{BoolValue(true), "true"},
		{SequenceValue(NumberValue(1), NumberValue(2)), "[1, 2]"},
		{OpaqueValue("chan int"), "<chan int>"},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	v := MappingValue(map[string]Value{
		"name":   StringValue("Vocals"),
		"volume": NumberValue(0.5),
		"muted":  BoolValue(false),
		"tags":   SequenceValue(StringValue("a"), StringValue("b")),
	})

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["name"] != "Vocals" {
		t.Errorf("name = %v, want Vocals", decoded["name"])
	}
	if decoded["volume"] != 0.5 {
		t.Errorf("volume = %v, want 0.5", decoded["volume"])
	}

	// NaN must not break serialization.
	if _, err := json.Marshal(NumberValue(math.NaN())); err != nil {
		t.Errorf("Marshal(NaN) error = %v", err)
	}
}

func TestAttributeSet_Helpers(t *testing.T) {
	attrs := AttributeSet{
		"AXDescription": StringValue("Volume slider"),
		"AXValue":       NumberValue(0.75),
	}

	if s, ok := attrs.GetString("AXDescription"); !ok || s != "Volume slider" {
		t.Errorf("GetString() = %q, %v", s, ok)
	}
	if _, ok := attrs.GetString("AXValue"); ok {
		t.Error("GetString() on number attribute, ok = true")
	}
	if n, ok := attrs.GetNumber("AXValue"); !ok || n != 0.75 {
		t.Errorf("GetNumber() = %v, %v", n, ok)
	}
	if _, ok := attrs.GetNumber("missing"); ok {
		t.Error("GetNumber() on missing attribute, ok = true")
	}

	keys := attrs.Keys()
	if len(keys) != 2 || keys[0] != "AXDescription" || keys[1] != "AXValue" {
		t.Errorf("Keys() = %v, want sorted names", keys)
	}
}
