package scval

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func i32(v any) *ScVal { return &ScVal{Switch: TypeI32, Value: v} }
func u32(v any) *ScVal { return &ScVal{Switch: TypeU32, Value: v} }
func vec(els ...*ScVal) *ScVal {
	return &ScVal{Switch: TypeVec, Value: els}
}

func TestNormalizePrimitives(t *testing.T) {
	tests := []struct {
		name string
		in   *ScVal
		want Value
	}{
		{"bool_true", &ScVal{Switch: TypeBool, Value: true}, true},
		{"bool_false", &ScVal{Switch: TypeBool, Value: false}, false},
		{"bool_lenient_string", &ScVal{Switch: TypeBool, Value: "true"}, false},
		{"bool_lenient_nil", &ScVal{Switch: TypeBool}, false},
		{"void", &ScVal{Switch: TypeVoid}, nil},
		{"void_ignores_payload", &ScVal{Switch: TypeVoid, Value: 123}, nil},
		{"i32", i32(42), int64(42)},
		{"i32_negative", i32(-42), int64(-42)},
		{"string", &ScVal{Switch: TypeString, Value: "hello"}, "hello"},
		{"string_lenient", &ScVal{Switch: TypeString, Value: 7}, ""},
		{"symbol", &ScVal{Switch: TypeSymbol, Value: "transfer"}, "transfer"},
		{"symbol_lenient", &ScVal{Switch: TypeSymbol}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Normalize() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeIntegerBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		in       *ScVal
		want     Value
		fallback string
	}{
		{"i32_max", i32(2147483647), int64(2147483647), ""},
		{"i32_min", i32(-2147483648), int64(-2147483648), ""},
		{"i32_over", i32(2147483648), nil, "ScvI32"},
		{"i32_under", i32(-2147483649), nil, "ScvI32"},
		{"i32_fraction", i32(1.5), nil, "ScvI32"},
		{"i32_integral_float", i32(float64(7)), int64(7), ""},
		{"i32_nan", i32(math.NaN()), nil, "ScvI32"},
		{"i32_string", i32("42"), nil, "ScvI32"},
		{"i32_nil", i32(nil), nil, "ScvI32"},
		{"i32_json_number", i32(json.Number("-12")), int64(-12), ""},
		{"u32_max", u32(uint64(4294967295)), int64(4294967295), ""},
		{"u32_zero", u32(0), int64(0), ""},
		{"u32_negative", u32(-1), nil, "ScvU32"},
		{"u32_over", u32(4294967296), nil, "ScvU32"},
		{"u32_bool", u32(true), nil, "ScvU32"},
		{"u32_json_exponent", u32(json.Number("1e3")), int64(1000), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if tt.fallback == "" {
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("Normalize() = %#v, want %#v", got, tt.want)
				}
				return
			}
			u, ok := got.(Unsupported)
			if !ok {
				t.Fatalf("expected Unsupported, got %#v", got)
			}
			if u.Variant != tt.fallback {
				t.Fatalf("variant = %q, want %q", u.Variant, tt.fallback)
			}
			if f, isFloat := tt.in.Value.(float64); isFloat && math.IsNaN(f) {
				return
			}
			if !reflect.DeepEqual(u.RawData, tt.in.Value) {
				t.Fatalf("rawData = %#v, want %#v", u.RawData, tt.in.Value)
			}
		})
	}
}

func TestNormalizeInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		in      *ScVal
		variant string
		raw     any
	}{
		{"nil", nil, "Invalid", nil},
		{"empty", &ScVal{}, "Invalid", nil},
		{"from_wire_empty_object", FromWire(map[string]any{}), "Invalid", map[string]any{}},
		{"from_wire_null_switch", FromWire(map[string]any{"switch": nil, "value": json.Number("5")}), "Invalid",
			map[string]any{"switch": nil, "value": json.Number("5")}},
		{"from_wire_numeric_switch", FromWire(map[string]any{"switch": 3}), "Invalid", map[string]any{"switch": 3}},
		{"from_wire_non_object", FromWire("hello"), "Invalid", "hello"},
		{"unknown_tag", &ScVal{Switch: "SomeUnknownTag"}, "SomeUnknownTag", nil},
		{"undecoded_known_tag", &ScVal{Switch: TypeU64, Value: "AAAABQ=="}, "ScvU64", "AAAABQ=="},
		{"map_tag", &ScVal{Switch: TypeMap}, "ScvMap", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in).(Unsupported)
			if !ok {
				t.Fatalf("expected Unsupported")
			}
			if !got.Unsupported || got.Variant != tt.variant {
				t.Fatalf("got %#v, want variant %q", got, tt.variant)
			}
			if !reflect.DeepEqual(got.RawData, tt.raw) {
				t.Fatalf("rawData = %#v, want %#v", got.RawData, tt.raw)
			}
		})
	}
}

func TestNormalizeFallbackIsDeterministic(t *testing.T) {
	in := &ScVal{Switch: TypeI128, Value: map[string]any{"hi": json.Number("1"), "lo": json.Number("2")}}

	first := Normalize(in)
	second := Normalize(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ: %#v vs %#v", first, second)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("json differs: %s vs %s", a, b)
	}
	if string(a) != `{"__unsupported":true,"variant":"ScvI128","rawData":{"hi":1,"lo":2}}` {
		t.Fatalf("unexpected json: %s", a)
	}
}

func TestNormalizeVectors(t *testing.T) {
	tests := []struct {
		name string
		in   *ScVal
		want Value
	}{
		{"empty", vec(), []Value{}},
		{"nil_payload", &ScVal{Switch: TypeVec}, []Value{}},
		{"non_slice_payload", &ScVal{Switch: TypeVec, Value: "oops"}, []Value{}},
		{
			"mixed_order",
			vec(
				i32(100),
				&ScVal{Switch: TypeBool, Value: false},
				&ScVal{Switch: TypeString, Value: "test"},
				i32(50),
				&ScVal{Switch: TypeBool, Value: true},
			),
			[]Value{int64(100), false, "test", int64(50), true},
		},
		{
			"nested",
			vec(vec(i32(1), i32(2)), vec(i32(3), i32(4))),
			[]Value{[]Value{int64(1), int64(2)}, []Value{int64(3), int64(4)}},
		},
		{
			"nested_mixed",
			vec(&ScVal{Switch: TypeBool, Value: true}, vec(i32(42), &ScVal{Switch: TypeString, Value: "test"}), &ScVal{Switch: TypeVoid}),
			[]Value{true, []Value{int64(42), "test"}, nil},
		},
		{
			"nil_element",
			vec(i32(1), nil),
			[]Value{int64(1), Unsupported{Unsupported: true, Variant: "Invalid"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Normalize() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeEmptyVectorMarshalsAsArray(t *testing.T) {
	out, err := json.Marshal(Normalize(&ScVal{Switch: TypeVec}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "[]" {
		t.Fatalf("got %s, want []", out)
	}
}

func TestNormalizeSelfReference(t *testing.T) {
	self := &ScVal{Switch: TypeVec}
	self.Value = []*ScVal{self}

	got, ok := Normalize(self).([]Value)
	if !ok || len(got) != 1 {
		t.Fatalf("expected one-element array, got %#v", got)
	}
	if !IsCycleMarker(got[0]) {
		t.Fatalf("expected cycle marker, got %#v", got[0])
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("cyclic result not serializable: %v", err)
	}
}

func TestNormalizeIndirectCycle(t *testing.T) {
	a := &ScVal{Switch: TypeVec}
	b := vec(a)
	a.Value = []*ScVal{b}

	got := Normalize(a)
	want := []Value{[]Value{NewCycleMarker(2)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %#v, want %#v", got, want)
	}
}

func TestNormalizeDeepCycle(t *testing.T) {
	a := &ScVal{Switch: TypeVec}
	b := vec(a)
	c := vec(b)
	a.Value = []*ScVal{c}

	level0 := Normalize(a).([]Value)
	level1 := level0[0].([]Value)
	level2 := level1[0].([]Value)
	if len(level2) != 1 || !IsCycleMarker(level2[0]) {
		t.Fatalf("expected cycle marker at third level, got %#v", level2)
	}
	marker := level2[0].(CycleMarker)
	if marker.Depth == nil || *marker.Depth != 3 {
		t.Fatalf("unexpected depth: %#v", marker.Depth)
	}
}

func TestNormalizeSiblingRevisitIsCycle(t *testing.T) {
	shared := i32(42)
	got := Normalize(vec(shared, shared))
	want := []Value{int64(42), NewCycleMarker(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %#v, want %#v", got, want)
	}
}

func TestNormalizeSharedSubtreeAcrossBranches(t *testing.T) {
	inner := vec(i32(99))
	mid := vec(inner)
	outer := vec(mid, inner)

	got := Normalize(outer).([]Value)
	if !reflect.DeepEqual(got[0], []Value{[]Value{int64(99)}}) {
		t.Fatalf("first branch = %#v", got[0])
	}
	if !IsCycleMarker(got[1]) {
		t.Fatalf("expected second reference to be a cycle marker, got %#v", got[1])
	}
}

func TestNormalizeTrackerIsPerCall(t *testing.T) {
	one := vec(i32(1))
	two := vec(i32(2))

	if got := Normalize(one); !reflect.DeepEqual(got, []Value{int64(1)}) {
		t.Fatalf("first call = %#v", got)
	}
	if got := Normalize(two); !reflect.DeepEqual(got, []Value{int64(2)}) {
		t.Fatalf("second call = %#v", got)
	}
	// the same value again must not be flagged by state from an earlier call
	if got := Normalize(one); !reflect.DeepEqual(got, []Value{int64(1)}) {
		t.Fatalf("repeat call = %#v", got)
	}
}

func TestNormalizeWithThreadedTracker(t *testing.T) {
	tracker := NewTracker()
	node := i32(5)
	tracker.MarkVisited(node)

	if got := NormalizeWith(node, tracker); !IsCycleMarker(got) {
		t.Fatalf("expected cycle marker from threaded tracker, got %#v", got)
	}
	if got := NormalizeWith(nil, tracker); !IsUnsupported(got) {
		t.Fatalf("expected fallback for nil, got %#v", got)
	}
}

func TestNormalizeDeepNestingDoesNotRecurse(t *testing.T) {
	const depth = 200000
	root := &ScVal{Switch: TypeVec}
	cur := root
	for i := 0; i < depth; i++ {
		next := &ScVal{Switch: TypeVec}
		cur.Value = []*ScVal{next}
		cur = next
	}

	got := Normalize(root)
	levels := 0
	for {
		arr, ok := got.([]Value)
		if !ok {
			t.Fatalf("unexpected node at level %d: %#v", levels, got)
		}
		if len(arr) == 0 {
			break
		}
		got = arr[0]
		levels++
	}
	if levels != depth {
		t.Fatalf("levels = %d, want %d", levels, depth)
	}
}

func TestCensus(t *testing.T) {
	self := &ScVal{Switch: TypeVec}
	self.Value = []*ScVal{self, i32("bad"), &ScVal{Switch: TypeMap}, i32(1)}

	unsupported, cycles := Census(Normalize(self))
	if unsupported != 2 || cycles != 1 {
		t.Fatalf("Census = (%d, %d), want (2, 1)", unsupported, cycles)
	}
	if u, c := Census(int64(3)); u != 0 || c != 0 {
		t.Fatalf("scalar census = (%d, %d)", u, c)
	}
}
