package scval

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestTrackerMarksByIdentity(t *testing.T) {
	tr := NewTracker()
	a := &ScVal{Switch: TypeI32, Value: 1}
	twin := &ScVal{Switch: TypeI32, Value: 1}

	if tr.Depth() != 0 || tr.HasVisited(a) {
		t.Fatalf("fresh tracker should be empty")
	}
	tr.MarkVisited(a)
	if !tr.HasVisited(a) {
		t.Fatalf("expected a to be visited")
	}
	if tr.HasVisited(twin) {
		t.Fatalf("structurally equal node must not count as visited")
	}

	tr.MarkVisited(a)
	if tr.Depth() != 1 {
		t.Fatalf("marking twice grew tracker to %d", tr.Depth())
	}

	tr.MarkVisited(twin)
	if tr.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", tr.Depth())
	}
}

func TestTrackerIgnoresNil(t *testing.T) {
	tr := NewTracker()
	tr.MarkVisited(nil)
	if tr.HasVisited(nil) || tr.Depth() != 0 {
		t.Fatalf("nil must never be tracked")
	}
}

func TestIsCycleMarker(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"constructed", NewCycleMarker(1), true},
		{"no_depth", CycleMarker{Cycle: true}, true},
		{"pointer", &CycleMarker{Cycle: true}, true},
		{"nil_pointer", (*CycleMarker)(nil), false},
		{"false_flag", CycleMarker{}, false},
		{"map_true", map[string]any{"__cycle": true}, true},
		{"map_false", map[string]any{"__cycle": false}, false},
		{"map_truthy_non_bool", map[string]any{"__cycle": 1}, false},
		{"other_key", map[string]any{"other": true}, false},
		{"nil", nil, false},
		{"primitive", 5, false},
		{"unsupported", newUnsupported("ScvMap", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCycleMarker(tt.in); got != tt.want {
				t.Fatalf("IsCycleMarker(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCycleMarkerJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(NewCycleMarker(3))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{"__cycle": true, "depth": float64(3)}
	if !reflect.DeepEqual(decoded, want) {
		t.Fatalf("decoded = %#v, want %#v", decoded, want)
	}
	if !IsCycleMarker(decoded) {
		t.Fatalf("decoded marker not recognized")
	}

	bare, _ := json.Marshal(CycleMarker{Cycle: true})
	if string(bare) != `{"__cycle":true}` {
		t.Fatalf("marker without depth = %s", bare)
	}
}
