package scval

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// Normalize converts v into a JSON-safe tree with a fresh tracker. It never
// panics: malformed input becomes Unsupported, revisited nodes a CycleMarker.
func Normalize(v *ScVal) Value {
	return NormalizeWith(v, nil)
}

// NormalizeWith normalizes v against t so a nested sub-call can share visited
// state with its caller. A nil tracker starts a new top-level traversal.
//
// Vectors are expanded with an explicit frame stack instead of call recursion;
// nodes are still marked in pre-order before their children are visited, so a
// second reference to an already expanded node (ancestor or sibling) yields a
// CycleMarker.
func NormalizeWith(v *ScVal, t *Tracker) Value {
	if t == nil {
		t = NewTracker()
	}

	out, frame := step(v, t)
	if frame == nil {
		return out
	}

	stack := []*vecFrame{frame}
	for {
		top := stack[len(stack)-1]
		if top.next == len(top.elems) {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return top.out
			}
			parent := stack[len(stack)-1]
			parent.out = append(parent.out, top.out)
			continue
		}

		el := top.elems[top.next]
		top.next++
		val, child := step(el, t)
		if child != nil {
			stack = append(stack, child)
			continue
		}
		top.out = append(top.out, val)
	}
}

type vecFrame struct {
	elems []*ScVal
	next  int
	out   []Value
}

// step resolves a single node. A non-empty vector is handed back as a frame
// for the caller to descend into.
func step(v *ScVal, t *Tracker) (Value, *vecFrame) {
	if v == nil {
		return newUnsupported(invalidVariant, nil), nil
	}
	if t.HasVisited(v) {
		return NewCycleMarker(t.Depth()), nil
	}
	t.MarkVisited(v)

	switch v.Switch {
	case "":
		// Value is the raw input here, see FromWire.
		return newUnsupported(invalidVariant, v.Value), nil
	case TypeBool:
		b, _ := v.Value.(bool)
		return b, nil
	case TypeVoid:
		return nil, nil
	case TypeU32:
		if n, ok := toInt64(v.Value); ok && n >= 0 && n <= math.MaxUint32 {
			return n, nil
		}
		return newUnsupported(string(TypeU32), v.Value), nil
	case TypeI32:
		if n, ok := toInt64(v.Value); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return n, nil
		}
		return newUnsupported(string(TypeI32), v.Value), nil
	case TypeString, TypeSymbol:
		s, _ := v.Value.(string)
		return s, nil
	case TypeVec:
		elems, _ := v.Value.([]*ScVal)
		if len(elems) == 0 {
			return []Value{}, nil
		}
		return nil, &vecFrame{elems: elems, out: make([]Value, 0, len(elems))}
	}

	// Recognized-but-undecoded tags and unknown tags both echo the tag.
	return newUnsupported(string(v.Switch), v.Value), nil
}

// toInt64 accepts integral values of any numeric kind and json.Number literals.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
