// Package diff classifies how a cached value relates to a freshly fetched one.
package diff

import (
	"math"
	"reflect"
)

// Status is the change class between two snapshots of a value.
type Status string

const (
	Added     Status = "added"
	Removed   Status = "removed"
	Changed   Status = "changed"
	Unchanged Status = "unchanged"
)

// Resolve compares prev and next. Absence (nil, or a nil pointer, map or
// slice) on one side only is added or removed. NaN equals NaN. Values of a
// different kind are changed; numbers compare by value whatever their Go type.
// Composite values compare structurally.
func Resolve(prev, next any) Status {
	prevNil, nextNil := isNil(prev), isNil(next)
	switch {
	case prevNil && !nextNil:
		return Added
	case !prevNil && nextNil:
		return Removed
	case prevNil && nextNil:
		return Unchanged
	}
	return compare(prev, next)
}

// Compare classifies two values that are both known to exist, so a nil value
// is a legitimate value (a void entry) rather than absence. The result is
// never Added or Removed.
func Compare(prev, next any) Status {
	prevNil, nextNil := isNil(prev), isNil(next)
	switch {
	case prevNil && nextNil:
		return Unchanged
	case prevNil || nextNil:
		return Changed
	}
	return compare(prev, next)
}

func compare(prev, next any) Status {
	pf, pNum := asFloat(prev)
	nf, nNum := asFloat(next)
	if pNum && nNum {
		pNaN, nNaN := math.IsNaN(pf), math.IsNaN(nf)
		if pNaN || nNaN {
			if pNaN && nNaN {
				return Unchanged
			}
			return Changed
		}
		if pf == nf {
			return Unchanged
		}
		return Changed
	}
	if pNum != nNum {
		return Changed
	}

	if reflect.TypeOf(prev) != reflect.TypeOf(next) {
		return Changed
	}
	if reflect.DeepEqual(prev, next) {
		return Unchanged
	}
	return Changed
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
