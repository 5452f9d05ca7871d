package scval

// Census counts the fallback records and cycle markers in a normalized tree.
func Census(v Value) (unsupported, cycles int) {
	stack := []Value{v}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n := cur.(type) {
		case []Value:
			stack = append(stack, n...)
		case Unsupported:
			unsupported++
		case CycleMarker:
			cycles++
		}
	}
	return unsupported, cycles
}
