package scval

// CycleMarker replaces a node whose identity was already expanded in the
// current traversal. Depth is the tracker size at detection time.
type CycleMarker struct {
	Cycle bool `json:"__cycle"`
	Depth *int `json:"depth,omitempty"`
}

// NewCycleMarker builds a marker carrying depth.
func NewCycleMarker(depth int) CycleMarker {
	return CycleMarker{Cycle: true, Depth: &depth}
}

// IsCycleMarker reports whether v is a cycle marker. Decoded JSON objects count
// when their own __cycle key is exactly true.
func IsCycleMarker(v any) bool {
	switch m := v.(type) {
	case CycleMarker:
		return m.Cycle
	case *CycleMarker:
		return m != nil && m.Cycle
	case map[string]any:
		flag, ok := m["__cycle"].(bool)
		return ok && flag
	}
	return false
}

// Tracker is the identity set of nodes visited during one top-level
// normalization. It must not outlive that call.
type Tracker struct {
	seen map[*ScVal]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[*ScVal]struct{})}
}

// HasVisited reports whether the exact node was marked. nil is never visited.
func (t *Tracker) HasVisited(v *ScVal) bool {
	if v == nil {
		return false
	}
	_, ok := t.seen[v]
	return ok
}

// MarkVisited records v. Marking twice is a no-op.
func (t *Tracker) MarkVisited(v *ScVal) {
	if v == nil {
		return
	}
	t.seen[v] = struct{}{}
}

// Depth is the number of distinct nodes marked so far.
func (t *Tracker) Depth() int {
	return len(t.seen)
}
