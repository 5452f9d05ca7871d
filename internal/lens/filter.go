package lens

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Predicate reports whether an entry's fields satisfy a condition.
type Predicate func(fields map[string]any) (bool, error)

// CompileFilter parses simple expressions over entry fields.
// Supported operators: ==, !=, >=, <=, >, <, in, contains.
// Fields: key, ledger_key, contract, type, durability, status, value,
// last_modified, live_until.
//
//	"status in added,changed"
//	"durability == Persistent"
//	"value > 1_000 * 10"
func CompileFilter(exprs []string) ([]Predicate, error) {
	var preds []Predicate
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Filter keeps the entries every predicate accepts.
func Filter(entries []Entry, preds []Predicate) ([]Entry, error) {
	if len(preds) == 0 {
		return entries, nil
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := matchAll(preds, e.fields())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (e Entry) fields() map[string]any {
	f := map[string]any{
		"key":           e.Key,
		"ledger_key":    e.LedgerKey,
		"contract":      e.ContractID,
		"type":          e.Type,
		"durability":    e.Durability,
		"status":        string(e.Status),
		"last_modified": e.LastModifiedLedger,
	}
	if e.Value != nil {
		f["value"] = e.Value
	}
	if e.LiveUntilLedger != nil {
		f["live_until"] = *e.LiveUntilLedger
	}
	return f
}

func matchAll(preds []Predicate, fields map[string]any) (bool, error) {
	for _, p := range preds {
		ok, err := p(fields)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compile(expr string) (Predicate, error) {
	if strings.Contains(expr, " in ") {
		parts := strings.SplitN(expr, " in ", 2)
		field := strings.TrimSpace(parts[0])
		values := make(map[string]struct{})
		for _, v := range strings.Split(parts[1], ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			values[v] = struct{}{}
		}
		if field == "" || len(values) == 0 {
			return nil, fmt.Errorf("invalid in expression: %s", expr)
		}
		return func(fields map[string]any) (bool, error) {
			arg, ok := fields[field]
			if !ok {
				return false, nil
			}
			_, hit := values[render(arg)]
			return hit, nil
		}, nil
	}

	if strings.Contains(expr, " contains ") {
		parts := strings.SplitN(expr, " contains ", 2)
		field := strings.TrimSpace(parts[0])
		needle := strings.TrimSpace(parts[1])
		if field == "" {
			return nil, fmt.Errorf("invalid contains expression: %s", expr)
		}
		return func(fields map[string]any) (bool, error) {
			val, ok := fields[field]
			if !ok {
				return false, nil
			}
			return strings.Contains(render(val), needle), nil
		}, nil
	}

	var op string
	for _, candidate := range []string{"==", "!=", ">=", "<=", ">", "<"} {
		if strings.Contains(expr, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("unsupported expression: %s", expr)
	}

	parts := strings.SplitN(expr, op, 2)
	field := strings.TrimSpace(parts[0])
	rhsRaw := strings.TrimSpace(parts[1])
	if field == "" {
		return nil, fmt.Errorf("invalid expression: %s", expr)
	}
	numRHS, rhsIsNum := evaluateNumber(rhsRaw)

	return func(fields map[string]any) (bool, error) {
		val, ok := fields[field]
		if !ok {
			return false, nil
		}

		if rhsIsNum {
			if lhs, ok := toNumber(val); ok {
				switch op {
				case "==":
					return lhs == numRHS, nil
				case "!=":
					return lhs != numRHS, nil
				case ">":
					return lhs > numRHS, nil
				case "<":
					return lhs < numRHS, nil
				case ">=":
					return lhs >= numRHS, nil
				case "<=":
					return lhs <= numRHS, nil
				}
			}
		}

		lhs := render(val)
		switch op {
		case "==":
			return lhs == rhsRaw, nil
		case "!=":
			return lhs != rhsRaw, nil
		default:
			return false, nil
		}
	}, nil
}

// render prints scalars plainly and composites as compact JSON.
func render(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err == nil {
			return string(raw)
		}
	}
	return fmt.Sprint(v)
}

// evaluateNumber accepts "100", "1e6", "1_000_000" and one multiplication
// ("1_000 * 1e7").
func evaluateNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if strings.Contains(s, "*") {
		parts := strings.Split(s, "*")
		if len(parts) != 2 {
			return 0, false
		}
		a, ok1 := evaluateNumber(parts[0])
		b, ok2 := evaluateNumber(parts[1])
		if !ok1 || !ok2 {
			return 0, false
		}
		return a * b, true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return evaluateNumber(n)
	default:
		return 0, false
	}
}
