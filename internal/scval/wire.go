package scval

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes the JSON wire form {"switch": <tag>, "value": <payload>}.
// Numbers are kept as json.Number so integer range checks stay exact. Only
// malformed JSON is an error; structurally invalid values decode into nodes the
// normalizer reports as Unsupported.
func Parse(data []byte) (*ScVal, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode scval: %w", err)
	}
	return FromWire(raw), nil
}

// FromWire converts a generic decoded JSON value into the tagged union. A
// missing, empty or non-string switch becomes the empty discriminant and the
// whole input is kept as payload, as is any non-object input.
func FromWire(raw any) *ScVal {
	if raw == nil {
		return nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return &ScVal{Value: raw}
	}

	tag, _ := obj["switch"].(string)
	if tag == "" {
		return &ScVal{Value: obj}
	}
	v := &ScVal{Switch: ScValType(tag), Value: obj["value"]}
	if v.Switch == TypeVec {
		if items, ok := obj["value"].([]any); ok {
			elems := make([]*ScVal, len(items))
			for i, item := range items {
				elems[i] = FromWire(item)
			}
			v.Value = elems
		}
	}
	return v
}
