package schema

import (
	"encoding/json"
	"fmt"
)

// DeepMerge merges override into base recursively and returns a new map.
// The conflict rule is fixed and relied upon by every cascading layer:
//   - scalars: the override value always wins
//   - objects: merged recursively
//   - arrays: replaced wholesale, never concatenated
//
// Neither input is mutated.
func DeepMerge(base, override map[string]any) map[string]any {
	out := cloneAnyMap(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}
	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = cloneAnyValue(ov)
			continue
		}
		bm, bIsMap := bv.(map[string]any)
		om, oIsMap := ov.(map[string]any)
		if bIsMap && oIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = cloneAnyValue(ov)
	}
	return out
}

// MergeFormViewSchema applies a partial override document on top of a view
// schema, returning a new schema. The base is not mutated.
func MergeFormViewSchema(base *FormViewSchema, override map[string]any) (*FormViewSchema, error) {
	if base == nil {
		return nil, fmt.Errorf("merge view schema: base is nil")
	}
	if len(override) == 0 {
		return base.Clone(), nil
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("merge view schema: marshal base: %w", err)
	}
	var baseMap map[string]any
	if err := json.Unmarshal(raw, &baseMap); err != nil {
		return nil, fmt.Errorf("merge view schema: decode base: %w", err)
	}
	merged := DeepMerge(baseMap, override)
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("merge view schema: marshal merged: %w", err)
	}
	var result FormViewSchema
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("merge view schema: decode merged: %w", err)
	}
	return &result, nil
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAnyValue(v)
	}
	return out
}

func cloneAnyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAnyValue(e)
		}
		return out
	default:
		return v
	}
}
