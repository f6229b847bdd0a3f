package version

import (
	"encoding/json"
	"fmt"
)

// jsonParser decodes a document without transformation; every DSL version is
// plain JSON, versions differ only in key naming.
type jsonParser struct{}

func (jsonParser) Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}
	return doc, nil
}

// v100Parser handles 1.0.0 documents, where fields were keyed by "name"
// rather than "field".
type v100Parser struct{ jsonParser }

func (v100Parser) MigrateUp(doc Document) (Document, error) {
	out := cloneDocument(doc)
	forEachField(out, func(field map[string]any) {
		if name, ok := field["name"]; ok {
			if _, taken := field["field"]; !taken {
				field["field"] = name
			}
			delete(field, "name")
		}
	})
	return out, nil
}

// v110Parser handles 1.1.0 documents, where conditional expressions were
// named visibleIf/enabledIf/requiredIf.
type v110Parser struct{ jsonParser }

var conditionRenames = map[string]string{
	"visibleIf":  "visibleWhen",
	"enabledIf":  "enabledWhen",
	"requiredIf": "requiredWhen",
}

func (v110Parser) MigrateUp(doc Document) (Document, error) {
	out := cloneDocument(doc)
	forEachField(out, func(field map[string]any) {
		for from, to := range conditionRenames {
			if value, ok := field[from]; ok {
				if _, taken := field[to]; !taken {
					field[to] = value
				}
				delete(field, from)
			}
		}
	})
	return out, nil
}

// currentParser handles the current version; no upgrade path needed.
type currentParser struct{ jsonParser }

// DefaultRegistry returns a registry with all supported DSL versions
// registered, including the bare-major fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("1.0.0", v100Parser{})
	r.Register("1.1.0", v110Parser{})
	r.Register(CurrentDSLVersion, currentParser{})
	r.Register("1", currentParser{})
	return r
}

// forEachField visits every field object in the master list and in each
// form view's field list.
func forEachField(doc Document, visit func(map[string]any)) {
	visitList := func(raw any) {
		list, ok := raw.([]any)
		if !ok {
			return
		}
		for _, item := range list {
			if field, ok := item.(map[string]any); ok {
				visit(field)
			}
		}
	}

	visitList(doc["fields"])

	views, ok := doc["views"].(map[string]any)
	if !ok {
		return
	}
	for _, rawView := range views {
		view, ok := rawView.(map[string]any)
		if !ok {
			continue
		}
		visitList(view["fields"])
	}
}

// cloneDocument deep-copies via the JSON type universe; migrations never
// mutate their input.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
