// Package engine converts form view schemas into the configuration documents
// of concrete front-end form engines. Adapters are registered by name; a view
// selects its engine (with an optional fallback) through EngineSpec.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"metaform/internal/schema"
)

// FieldConversion is the result of converting one field.
type FieldConversion struct {
	// Field is the engine-native field configuration.
	Field map[string]any
	// Warnings lists features the adapter could not express.
	Warnings []string
	// FullyConverted is false when the output degrades the field (for
	// example an unknown widget rendered as a plain input).
	FullyConverted bool
}

// FormConversion is the result of converting a whole view.
type FormConversion struct {
	// Form is the engine-native form document, including containers.
	Form map[string]any
	// Fields is the flat list of converted fields, in view order.
	Fields []map[string]any
	// Warnings aggregates per-field warnings, prefixed with the field name.
	Warnings []string
	// UnsupportedFeatures lists view-level features the engine cannot render.
	UnsupportedFeatures []string
}

// Adapter converts schema documents for one target engine.
type Adapter interface {
	Name() string
	ConvertField(f *schema.FormFieldSchema) FieldConversion
	ConvertForm(view *schema.FormViewSchema) FormConversion
}

// Registry holds the known adapters. Registration is idempotent: registering
// the same name again replaces the previous adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// DefaultRegistry returns a registry with the built-in adapters registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewFormlyAdapter())
	return r
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the adapter for a view's engine spec. A nil spec selects the
// formly adapter. When the named engine is unknown the spec's fallback is
// tried before failing.
func (r *Registry) Resolve(spec *schema.EngineSpec) (Adapter, error) {
	name := EngineFormly
	fallback := ""
	if spec != nil && spec.Name != "" {
		name = spec.Name
		fallback = spec.Fallback
	}
	if a, ok := r.Get(name); ok {
		return a, nil
	}
	if fallback != "" {
		if a, ok := r.Get(fallback); ok {
			return a, nil
		}
		return nil, fmt.Errorf("form engine %q not registered (fallback %q also missing)", name, fallback)
	}
	return nil, fmt.Errorf("form engine %q not registered", name)
}
