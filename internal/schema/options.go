// Package schema defines the engine-agnostic entity and form schema DSL.
// Schemas are declarative, JSON-serializable and immutable once constructed;
// every derivation returns a structural copy and never mutates its input.
package schema

// FieldOption is a single selectable choice for a field.
// Immutable value object; produced once, never mutated.
type FieldOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	Badge       string `json:"badge,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	IsDefault   bool   `json:"isDefault,omitempty"`
	Group       string `json:"group,omitempty"`
}

// SourceKind discriminates the populated variant of an OptionsSource.
type SourceKind string

const (
	SourceNone     SourceKind = "none"
	SourceStatic   SourceKind = "static"
	SourceAPI      SourceKind = "api"
	SourceResolver SourceKind = "resolver"
	// SourceInvalid means more than one variant is populated.
	SourceInvalid SourceKind = "invalid"
)

// OptionsSource describes how the choice list for a selectable field is
// obtained. Exactly one of Options, API or Resolver may be populated; an
// entirely empty source is tolerated as "no source yet". The validator
// enforces the exactly-one-of rule, Kind gives variant dispatch.
type OptionsSource struct {
	// Static inline list
	Options []FieldOption `json:"options,omitempty"`

	// HTTP-resolved list
	API *APIOptionsSource `json:"api,omitempty"`

	// Named custom resolver
	Resolver *ResolverOptionsSource `json:"resolver,omitempty"`

	// Shared empty-placeholder handling
	IncludeEmpty bool   `json:"includeEmpty,omitempty"`
	EmptyLabel   string `json:"emptyLabel,omitempty"`
	EmptyValue   string `json:"emptyValue,omitempty"`
}

// Kind reports which variant of the source is populated.
func (s *OptionsSource) Kind() SourceKind {
	if s == nil {
		return SourceNone
	}
	populated := 0
	kind := SourceNone
	if len(s.Options) > 0 {
		populated++
		kind = SourceStatic
	}
	if s.API != nil && s.API.Endpoint != "" {
		populated++
		kind = SourceAPI
	}
	if s.Resolver != nil && s.Resolver.Name != "" {
		populated++
		kind = SourceResolver
	}
	if populated > 1 {
		return SourceInvalid
	}
	return kind
}

// EmptyOption returns the placeholder option configured on the source.
func (s *OptionsSource) EmptyOption() FieldOption {
	label := s.EmptyLabel
	if label == "" {
		label = "—"
	}
	return FieldOption{Value: s.EmptyValue, Label: label}
}

// Clone returns a deep copy of the source.
func (s *OptionsSource) Clone() *OptionsSource {
	if s == nil {
		return nil
	}
	out := *s
	if s.Options != nil {
		out.Options = append([]FieldOption(nil), s.Options...)
	}
	if s.API != nil {
		api := *s.API
		if s.API.DependsOn != nil {
			api.DependsOn = append([]string(nil), s.API.DependsOn...)
		}
		out.API = &api
	}
	if s.Resolver != nil {
		res := *s.Resolver
		if s.Resolver.Params != nil {
			res.Params = make(map[string]any, len(s.Resolver.Params))
			for k, v := range s.Resolver.Params {
				res.Params[k] = v
			}
		}
		out.Resolver = &res
	}
	return &out
}

// CacheScope controls how option cache keys are namespaced.
type CacheScope string

const (
	CacheScopeGlobal CacheScope = "global"
	CacheScopeEntity CacheScope = "entity"
)

// APIOptionsSource resolves options over HTTP.
type APIOptionsSource struct {
	// Endpoint template; may contain ${field} placeholders interpolated
	// from the current form values.
	Endpoint string `json:"endpoint"`

	// Field-name mappings from response items to FieldOption.
	// ValueField and LabelField default to "value" and "label".
	ValueField       string `json:"valueField,omitempty"`
	LabelField       string `json:"labelField,omitempty"`
	IconField        string `json:"iconField,omitempty"`
	DescriptionField string `json:"descriptionField,omitempty"`
	BadgeField       string `json:"badgeField,omitempty"`
	GroupField       string `json:"groupField,omitempty"`

	// ResponsePath is a dot-path into the response body that addresses the
	// item list (e.g. "data.items"). Empty means the body itself is the list.
	ResponsePath string `json:"responsePath,omitempty"`

	// Filter and Sort are mini-DSL expressions applied to the raw items
	// before projection: `field op literal` terms joined by &&, and
	// "field asc|desc".
	Filter string `json:"filter,omitempty"`
	Sort   string `json:"sort,omitempty"`

	// DependsOn names form fields whose value changes trigger a reload and
	// participate in the cache key.
	DependsOn []string `json:"dependsOn,omitempty"`

	// LoadWhen is a guard condition (`field op value`); when unmet the load
	// yields an empty list without a request.
	LoadWhen string `json:"loadWhen,omitempty"`

	// CacheKey enables caching; absence disables it for this source.
	CacheKey string `json:"cacheKey,omitempty"`
	// CacheTTL is in seconds; zero means the loader default.
	CacheTTL   int        `json:"cacheTtl,omitempty"`
	CacheScope CacheScope `json:"cacheScope,omitempty"`
}

// ResolverOptionsSource dispatches to a named resolver registered at startup.
type ResolverOptionsSource struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// DependencyFields returns the fields that should trigger a reload of this
// source when their values change.
func (s *OptionsSource) DependencyFields() []string {
	if s == nil || s.API == nil {
		return nil
	}
	return s.API.DependsOn
}
