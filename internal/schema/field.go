package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the closed set of supported field widgets.
type FieldType string

const (
	TypeText         FieldType = "text"
	TypeTextarea     FieldType = "textarea"
	TypeRichText     FieldType = "richtext"
	TypeNumber       FieldType = "number"
	TypeCurrency     FieldType = "currency"
	TypePercent      FieldType = "percent"
	TypeCheckbox     FieldType = "checkbox"
	TypeToggle       FieldType = "toggle"
	TypeSelect       FieldType = "select"
	TypeMultiSelect  FieldType = "multiselect"
	TypeRadio        FieldType = "radio"
	TypeAutocomplete FieldType = "autocomplete"
	TypeDate         FieldType = "date"
	TypeDateTime     FieldType = "datetime"
	TypeTime         FieldType = "time"
	TypeDateRange    FieldType = "daterange"
	TypeEmail        FieldType = "email"
	TypePhone        FieldType = "phone"
	TypeURL          FieldType = "url"
	TypePassword     FieldType = "password"
	TypeFile         FieldType = "file"
	TypeImage        FieldType = "image"
	TypeColor        FieldType = "color"
	TypeRating       FieldType = "rating"
	TypeJSON         FieldType = "json"
	TypeHidden       FieldType = "hidden"

	// Readonly display types
	TypeLabel FieldType = "label"
	TypeLink  FieldType = "link"

	// Structural (non-input) types
	TypeDivider FieldType = "divider"
	TypeHeading FieldType = "heading"
)

var fieldTypes = map[FieldType]struct{}{
	TypeText: {}, TypeTextarea: {}, TypeRichText: {}, TypeNumber: {},
	TypeCurrency: {}, TypePercent: {}, TypeCheckbox: {}, TypeToggle: {},
	TypeSelect: {}, TypeMultiSelect: {}, TypeRadio: {}, TypeAutocomplete: {},
	TypeDate: {}, TypeDateTime: {}, TypeTime: {}, TypeDateRange: {},
	TypeEmail: {}, TypePhone: {}, TypeURL: {}, TypePassword: {},
	TypeFile: {}, TypeImage: {}, TypeColor: {}, TypeRating: {},
	TypeJSON: {}, TypeHidden: {}, TypeLabel: {}, TypeLink: {},
	TypeDivider: {}, TypeHeading: {},
}

// IsValidFieldType reports membership in the closed FieldType enum.
func IsValidFieldType(t FieldType) bool {
	_, ok := fieldTypes[t]
	return ok
}

// IsDecorative reports whether the type renders no value (divider, heading).
func (t FieldType) IsDecorative() bool {
	return t == TypeDivider || t == TypeHeading
}

// ConditionalExpression is either a raw condition string or an
// {expression, dependsOn} pair. The JSON form accepts both.
type ConditionalExpression struct {
	Expression string   `json:"expression"`
	DependsOn  []string `json:"dependsOn,omitempty"`
}

// IsZero reports whether no expression is set.
func (e *ConditionalExpression) IsZero() bool {
	return e == nil || e.Expression == ""
}

// Clone returns a deep copy.
func (e *ConditionalExpression) Clone() *ConditionalExpression {
	if e == nil {
		return nil
	}
	out := *e
	if e.DependsOn != nil {
		out.DependsOn = append([]string(nil), e.DependsOn...)
	}
	return &out
}

// UnmarshalJSON accepts either a bare string or an object.
func (e *ConditionalExpression) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*e = ConditionalExpression{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ConditionalExpression{Expression: s}
		return nil
	}
	type raw ConditionalExpression
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("conditional expression: expected string or object: %w", err)
	}
	*e = ConditionalExpression(r)
	return nil
}

// MarshalJSON emits the compact string form when no dependsOn is declared.
func (e ConditionalExpression) MarshalJSON() ([]byte, error) {
	if len(e.DependsOn) == 0 {
		return json.Marshal(e.Expression)
	}
	type raw ConditionalExpression
	return json.Marshal(raw(e))
}

// ValidationRule is one declarative validation constraint beyond the
// built-in required/min/max set. Expression rules are evaluated against the
// form values map ("values" variable).
type ValidationRule struct {
	Type       string `json:"type"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// FieldLayout carries layout hints for a single field.
type FieldLayout struct {
	// ColSpan is in grid columns; zero means the generator decides.
	ColSpan int `json:"colSpan,omitempty"`
	// Order is an explicit sort position within the view; zero means unset.
	Order    int    `json:"order,omitempty"`
	CSSClass string `json:"cssClass,omitempty"`
}

// FormFieldSchema is one field's full declarative definition.
type FormFieldSchema struct {
	// Field is the property name; must be non-empty and unique within the
	// owning FormViewSchema.
	Field string    `json:"field"`
	Type  FieldType `json:"type"`

	Label        string `json:"label,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	Description  string `json:"description,omitempty"`
	HelpText     string `json:"helpText,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`

	// Validation constraints
	Required    bool             `json:"required,omitempty"`
	MinLength   *int             `json:"minLength,omitempty"`
	MaxLength   *int             `json:"maxLength,omitempty"`
	Min         *float64         `json:"min,omitempty"`
	Max         *float64         `json:"max,omitempty"`
	Pattern     string           `json:"pattern,omitempty"`
	Validations []ValidationRule `json:"validations,omitempty"`

	// Choice sources. An explicit OptionsSource wins over LookupRef.
	Options       []FieldOption  `json:"options,omitempty"`
	OptionsSource *OptionsSource `json:"optionsSource,omitempty"`
	LookupRef     string         `json:"lookupRef,omitempty"`

	// State flags
	Readonly bool `json:"readonly,omitempty"`
	Disabled bool `json:"disabled,omitempty"`
	Hidden   bool `json:"hidden,omitempty"`

	// Conditional expressions
	VisibleWhen  *ConditionalExpression `json:"visibleWhen,omitempty"`
	EnabledWhen  *ConditionalExpression `json:"enabledWhen,omitempty"`
	RequiredWhen *ConditionalExpression `json:"requiredWhen,omitempty"`

	// Layout and grouping
	Layout *FieldLayout `json:"layout,omitempty"`
	Group  string       `json:"group,omitempty"`
	Tab    string       `json:"tab,omitempty"`

	// Type-specific extras
	Rows       int      `json:"rows,omitempty"`       // textarea
	Accept     string   `json:"accept,omitempty"`     // file/image
	DateFormat string   `json:"dateFormat,omitempty"` // date/datetime
	Currency   string   `json:"currency,omitempty"`   // currency code
	Step       *float64 `json:"step,omitempty"`       // number
	MaxRating  int      `json:"maxRating,omitempty"`  // rating
	Multiple   bool     `json:"multiple,omitempty"`   // file/select
	Href       string   `json:"href,omitempty"`       // link template
}

// Clone returns a deep copy of the field.
func (f *FormFieldSchema) Clone() *FormFieldSchema {
	if f == nil {
		return nil
	}
	out := *f
	out.MinLength = clonePtr(f.MinLength)
	out.MaxLength = clonePtr(f.MaxLength)
	out.Min = clonePtr(f.Min)
	out.Max = clonePtr(f.Max)
	out.Step = clonePtr(f.Step)
	if f.Validations != nil {
		out.Validations = append([]ValidationRule(nil), f.Validations...)
	}
	if f.Options != nil {
		out.Options = append([]FieldOption(nil), f.Options...)
	}
	out.OptionsSource = f.OptionsSource.Clone()
	out.VisibleWhen = f.VisibleWhen.Clone()
	out.EnabledWhen = f.EnabledWhen.Clone()
	out.RequiredWhen = f.RequiredWhen.Clone()
	if f.Layout != nil {
		l := *f.Layout
		out.Layout = &l
	}
	return &out
}

// HasChoices reports whether the field type renders a choice list.
func (f *FormFieldSchema) HasChoices() bool {
	switch f.Type {
	case TypeSelect, TypeMultiSelect, TypeRadio, TypeAutocomplete:
		return true
	}
	return false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
