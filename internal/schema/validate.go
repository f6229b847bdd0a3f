package schema

import (
	"fmt"
	"regexp"

	"metaform/internal/schema/expr"
)

// Validation error codes, machine-readable.
const (
	CodeRequired      = "required"
	CodeInvalidType   = "invalid_type"
	CodeDuplicate     = "duplicate"
	CodeOutOfRange    = "out_of_range"
	CodeInvalidFormat = "invalid_format"
	CodeInvalidSource = "invalid_source"
)

// ValidationError is one structural violation, addressed by a dotted path
// into the schema tree.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationWarning is one semantic inconsistency. Warnings never fail the
// overall result; the schema still renders, but authors should be told.
type ValidationWarning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a candidate schema.
type ValidationResult struct {
	Success  bool                `json:"success"`
	Data     *EntitySchema       `json:"-"`
	Errors   []ValidationError   `json:"errors,omitempty"`
	Warnings []ValidationWarning `json:"warnings,omitempty"`
}

// Validator performs structural and semantic validation of schemas.
// Structural violations are terminal; semantic checks run only on
// structurally valid input and only append warnings.
type Validator struct {
	// rules, when set, compile-checks custom rule expressions and reports
	// broken ones as warnings.
	rules *expr.RuleEvaluator
}

// NewValidator creates a validator without expression checking.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithRules creates a validator that compile-checks custom
// validation-rule expressions.
func NewValidatorWithRules(rules *expr.RuleEvaluator) *Validator {
	return &Validator{rules: rules}
}

// ValidateEntitySchema validates the aggregate schema.
func (v *Validator) ValidateEntitySchema(s *EntitySchema) ValidationResult {
	if s == nil {
		return ValidationResult{
			Errors: []ValidationError{{Path: "", Message: "schema is nil", Code: CodeRequired}},
		}
	}

	var errs []ValidationError
	var warns []ValidationWarning

	if s.ID == "" {
		errs = append(errs, ValidationError{Path: "id", Message: "id is required", Code: CodeRequired})
	}
	if s.Name == "" {
		errs = append(errs, ValidationError{Path: "name", Message: "name is required", Code: CodeRequired})
	}
	if s.DataSource.Endpoint == "" {
		errs = append(errs, ValidationError{Path: "dataSource.endpoint", Message: "dataSource.endpoint is required", Code: CodeRequired})
	}

	if len(s.Fields) == 0 {
		errs = append(errs, ValidationError{Path: "fields", Message: "at least one field is required", Code: CodeRequired})
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for i := range s.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		f := &s.Fields[i].FormFieldSchema
		errs = append(errs, v.validateField(f, path)...)
		if f.Field != "" {
			if _, dup := seen[f.Field]; dup {
				errs = append(errs, ValidationError{
					Path:    path + ".field",
					Message: fmt.Sprintf("duplicate field name %q", f.Field),
					Code:    CodeDuplicate,
				})
			}
			seen[f.Field] = struct{}{}
		}
	}

	lookupIDs := make(map[string]struct{}, len(s.Lookups))
	for i := range s.Lookups {
		path := fmt.Sprintf("lookups[%d]", i)
		l := &s.Lookups[i]
		if l.ID == "" {
			errs = append(errs, ValidationError{Path: path + ".id", Message: "lookup id is required", Code: CodeRequired})
		} else {
			if _, dup := lookupIDs[l.ID]; dup {
				errs = append(errs, ValidationError{
					Path:    path + ".id",
					Message: fmt.Sprintf("duplicate lookup id %q", l.ID),
					Code:    CodeDuplicate,
				})
			}
			lookupIDs[l.ID] = struct{}{}
		}
		errs = append(errs, validateOptionsSource(&l.Source, path+".source")...)
	}

	if s.Views.Edit != nil {
		e, w := v.ValidateFormView(s.Views.Edit, "views.edit")
		errs = append(errs, e...)
		warns = append(warns, w...)
	}
	for _, named := range []struct {
		view *FormViewSchema
		path string
	}{
		{s.Views.Add, "views.add"},
		{s.Views.Detail, "views.detail"},
		{s.Views.Clone, "views.clone"},
	} {
		if named.view == nil {
			continue
		}
		e, w := v.ValidateFormView(named.view, named.path)
		errs = append(errs, e...)
		warns = append(warns, w...)
	}

	if len(errs) > 0 {
		return ValidationResult{Success: false, Errors: errs, Warnings: warns}
	}

	// Semantic checks: warnings only, run on structurally valid input.
	warns = append(warns, v.semanticWarnings(s, lookupIDs, seen)...)

	return ValidationResult{Success: true, Data: s, Warnings: warns}
}

// ValidateFormView validates one view schema in isolation. The path prefixes
// every reported violation.
func (v *Validator) ValidateFormView(view *FormViewSchema, path string) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warns []ValidationWarning

	if len(view.Fields) == 0 {
		errs = append(errs, ValidationError{Path: path + ".fields", Message: "fields must be non-empty", Code: CodeRequired})
	}

	seen := make(map[string]struct{}, len(view.Fields))
	for i := range view.Fields {
		fpath := fmt.Sprintf("%s.fields[%d]", path, i)
		f := &view.Fields[i]
		errs = append(errs, v.validateField(f, fpath)...)
		if f.Field != "" {
			if _, dup := seen[f.Field]; dup {
				errs = append(errs, ValidationError{
					Path:    fpath + ".field",
					Message: fmt.Sprintf("duplicate field name %q", f.Field),
					Code:    CodeDuplicate,
				})
			}
			seen[f.Field] = struct{}{}
		}
	}

	for i, g := range view.Groups {
		for _, name := range g.Fields {
			if _, ok := seen[name]; !ok {
				warns = append(warns, ValidationWarning{
					Path:    fmt.Sprintf("%s.groups[%d]", path, i),
					Message: fmt.Sprintf("group %q references unknown field %q", g.ID, name),
				})
			}
		}
	}
	for i, t := range view.Tabs {
		for _, name := range t.Fields {
			if _, ok := seen[name]; !ok {
				warns = append(warns, ValidationWarning{
					Path:    fmt.Sprintf("%s.tabs[%d]", path, i),
					Message: fmt.Sprintf("tab %q references unknown field %q", t.ID, name),
				})
			}
		}
	}

	return errs, warns
}

func (v *Validator) validateField(f *FormFieldSchema, path string) []ValidationError {
	var errs []ValidationError

	if f.Field == "" {
		errs = append(errs, ValidationError{Path: path + ".field", Message: "field name is required", Code: CodeRequired})
	}
	if f.Type == "" {
		errs = append(errs, ValidationError{Path: path + ".type", Message: "field type is required", Code: CodeRequired})
	} else if !IsValidFieldType(f.Type) {
		errs = append(errs, ValidationError{
			Path:    path + ".type",
			Message: fmt.Sprintf("unknown field type %q", f.Type),
			Code:    CodeInvalidType,
		})
	}

	if f.MinLength != nil && *f.MinLength < 0 {
		errs = append(errs, ValidationError{Path: path + ".minLength", Message: "minLength must be non-negative", Code: CodeOutOfRange})
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		errs = append(errs, ValidationError{Path: path + ".maxLength", Message: "maxLength must be >= minLength", Code: CodeOutOfRange})
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		errs = append(errs, ValidationError{Path: path + ".max", Message: "max must be >= min", Code: CodeOutOfRange})
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			errs = append(errs, ValidationError{
				Path:    path + ".pattern",
				Message: fmt.Sprintf("invalid pattern: %v", err),
				Code:    CodeInvalidFormat,
			})
		}
	}

	if f.OptionsSource != nil {
		errs = append(errs, validateOptionsSource(f.OptionsSource, path+".optionsSource")...)
	}

	return errs
}

// validateOptionsSource enforces the exactly-one-of rule. An entirely empty
// source is tolerated as "no source yet".
func validateOptionsSource(s *OptionsSource, path string) []ValidationError {
	if s.Kind() != SourceInvalid {
		return nil
	}
	return []ValidationError{{
		Path:    path,
		Message: "exactly one of options, api or resolver may be populated",
		Code:    CodeInvalidSource,
	}}
}

func (v *Validator) semanticWarnings(s *EntitySchema, lookupIDs, fieldNames map[string]struct{}) []ValidationWarning {
	var warns []ValidationWarning

	primaries, identifiers := 0, 0
	for i := range s.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		f := &s.Fields[i]
		if f.IsPrimary {
			primaries++
		}
		if f.IsIdentifier {
			identifiers++
		}

		if f.LookupRef != "" {
			if _, ok := lookupIDs[f.LookupRef]; !ok {
				warns = append(warns, ValidationWarning{
					Path:    path + ".lookupRef",
					Message: fmt.Sprintf("lookupRef %q does not match any lookup; the field will render without options", f.LookupRef),
				})
			}
		}

		if f.OptionsSource != nil && f.OptionsSource.API != nil {
			for _, dep := range f.OptionsSource.API.DependsOn {
				if _, ok := fieldNames[dep]; !ok {
					warns = append(warns, ValidationWarning{
						Path:    path + ".optionsSource.api.dependsOn",
						Message: fmt.Sprintf("dependsOn references unknown field %q", dep),
					})
				}
			}
		}

		warns = append(warns, v.expressionWarnings(&f.FormFieldSchema, path)...)
	}

	if primaries == 0 {
		warns = append(warns, ValidationWarning{
			Path:    "fields",
			Message: "no field is marked isPrimary",
		})
	}
	if identifiers == 0 {
		warns = append(warns, ValidationWarning{
			Path:    "fields",
			Message: "no field is marked isIdentifier",
		})
	}

	return warns
}

// expressionWarnings parse-checks conditional expressions and, when a rule
// evaluator is configured, compile-checks custom rule expressions.
func (v *Validator) expressionWarnings(f *FormFieldSchema, path string) []ValidationWarning {
	var warns []ValidationWarning

	conds := []struct {
		name string
		cond *ConditionalExpression
	}{
		{"visibleWhen", f.VisibleWhen},
		{"enabledWhen", f.EnabledWhen},
		{"requiredWhen", f.RequiredWhen},
	}
	for _, c := range conds {
		name, cond := c.name, c.cond
		if cond.IsZero() {
			continue
		}
		if _, err := expr.ParseCondition(cond.Expression); err != nil {
			warns = append(warns, ValidationWarning{
				Path:    path + "." + name,
				Message: fmt.Sprintf("invalid condition: %v", err),
			})
		}
	}

	if v.rules != nil {
		for i, rule := range f.Validations {
			if rule.Expression == "" {
				continue
			}
			if err := v.rules.Check(rule.Expression); err != nil {
				warns = append(warns, ValidationWarning{
					Path:    fmt.Sprintf("%s.validations[%d].expression", path, i),
					Message: fmt.Sprintf("rule expression does not compile: %v", err),
				})
			}
		}
	}

	return warns
}
