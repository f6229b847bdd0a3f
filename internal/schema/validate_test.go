package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/schema/expr"
)

func validSchema() *EntitySchema {
	return NewEntitySchema("product", "Product").
		Endpoint("/api/products").
		Field(Text("name").Label("Name").Required().Primary()).
		Field(Text("sku").Identifier()).
		Build()
}

func errorPaths(r ValidationResult) []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Path
	}
	return out
}

func TestValidateEntitySchema_Valid(t *testing.T) {
	v := NewValidator()
	res := v.ValidateEntitySchema(validSchema())
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Data)
}

func TestValidateEntitySchema_MissingRequired(t *testing.T) {
	v := NewValidator()
	res := v.ValidateEntitySchema(&EntitySchema{})
	require.False(t, res.Success)

	paths := errorPaths(res)
	assert.Contains(t, paths, "id")
	assert.Contains(t, paths, "name")
	assert.Contains(t, paths, "dataSource.endpoint")
	assert.Contains(t, paths, "fields")
}

func TestValidateEntitySchema_Nil(t *testing.T) {
	res := NewValidator().ValidateEntitySchema(nil)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
}

func TestValidateEntitySchema_FieldErrors(t *testing.T) {
	min, max := 10, 2
	lo, hi := 100.0, 1.0
	s := validSchema()
	s.Fields = append(s.Fields,
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "bad", Type: "spreadsheet"}},
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "name", Type: TypeText}},
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "len", Type: TypeText, MinLength: &min, MaxLength: &max}},
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "rng", Type: TypeNumber, Min: &lo, Max: &hi}},
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "re", Type: TypeText, Pattern: "("}},
		EntityFieldDefinition{FormFieldSchema: FormFieldSchema{Field: "", Type: TypeText}},
	)

	res := NewValidator().ValidateEntitySchema(s)
	require.False(t, res.Success)

	codes := map[string]bool{}
	for _, e := range res.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[CodeInvalidType])
	assert.True(t, codes[CodeDuplicate])
	assert.True(t, codes[CodeOutOfRange])
	assert.True(t, codes[CodeInvalidFormat])
	assert.True(t, codes[CodeRequired])
}

func TestValidateEntitySchema_AmbiguousOptionsSource(t *testing.T) {
	s := validSchema()
	s.Fields = append(s.Fields, EntityFieldDefinition{FormFieldSchema: FormFieldSchema{
		Field: "status",
		Type:  TypeSelect,
		OptionsSource: &OptionsSource{
			Options: []FieldOption{{Value: "a", Label: "A"}},
			API:     &APIOptionsSource{Endpoint: "/statuses"},
		},
	}})

	res := NewValidator().ValidateEntitySchema(s)
	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeInvalidSource, res.Errors[0].Code)
}

func TestValidateEntitySchema_DanglingLookupRefIsWarning(t *testing.T) {
	s := validSchema()
	s.Fields = append(s.Fields, EntityFieldDefinition{FormFieldSchema: FormFieldSchema{
		Field: "category", Type: TypeSelect, LookupRef: "no-such-lookup",
	}})

	res := NewValidator().ValidateEntitySchema(s)
	assert.True(t, res.Success, "dangling lookupRef degrades, never fails")
	require.NotEmpty(t, res.Warnings)

	found := false
	for _, w := range res.Warnings {
		if w.Path == "fields[2].lookupRef" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateEntitySchema_UnknownDependsOnIsWarning(t *testing.T) {
	s := validSchema()
	s.Fields = append(s.Fields, EntityFieldDefinition{FormFieldSchema: FormFieldSchema{
		Field: "sub", Type: TypeSelect,
		OptionsSource: &OptionsSource{API: &APIOptionsSource{
			Endpoint:  "/subs?parent=${ghost}",
			DependsOn: []string{"ghost"},
		}},
	}})

	res := NewValidator().ValidateEntitySchema(s)
	assert.True(t, res.Success)
	require.NotEmpty(t, res.Warnings)
}

func TestValidateEntitySchema_MissingPrimaryAndIdentifierWarn(t *testing.T) {
	s := NewEntitySchema("note", "Note").
		Endpoint("/api/notes").
		Field(Text("body")).
		Build()

	res := NewValidator().ValidateEntitySchema(s)
	assert.True(t, res.Success)
	assert.Len(t, res.Warnings, 2)
}

func TestValidateEntitySchema_InvalidConditionIsWarning(t *testing.T) {
	s := validSchema()
	s.Fields[0].VisibleWhen = &ConditionalExpression{Expression: "not a condition at all ==="}

	res := NewValidator().ValidateEntitySchema(s)
	assert.True(t, res.Success)
	require.NotEmpty(t, res.Warnings)
}

func TestValidateEntitySchema_RuleExpressionChecked(t *testing.T) {
	rules, err := expr.NewRuleEvaluator()
	require.NoError(t, err)

	s := validSchema()
	s.Fields[0].Validations = []ValidationRule{
		{Type: "expression", Expression: "value != null"},
		{Type: "expression", Expression: "value ==="},
	}

	res := NewValidatorWithRules(rules).ValidateEntitySchema(s)
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "fields[0].validations[1].expression", res.Warnings[0].Path)
}

func TestValidateFormView_GroupAndTabMembership(t *testing.T) {
	view := &FormViewSchema{
		Fields: []FormFieldSchema{{Field: "name", Type: TypeText}},
		Groups: []FormFieldGroup{{ID: "g", Fields: []string{"name", "ghost"}}},
		Tabs:   []FormFieldTab{{ID: "t", Fields: []string{"phantom"}}},
	}

	errs, warns := NewValidator().ValidateFormView(view, "views.edit")
	assert.Empty(t, errs)
	assert.Len(t, warns, 2)
}

func TestValidateFormView_EmptyFields(t *testing.T) {
	errs, _ := NewValidator().ValidateFormView(&FormViewSchema{}, "views.edit")
	require.NotEmpty(t, errs)
	assert.Equal(t, "views.edit.fields", errs[0].Path)
}
