package schema

import "metaform/internal/schema/version"

// EntitySchemaBuilder is the fluent authoring surface for entity schemas.
// It is sugar over the schema types: Build assembles and returns the
// aggregate, leaving validation to the validator.
type EntitySchemaBuilder struct {
	schema EntitySchema
}

// NewEntitySchema starts a builder for the given entity identity.
func NewEntitySchema(id, name string) *EntitySchemaBuilder {
	return &EntitySchemaBuilder{
		schema: EntitySchema{
			DSLVersion: version.CurrentDSLVersion,
			ID:         id,
			Name:       name,
		},
	}
}

// Plural sets the plural display name.
func (b *EntitySchemaBuilder) Plural(name string) *EntitySchemaBuilder {
	b.schema.NamePlural = name
	return b
}

// Describe sets the description.
func (b *EntitySchemaBuilder) Describe(text string) *EntitySchemaBuilder {
	b.schema.Description = text
	return b
}

// Icon sets the display icon.
func (b *EntitySchemaBuilder) Icon(icon string) *EntitySchemaBuilder {
	b.schema.Icon = icon
	return b
}

// Endpoint sets the data-source endpoint.
func (b *EntitySchemaBuilder) Endpoint(url string) *EntitySchemaBuilder {
	b.schema.DataSource.Endpoint = url
	return b
}

// DataSource replaces the full data-source configuration.
func (b *EntitySchemaBuilder) DataSource(ds EntityDataSource) *EntitySchemaBuilder {
	b.schema.DataSource = ds
	return b
}

// Field appends a field built with a FieldBuilder.
func (b *EntitySchemaBuilder) Field(fb *FieldBuilder) *EntitySchemaBuilder {
	b.schema.Fields = append(b.schema.Fields, fb.def)
	return b
}

// Lookup registers a named reusable options source.
func (b *EntitySchemaBuilder) Lookup(id string, source OptionsSource) *EntitySchemaBuilder {
	b.schema.Lookups = append(b.schema.Lookups, EntityLookup{ID: id, Source: source})
	return b
}

// PreloadLookup registers a lookup flagged for preloading.
func (b *EntitySchemaBuilder) PreloadLookup(id string, source OptionsSource) *EntitySchemaBuilder {
	b.schema.Lookups = append(b.schema.Lookups, EntityLookup{ID: id, Source: source, Preload: true})
	return b
}

// EditView sets the authored edit view.
func (b *EntitySchemaBuilder) EditView(view *FormViewSchema) *EntitySchemaBuilder {
	b.schema.Views.Edit = view
	return b
}

// BrowseView sets the authored browse view.
func (b *EntitySchemaBuilder) BrowseView(view *BrowseViewSchema) *EntitySchemaBuilder {
	b.schema.Views.Browse = view
	return b
}

// Permissions sets role requirements per operation.
func (b *EntitySchemaBuilder) Permissions(p EntityPermissions) *EntitySchemaBuilder {
	b.schema.Permissions = &p
	return b
}

// Routes sets client route templates.
func (b *EntitySchemaBuilder) Routes(r EntityRoutes) *EntitySchemaBuilder {
	b.schema.Routes = &r
	return b
}

// Features sets feature toggles.
func (b *EntitySchemaBuilder) Features(f EntityFeatures) *EntitySchemaBuilder {
	b.schema.Features = f
	return b
}

// Build returns the assembled schema. The builder must not be reused after.
func (b *EntitySchemaBuilder) Build() *EntitySchema {
	return &b.schema
}

// FieldBuilder builds one EntityFieldDefinition fluently.
type FieldBuilder struct {
	def EntityFieldDefinition
}

// NewField starts a field of a given type.
func NewField(name string, t FieldType) *FieldBuilder {
	return &FieldBuilder{def: EntityFieldDefinition{
		FormFieldSchema: FormFieldSchema{Field: name, Type: t},
	}}
}

// Text is shorthand for a text field.
func Text(name string) *FieldBuilder { return NewField(name, TypeText) }

// Select is shorthand for a select field.
func Select(name string) *FieldBuilder { return NewField(name, TypeSelect) }

// Number is shorthand for a number field.
func Number(name string) *FieldBuilder { return NewField(name, TypeNumber) }

// Date is shorthand for a date field.
func Date(name string) *FieldBuilder { return NewField(name, TypeDate) }

// Checkbox is shorthand for a checkbox field.
func Checkbox(name string) *FieldBuilder { return NewField(name, TypeCheckbox) }

// Label sets the display label.
func (fb *FieldBuilder) Label(label string) *FieldBuilder {
	fb.def.Label = label
	return fb
}

// Placeholder sets the placeholder text.
func (fb *FieldBuilder) Placeholder(text string) *FieldBuilder {
	fb.def.Placeholder = text
	return fb
}

// Required marks the field required.
func (fb *FieldBuilder) Required() *FieldBuilder {
	fb.def.Required = true
	return fb
}

// Readonly marks the field readonly.
func (fb *FieldBuilder) Readonly() *FieldBuilder {
	fb.def.Readonly = true
	return fb
}

// Hidden marks the field hidden.
func (fb *FieldBuilder) Hidden() *FieldBuilder {
	fb.def.Hidden = true
	return fb
}

// Default sets the default value.
func (fb *FieldBuilder) Default(v any) *FieldBuilder {
	fb.def.DefaultValue = v
	return fb
}

// Lengths sets min/max length constraints.
func (fb *FieldBuilder) Lengths(min, max int) *FieldBuilder {
	fb.def.MinLength = &min
	fb.def.MaxLength = &max
	return fb
}

// Range sets min/max numeric constraints.
func (fb *FieldBuilder) Range(min, max float64) *FieldBuilder {
	fb.def.Min = &min
	fb.def.Max = &max
	return fb
}

// Pattern sets a regexp constraint.
func (fb *FieldBuilder) Pattern(pattern string) *FieldBuilder {
	fb.def.Pattern = pattern
	return fb
}

// Rule appends a custom validation rule.
func (fb *FieldBuilder) Rule(rule ValidationRule) *FieldBuilder {
	fb.def.Validations = append(fb.def.Validations, rule)
	return fb
}

// StaticOptions sets an inline static choice list.
func (fb *FieldBuilder) StaticOptions(opts ...FieldOption) *FieldBuilder {
	fb.def.Options = opts
	return fb
}

// Source sets an explicit options source.
func (fb *FieldBuilder) Source(src OptionsSource) *FieldBuilder {
	fb.def.OptionsSource = &src
	return fb
}

// Lookup references a named lookup by ID.
func (fb *FieldBuilder) Lookup(id string) *FieldBuilder {
	fb.def.LookupRef = id
	return fb
}

// VisibleWhen sets the visibility condition.
func (fb *FieldBuilder) VisibleWhen(condition string, dependsOn ...string) *FieldBuilder {
	fb.def.VisibleWhen = &ConditionalExpression{Expression: condition, DependsOn: dependsOn}
	return fb
}

// EnabledWhen sets the enablement condition.
func (fb *FieldBuilder) EnabledWhen(condition string, dependsOn ...string) *FieldBuilder {
	fb.def.EnabledWhen = &ConditionalExpression{Expression: condition, DependsOn: dependsOn}
	return fb
}

// RequiredWhen sets the conditional-required condition.
func (fb *FieldBuilder) RequiredWhen(condition string, dependsOn ...string) *FieldBuilder {
	fb.def.RequiredWhen = &ConditionalExpression{Expression: condition, DependsOn: dependsOn}
	return fb
}

// Group assigns the field to a named group.
func (fb *FieldBuilder) Group(id string) *FieldBuilder {
	fb.def.Group = id
	return fb
}

// Tab assigns the field to a named tab.
func (fb *FieldBuilder) Tab(id string) *FieldBuilder {
	fb.def.Tab = id
	return fb
}

// Span sets the layout column span.
func (fb *FieldBuilder) Span(cols int) *FieldBuilder {
	if fb.def.Layout == nil {
		fb.def.Layout = &FieldLayout{}
	}
	fb.def.Layout.ColSpan = cols
	return fb
}

// Order sets the explicit layout order.
func (fb *FieldBuilder) Order(n int) *FieldBuilder {
	if fb.def.Layout == nil {
		fb.def.Layout = &FieldLayout{}
	}
	fb.def.Layout.Order = n
	return fb
}

// Primary marks the field as the primary display field.
func (fb *FieldBuilder) Primary() *FieldBuilder {
	fb.def.IsPrimary = true
	return fb
}

// Identifier marks the field as the record identifier.
func (fb *FieldBuilder) Identifier() *FieldBuilder {
	fb.def.IsIdentifier = true
	return fb
}

// System marks the field system-managed (excluded from Add mode).
func (fb *FieldBuilder) System() *FieldBuilder {
	fb.def.SystemManaged = true
	return fb
}

// Browsable marks the field for browse views, optionally sortable.
func (fb *FieldBuilder) Browsable(sortable bool) *FieldBuilder {
	fb.def.Browsable = true
	fb.def.Sortable = sortable
	return fb
}

// Filterable marks the field filterable in browse views.
func (fb *FieldBuilder) Filterable() *FieldBuilder {
	fb.def.Filterable = true
	return fb
}

// SearchWeight sets full-text ranking bias.
func (fb *FieldBuilder) SearchWeight(w int) *FieldBuilder {
	fb.def.SearchWeight = w
	return fb
}
