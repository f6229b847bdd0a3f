// Package generator derives mode-specific form view schemas from an entity's
// master field list. Generation is pure and deterministic: the same entity
// and options always yield a structurally equal view, with no network access
// and no mutation of the input schema.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"metaform/internal/schema"
)

// Options controls one generation run.
type Options struct {
	// Mode selects the target view variant.
	Mode schema.FormMode

	// Engine names the target rendering engine of the generated view.
	Engine string

	// IncludeFields, when non-empty, keeps only the listed fields.
	IncludeFields []string
	// ExcludeFields drops the listed fields after inclusion.
	ExcludeFields []string

	// FieldOrder assigns explicit positions; unlisted fields sort last,
	// stable among themselves.
	FieldOrder []string

	// GroupSystemFields collects system-managed fields into a collapsed
	// "System Information" group.
	GroupSystemFields bool

	// AutoGroupByPrefix groups two or more fields sharing a `word_` or
	// `word-` name prefix.
	AutoGroupByPrefix bool

	// Columns sets the layout grid; zero means two columns.
	Columns int

	// Actions overrides the mode's default action preset.
	Actions []schema.FormAction
}

// fullWidthTypes always span the entire row.
var fullWidthTypes = map[schema.FieldType]struct{}{
	schema.TypeTextarea: {},
	schema.TypeRichText: {},
	schema.TypeDivider:  {},
	schema.TypeHeading:  {},
}

// GenerateFormSchema derives a FormViewSchema from an entity schema for the
// requested mode.
func GenerateFormSchema(entity *schema.EntitySchema, opts Options) (*schema.FormViewSchema, error) {
	if entity == nil {
		return nil, fmt.Errorf("generate form schema: entity is nil")
	}
	if opts.Mode == "" {
		opts.Mode = schema.ModeEdit
	}
	if !schema.IsValidFormMode(opts.Mode) {
		return nil, fmt.Errorf("generate form schema: unknown mode %q", opts.Mode)
	}
	columns := opts.Columns
	if columns <= 0 {
		columns = 2
	}

	// 1. Select fields.
	selected := selectFields(entity.Fields, opts)

	// 2. Order fields.
	ordered := orderFields(selected, opts.FieldOrder)

	// 3. Project to form fields, resolving options sources.
	fields := make([]schema.FormFieldSchema, 0, len(ordered))
	for _, def := range ordered {
		fields = append(fields, *projectField(entity, def))
	}

	// 4. Compute layout column span.
	for i := range fields {
		applySpan(&fields[i], columns)
	}

	// 5. Mode transform.
	switch opts.Mode {
	case schema.ModeDetail:
		for i := range fields {
			fields[i] = *schema.ToReadonlyField(&fields[i])
		}
	case schema.ModeClone:
		// A cloned record must not inherit identity values.
		for i := range fields {
			if def, ok := entity.FieldByName(fields[i].Field); ok && def.IsIdentifier {
				fields[i].DefaultValue = nil
			}
		}
	}

	// 6. Assemble groups.
	groups := assembleGroups(entity, fields, opts)

	// 7. Actions.
	actions := opts.Actions
	if actions == nil {
		actions = schema.DefaultActions(opts.Mode)
	}

	view := &schema.FormViewSchema{
		Title:   viewTitle(entity, opts.Mode),
		Fields:  fields,
		Groups:  groups,
		Actions: actions,
		Layout:  &schema.FormLayout{Columns: columns},
	}
	if opts.Engine != "" {
		view.Engine = &schema.EngineSpec{Name: opts.Engine}
	}
	return view, nil
}

func selectFields(defs []schema.EntityFieldDefinition, opts Options) []*schema.EntityFieldDefinition {
	include := toSet(opts.IncludeFields)
	exclude := toSet(opts.ExcludeFields)

	out := make([]*schema.EntityFieldDefinition, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		if len(include) > 0 {
			if _, ok := include[def.Field]; !ok {
				continue
			}
		}
		if _, ok := exclude[def.Field]; ok {
			continue
		}
		if opts.Mode == schema.ModeAdd || opts.Mode == schema.ModeClone {
			if def.SystemManaged || schema.IsSystemFieldName(def.Field) {
				continue
			}
		}
		out = append(out, def)
	}
	return out
}

func orderFields(defs []*schema.EntityFieldDefinition, fieldOrder []string) []*schema.EntityFieldDefinition {
	out := append([]*schema.EntityFieldDefinition(nil), defs...)

	if len(fieldOrder) > 0 {
		index := make(map[string]int, len(fieldOrder))
		for i, name := range fieldOrder {
			index[name] = i
		}
		sort.SliceStable(out, func(i, j int) bool {
			ri, iOK := index[out[i].Field]
			rj, jOK := index[out[j].Field]
			switch {
			case iOK && jOK:
				return ri < rj
			case iOK:
				return true
			case jOK:
				return false
			default:
				return false // unlisted keep input order
			}
		})
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		// Primary first, then explicit layout order; unset keeps input order.
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		oi, oj := layoutOrder(out[i]), layoutOrder(out[j])
		if oi != oj {
			return oi < oj
		}
		return false
	})
	return out
}

func layoutOrder(def *schema.EntityFieldDefinition) int {
	if def.Layout != nil && def.Layout.Order != 0 {
		return def.Layout.Order
	}
	return 1 << 30
}

// projectField turns a master definition into a view field, resolving the
// options source: an explicit field-level source wins over lookupRef.
func projectField(entity *schema.EntitySchema, def *schema.EntityFieldDefinition) *schema.FormFieldSchema {
	f := def.FormFieldSchema.Clone()
	if f.OptionsSource == nil && f.LookupRef != "" {
		if lookup, ok := entity.LookupByID(f.LookupRef); ok {
			f.OptionsSource = lookup.Source.Clone()
		}
	}
	return f
}

func applySpan(f *schema.FormFieldSchema, columns int) {
	if f.Layout != nil && f.Layout.ColSpan > 0 {
		return
	}
	span := 1
	if _, full := fullWidthTypes[f.Type]; full {
		span = columns
	}
	if f.Layout == nil {
		f.Layout = &schema.FieldLayout{}
	}
	f.Layout.ColSpan = span
}

func assembleGroups(entity *schema.EntitySchema, fields []schema.FormFieldSchema, opts Options) []schema.FormFieldGroup {
	var groups []schema.FormFieldGroup
	grouped := make(map[string]struct{})

	// Explicit per-field group tags, in first-seen order.
	byID := make(map[string]int)
	for _, f := range fields {
		if f.Group == "" {
			continue
		}
		idx, ok := byID[f.Group]
		if !ok {
			groups = append(groups, schema.FormFieldGroup{ID: f.Group, Label: titleize(f.Group)})
			idx = len(groups) - 1
			byID[f.Group] = idx
		}
		groups[idx].Fields = append(groups[idx].Fields, f.Field)
		grouped[f.Field] = struct{}{}
	}

	if opts.AutoGroupByPrefix {
		groups = append(groups, prefixGroups(fields, grouped)...)
	}

	if opts.GroupSystemFields {
		var system []string
		for _, f := range fields {
			if _, done := grouped[f.Field]; done {
				continue
			}
			def, ok := entity.FieldByName(f.Field)
			if schema.IsSystemFieldName(f.Field) || (ok && def.SystemManaged) {
				system = append(system, f.Field)
			}
		}
		if len(system) > 0 {
			groups = append(groups, schema.FormFieldGroup{
				ID:        "system",
				Label:     "System Information",
				Fields:    system,
				Collapsed: true,
			})
		}
	}

	return groups
}

// prefixGroups finds two or more ungrouped fields sharing a `word_` or
// `word-` prefix and groups them under that word.
func prefixGroups(fields []schema.FormFieldSchema, grouped map[string]struct{}) []schema.FormFieldGroup {
	byPrefix := make(map[string][]string)
	var order []string
	for _, f := range fields {
		if _, done := grouped[f.Field]; done {
			continue
		}
		prefix := namePrefix(f.Field)
		if prefix == "" {
			continue
		}
		if _, seen := byPrefix[prefix]; !seen {
			order = append(order, prefix)
		}
		byPrefix[prefix] = append(byPrefix[prefix], f.Field)
	}

	var out []schema.FormFieldGroup
	for _, prefix := range order {
		members := byPrefix[prefix]
		if len(members) < 2 {
			continue
		}
		out = append(out, schema.FormFieldGroup{
			ID:     prefix,
			Label:  titleize(prefix),
			Fields: members,
		})
		for _, m := range members {
			grouped[m] = struct{}{}
		}
	}
	return out
}

func namePrefix(name string) string {
	for _, sep := range []string{"_", "-"} {
		if idx := strings.Index(name, sep); idx > 0 {
			return name[:idx]
		}
	}
	return ""
}

func viewTitle(entity *schema.EntitySchema, mode schema.FormMode) string {
	switch mode {
	case schema.ModeAdd:
		return "New " + entity.Name
	case schema.ModeClone:
		return "Clone " + entity.Name
	case schema.ModeEdit:
		return "Edit " + entity.Name
	default:
		return entity.Name
	}
}

func titleize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func toSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
