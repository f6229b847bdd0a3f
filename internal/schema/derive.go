package schema

// SystemFieldNames is the fixed set of system-managed property names excluded
// from Add mode regardless of the SystemManaged flag.
var SystemFieldNames = map[string]struct{}{
	"id":        {},
	"createdAt": {},
	"createdBy": {},
	"updatedAt": {},
	"updatedBy": {},
	"deletedAt": {},
	"deletedBy": {},
	"version":   {},
}

// IsSystemFieldName reports whether the name is in the fixed system set.
func IsSystemFieldName(name string) bool {
	_, ok := SystemFieldNames[name]
	return ok
}

// readonlyTypeMap maps each input type to its readonly display counterpart.
// Types absent from the map fall back to label.
var readonlyTypeMap = map[FieldType]FieldType{
	TypeURL:     TypeLink,
	TypeFile:    TypeLink,
	TypeImage:   TypeImage,
	TypeJSON:    TypeJSON,
	TypeHidden:  TypeHidden,
	TypeLabel:   TypeLabel,
	TypeLink:    TypeLink,
	TypeDivider: TypeDivider,
	TypeHeading: TypeHeading,
}

// ReadonlyType returns the readonly display type for an input type.
func ReadonlyType(t FieldType) FieldType {
	if ro, ok := readonlyTypeMap[t]; ok {
		return ro
	}
	return TypeLabel
}

// ToReadonlyField converts a field to its readonly display form: the display
// type counterpart, readonly set, required and validation stripped. The input
// is not mutated. Applying the conversion twice equals applying it once.
func ToReadonlyField(f *FormFieldSchema) *FormFieldSchema {
	out := f.Clone()
	out.Type = ReadonlyType(f.Type)
	out.Readonly = true
	out.Required = false
	out.MinLength = nil
	out.MaxLength = nil
	out.Min = nil
	out.Max = nil
	out.Pattern = ""
	out.Validations = nil
	out.RequiredWhen = nil
	out.Placeholder = ""
	return out
}

// DefaultActions returns the preset action set for a mode.
func DefaultActions(mode FormMode) []FormAction {
	switch mode {
	case ModeEdit:
		return []FormAction{
			{ID: "save", Label: "Save", Type: ActionSubmit, Primary: true},
			{ID: "cancel", Label: "Cancel", Type: ActionButton},
			{ID: "delete", Label: "Delete", Type: ActionButton, Confirm: "Delete this record?"},
		}
	case ModeAdd, ModeClone:
		return []FormAction{
			{ID: "create", Label: "Create", Type: ActionSubmit, Primary: true},
			{ID: "cancel", Label: "Cancel", Type: ActionButton},
		}
	case ModeDetail:
		return []FormAction{
			{ID: "edit", Label: "Edit", Type: ActionButton, Primary: true},
			{ID: "back", Label: "Back", Type: ActionLink},
		}
	}
	return nil
}

// DeriveAddFromEdit derives the Add view from an Edit view: system fields are
// dropped, the Add action preset applies, and addModeOverrides are merged on
// top. The source is never mutated.
func DeriveAddFromEdit(edit *FormViewSchema) (*FormViewSchema, error) {
	out := edit.Clone()
	fields := make([]FormFieldSchema, 0, len(out.Fields))
	for i := range out.Fields {
		if IsSystemFieldName(out.Fields[i].Field) {
			continue
		}
		fields = append(fields, out.Fields[i])
	}
	out.Fields = fields
	out.Actions = DefaultActions(ModeAdd)
	out.Groups = pruneMemberships(out.Groups, fields)
	out.Tabs = pruneTabMemberships(out.Tabs, fields)
	return MergeFormViewSchema(out, edit.AddModeOverrides)
}

// DeriveDetailFromEdit derives the Detail view from an Edit view: every field
// becomes its readonly counterpart, the Detail action preset applies, and
// detailModeOverrides are merged on top.
func DeriveDetailFromEdit(edit *FormViewSchema) (*FormViewSchema, error) {
	out := edit.Clone()
	for i := range out.Fields {
		out.Fields[i] = *ToReadonlyField(&out.Fields[i])
	}
	out.Actions = DefaultActions(ModeDetail)
	return MergeFormViewSchema(out, edit.DetailModeOverrides)
}

// DeriveCloneFromEdit derives the Clone view from an Edit view: system and
// identifier default values are cleared, the Add-style action preset applies,
// and cloneModeOverrides are merged on top.
func DeriveCloneFromEdit(edit *FormViewSchema) (*FormViewSchema, error) {
	out := edit.Clone()
	fields := make([]FormFieldSchema, 0, len(out.Fields))
	for i := range out.Fields {
		if IsSystemFieldName(out.Fields[i].Field) {
			continue
		}
		fields = append(fields, out.Fields[i])
	}
	out.Fields = fields
	out.Actions = DefaultActions(ModeClone)
	out.Groups = pruneMemberships(out.Groups, fields)
	out.Tabs = pruneTabMemberships(out.Tabs, fields)
	return MergeFormViewSchema(out, edit.CloneModeOverrides)
}

// GetSchemaForMode resolves the view schema for a mode from an entity's view
// bundle. An explicitly authored view wins; otherwise add/detail/clone are
// derived from edit. Requesting edit returns the edit view untransformed.
func GetSchemaForMode(views EntityViews, mode FormMode) (*FormViewSchema, error) {
	switch mode {
	case ModeEdit:
		return views.Edit, nil
	case ModeAdd:
		if views.Add != nil {
			return views.Add, nil
		}
		if views.Edit == nil {
			return nil, nil
		}
		return DeriveAddFromEdit(views.Edit)
	case ModeDetail:
		if views.Detail != nil {
			return views.Detail, nil
		}
		if views.Edit == nil {
			return nil, nil
		}
		return DeriveDetailFromEdit(views.Edit)
	case ModeClone:
		if views.Clone != nil {
			return views.Clone, nil
		}
		if views.Edit == nil {
			return nil, nil
		}
		return DeriveCloneFromEdit(views.Edit)
	}
	return nil, nil
}

// pruneMemberships drops group member names that no longer resolve to a field.
func pruneMemberships(groups []FormFieldGroup, fields []FormFieldSchema) []FormFieldGroup {
	if groups == nil {
		return nil
	}
	present := fieldNameSet(fields)
	out := make([]FormFieldGroup, 0, len(groups))
	for _, g := range groups {
		kept := make([]string, 0, len(g.Fields))
		for _, name := range g.Fields {
			if _, ok := present[name]; ok {
				kept = append(kept, name)
			}
		}
		if len(kept) == 0 {
			continue
		}
		g.Fields = kept
		out = append(out, g)
	}
	return out
}

func pruneTabMemberships(tabs []FormFieldTab, fields []FormFieldSchema) []FormFieldTab {
	if tabs == nil {
		return nil
	}
	present := fieldNameSet(fields)
	out := make([]FormFieldTab, 0, len(tabs))
	for _, t := range tabs {
		kept := make([]string, 0, len(t.Fields))
		for _, name := range t.Fields {
			if _, ok := present[name]; ok {
				kept = append(kept, name)
			}
		}
		if len(kept) == 0 {
			continue
		}
		t.Fields = kept
		out = append(out, t)
	}
	return out
}

func fieldNameSet(fields []FormFieldSchema) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for i := range fields {
		set[fields[i].Field] = struct{}{}
	}
	return set
}
