package schema

// FormMode identifies which variant of a form view is being rendered.
type FormMode string

const (
	ModeAdd    FormMode = "add"
	ModeEdit   FormMode = "edit"
	ModeDetail FormMode = "detail"
	ModeClone  FormMode = "clone"
)

// IsValidFormMode reports membership in the mode set.
func IsValidFormMode(m FormMode) bool {
	switch m {
	case ModeAdd, ModeEdit, ModeDetail, ModeClone:
		return true
	}
	return false
}

// FormFieldGroup is a named partition of fields rendered as one section.
// Membership is by field name; a field belongs to at most one group by
// convention (not enforced structurally).
type FormFieldGroup struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields"`
	Collapsed   bool     `json:"collapsed,omitempty"`
	Order       int      `json:"order,omitempty"`
}

// FormFieldTab is a named partition of fields rendered as one tab page.
type FormFieldTab struct {
	ID     string   `json:"id"`
	Label  string   `json:"label,omitempty"`
	Icon   string   `json:"icon,omitempty"`
	Fields []string `json:"fields"`
	Order  int      `json:"order,omitempty"`
}

// ActionType distinguishes how an action is wired up by the renderer.
type ActionType string

const (
	ActionSubmit ActionType = "submit"
	ActionButton ActionType = "button"
	ActionLink   ActionType = "link"
)

// FormAction is a call-to-action rendered alongside the form.
type FormAction struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Type    ActionType `json:"type,omitempty"`
	Icon    string     `json:"icon,omitempty"`
	Primary bool       `json:"primary,omitempty"`
	Confirm string     `json:"confirm,omitempty"`
	Href    string     `json:"href,omitempty"`
}

// FormLayout defines the grid used by the renderer.
type FormLayout struct {
	Columns       int    `json:"columns,omitempty"`
	Gutter        string `json:"gutter,omitempty"`
	LabelPosition string `json:"labelPosition,omitempty"` // top, left
}

// EngineSpec selects the target rendering engine, with a fallback when the
// named engine is not registered.
type EngineSpec struct {
	Name     string `json:"name"`
	Fallback string `json:"fallback,omitempty"`
}

// FormViewSchema is the declarative definition of one rendered form.
// Mode overrides are partial schema documents merged on top when deriving a
// mode-specific view (scalars: override wins; objects: recursive merge;
// arrays: replaced wholesale).
type FormViewSchema struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Fields is required and non-empty.
	Fields []FormFieldSchema `json:"fields"`

	Groups  []FormFieldGroup `json:"groups,omitempty"`
	Tabs    []FormFieldTab   `json:"tabs,omitempty"`
	Actions []FormAction     `json:"actions,omitempty"`
	Layout  *FormLayout      `json:"layout,omitempty"`

	// Behavior flags
	AutoSave             bool `json:"autoSave,omitempty"`
	WarnOnUnsavedChanges bool `json:"warnOnUnsavedChanges,omitempty"`
	ValidateOnBlur       bool `json:"validateOnBlur,omitempty"`
	ScrollToError        bool `json:"scrollToError,omitempty"`

	Engine *EngineSpec `json:"engine,omitempty"`

	// Mode overrides, merged on top of this schema when deriving.
	AddModeOverrides    map[string]any `json:"addModeOverrides,omitempty"`
	DetailModeOverrides map[string]any `json:"detailModeOverrides,omitempty"`
	CloneModeOverrides  map[string]any `json:"cloneModeOverrides,omitempty"`
}

// Clone returns a deep copy of the view schema.
func (v *FormViewSchema) Clone() *FormViewSchema {
	if v == nil {
		return nil
	}
	out := *v
	out.Fields = make([]FormFieldSchema, len(v.Fields))
	for i := range v.Fields {
		out.Fields[i] = *v.Fields[i].Clone()
	}
	if v.Groups != nil {
		out.Groups = make([]FormFieldGroup, len(v.Groups))
		for i, g := range v.Groups {
			g.Fields = append([]string(nil), g.Fields...)
			out.Groups[i] = g
		}
	}
	if v.Tabs != nil {
		out.Tabs = make([]FormFieldTab, len(v.Tabs))
		for i, t := range v.Tabs {
			t.Fields = append([]string(nil), t.Fields...)
			out.Tabs[i] = t
		}
	}
	if v.Actions != nil {
		out.Actions = append([]FormAction(nil), v.Actions...)
	}
	if v.Layout != nil {
		l := *v.Layout
		out.Layout = &l
	}
	if v.Engine != nil {
		e := *v.Engine
		out.Engine = &e
	}
	out.AddModeOverrides = cloneAnyMap(v.AddModeOverrides)
	out.DetailModeOverrides = cloneAnyMap(v.DetailModeOverrides)
	out.CloneModeOverrides = cloneAnyMap(v.CloneModeOverrides)
	return &out
}

// FieldByName returns the field with the given property name.
func (v *FormViewSchema) FieldByName(name string) (*FormFieldSchema, bool) {
	for i := range v.Fields {
		if v.Fields[i].Field == name {
			return &v.Fields[i], true
		}
	}
	return nil, false
}

// FieldNames returns the ordered list of field property names.
func (v *FormViewSchema) FieldNames() []string {
	names := make([]string, len(v.Fields))
	for i := range v.Fields {
		names[i] = v.Fields[i].Field
	}
	return names
}

// OverridesFor returns the partial override document for a mode, nil for
// edit (the source mode) and unknown modes.
func (v *FormViewSchema) OverridesFor(mode FormMode) map[string]any {
	switch mode {
	case ModeAdd:
		return v.AddModeOverrides
	case ModeDetail:
		return v.DetailModeOverrides
	case ModeClone:
		return v.CloneModeOverrides
	}
	return nil
}
